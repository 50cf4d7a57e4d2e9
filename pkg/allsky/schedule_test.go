package allsky

import(
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abworrall/allsky/pkg/output"
	"github.com/abworrall/allsky/pkg/timelapse"
)

func TestTimelapseScheduler(t *testing.T) {
	c := NewConfig()
	dusk := time.Date(2024, 3, 20, 19, 0, 0, 0, time.Local)
	dawn := time.Date(2024, 3, 21, 6, 30, 0, 0, time.Local)

	s := &TimelapseScheduler{Config: c}
	if _, ok := s.Observe(dusk.Add(-time.Hour), false, true); ok {
		t.Errorf("job on the first transition after startup")
	}
	s.Observe(dusk.Add(-time.Minute), false, false)

	job, ok := s.Observe(dusk, true, true)
	if !ok || job.Night || job.String() != "timelapse[20240320 day]" {
		t.Errorf("end of day: %v %v", job, ok)
	}
	job, ok = s.Observe(dawn, false, true)
	if !ok || !job.Night || job.String() != "timelapse[20240320 night]" {
		t.Errorf("end of night: %v %v", job, ok)
	}

	c.DaytimeTimelapse = false
	s = &TimelapseScheduler{Config: c}
	s.Observe(dusk.Add(-time.Minute), false, false)
	if _, ok := s.Observe(dusk, true, true); ok {
		t.Errorf("day job with daytime timelapse off")
	}
	if _, ok := s.Observe(dawn, false, true); !ok {
		t.Errorf("no night job")
	}
}

func TestRunTimelapse(t *testing.T) {
	c := NewConfig()
	c.ImageFolder = t.TempDir()
	c.FFmpegPath = "/bin/true"
	job := TimelapseJob{At: time.Date(2024, 3, 21, 6, 30, 0, 0, time.Local), Night: true}

	if _, err := RunTimelapse(context.Background(), c, c.Generator(), job); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing folder: got %v", err)
	}

	hour := filepath.Join(output.DayFolder(c.ImageFolder, job.At, true), "20_23")
	if err := os.MkdirAll(hour, 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := RunTimelapse(context.Background(), c, c.Generator(), job); !errors.Is(err, timelapse.ErrNoFrames) {
		t.Errorf("empty folder: got %v", err)
	}

	os.WriteFile(filepath.Join(hour, "ccd1_20240320_230000.jpg"), []byte("jpg"), 0644)
	video, err := RunTimelapse(context.Background(), c, c.Generator(), job)
	if err != nil {
		t.Fatalf("RunTimelapse: %v", err)
	}
	if want := filepath.Join(c.ImageFolder, "20240320", "allsky-timelapse_ccd1_20240320_night.mp4"); video != want {
		t.Errorf("video %s, wanted %s", video, want)
	}
}

type flakyProcessor struct {
	calls  int
}

func (f *flakyProcessor)Process(m Message, count int) error {
	f.calls++
	if f.calls == 1 {
		return errors.New("first frame fails")
	}
	return nil
}

func TestSuperviseRestarts(t *testing.T) {
	dir := t.TempDir()
	in := make(chan Message, 4)
	in <- Message{FilePath: writeFile(t, dir, "a.jpg", 1)}
	in <- Message{FilePath: writeFile(t, dir, "b.jpg", 1)}
	in <- StopMessage()

	fp := &flakyProcessor{}
	done := make(chan struct{})
	go func() {
		Supervise(context.Background(), in, fp, time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Supervise did not return")
	}
	if fp.calls != 2 {
		t.Errorf("processed %d frames, wanted 2", fp.calls)
	}
}
