package allsky

import(
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWaitForFile(t *testing.T) {
	dir := t.TempDir()
	ready := writeFile(t, dir, "ready.fits", 100)
	if err := WaitForFile(ready, 2*time.Second); err != nil {
		t.Errorf("WaitForFile(ready): %v", err)
	}

	if err := WaitForFile(filepath.Join(dir, "never.fits"), 200*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Errorf("WaitForFile(missing): got %v, wanted ErrTimeout", err)
	}
}

func TestIngestible(t *testing.T) {
	tests := map[string]bool{
		"/in/frame.fits":  true,
		"/in/frame.JPG":   true,
		"/in/frame.dng":   true,
		"/in/.frame.fits": false,
		"/in/frame.txt":   false,
	}
	for name, want := range tests {
		if got := ingestible(name); got != want {
			t.Errorf("ingestible(%s) = %v", name, got)
		}
	}
}

func TestIngesterRun(t *testing.T) {
	dir := t.TempDir()
	out := make(chan Message, 1)
	in := &Ingester{
		Dir:       dir,
		CameraID:  3,
		Telemetry: NewTelemetry(Snapshot{Exposure: 7.5}),
		Out:       out,
		MaxWait:   2 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- in.Run(ctx) }()
	time.Sleep(100 * time.Millisecond) // let the watch get established

	tmp := writeFile(t, dir, ".partial.fits", 10)
	final := filepath.Join(dir, "frame.fits")
	if err := os.Rename(tmp, final); err != nil {
		t.Fatal(err)
	}

	select {
	case m := <-out:
		if m.FilePath != final || m.Exposure != 7.5 || m.CameraID != 3 {
			t.Errorf("message: %s", m)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no message")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
}
