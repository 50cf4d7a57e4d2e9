package dispatch

import(
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type message struct {
	Topic    string
	Retained bool
	Payload  string
}

type fakePublisher struct {
	msgs []message
}

func (f *fakePublisher)Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.msgs = append(f.msgs, message{topic, retained, string(payload)})
	return nil
}

func TestQueueFull(t *testing.T) {
	q := NewQueue(1)
	q.MaxWait = 50 * time.Millisecond

	if err := q.Enqueue(NewUploadTask("a", "b", false)); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := q.Enqueue(NewUploadTask("c", "d", false)); !errors.Is(err, ErrQueueFull) {
		t.Errorf("second enqueue: %v", err)
	}
	if q.Len() != 1 {
		t.Errorf("len %d", q.Len())
	}
}

func TestQueueWaitsForSpace(t *testing.T) {
	q := NewQueue(1)
	q.Enqueue(NewUploadTask("a", "b", false))

	go func() {
		time.Sleep(30 * time.Millisecond)
		<-q.C
	}()
	if err := q.Enqueue(NewUploadTask("c", "d", false)); err != nil {
		t.Errorf("enqueue after drain: %v", err)
	}
}

func TestSpoolRoundTrip(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatMsgpack} {
		s := &Spool{Dir: t.TempDir(), Format: format}
		task := NewPublishTask("/tmp/latest.jpg", PublishData{Exposure: 1.5, Stars: 7, SiderealTime: "1:02:03.00"})

		filename, err := s.Write(task)
		if err != nil {
			t.Fatalf("%v: Write: %v", format, err)
		}
		if filepath.Base(filename) != task.ID + format.Ext() {
			t.Errorf("%v: filename %s", format, filename)
		}

		got, err := ReadTask(filename)
		if err != nil {
			t.Fatalf("%v: ReadTask: %v", format, err)
		}
		if diff := cmp.Diff(task, got, cmpopts.EquateApproxTime(time.Millisecond)); diff != "" {
			t.Errorf("%v: task (-want +got):\n%s", format, diff)
		}

		pending, _ := s.Pending()
		if len(pending) != 1 || pending[0] != filename {
			t.Errorf("%v: pending %v", format, pending)
		}
	}
}

func TestDispatcherPublish(t *testing.T) {
	img := filepath.Join(t.TempDir(), "latest.jpg")
	os.WriteFile(img, []byte("jpegbytes"), 0644)

	pub := &fakePublisher{}
	d := &Dispatcher{Publisher: pub, BaseTopic: "allsky"}
	if err := d.Handle(NewPublishTask(img, PublishData{Gain: 100, Night: true})); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(pub.msgs) != 15 {
		t.Fatalf("%d messages, want 15", len(pub.msgs))
	}
	if diff := cmp.Diff(message{"allsky/gain", true, "100"}, pub.msgs[1]); diff != "" {
		t.Errorf("gain (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(message{"allsky/latest", true, "jpegbytes"}, pub.msgs[14]); diff != "" {
		t.Errorf("image (-want +got):\n%s", diff)
	}
}

func TestDispatcherRun(t *testing.T) {
	q := NewQueue(4)
	s := &Spool{Dir: t.TempDir()}
	d := &Dispatcher{Queue: q, Spool: s}

	q.Enqueue(NewUploadTask("/tmp/a.jpg", "remote/a.jpg", false))
	q.Enqueue(NewUploadTask("/tmp/meta.json", "remote/meta.json", true))
	q.Enqueue(Task{Action: "frobnicate"})
	q.Close()

	d.Run(context.Background())

	pending, _ := s.Pending()
	if len(pending) != 2 {
		t.Fatalf("spooled %d, want 2", len(pending))
	}
	found := false
	for _, p := range pending {
		task, err := ReadTask(p)
		if err != nil {
			t.Fatalf("ReadTask: %v", err)
		}
		if task.RemoveLocal && task.LocalFile == "/tmp/meta.json" {
			found = true
		}
	}
	if !found {
		t.Errorf("metadata upload not spooled with remove_local")
	}
}
