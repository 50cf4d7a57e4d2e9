package dispatch

import(
	"context"
	"fmt"
	"log"
	"os"
	"path"
)

// A Dispatcher drains the queue: uploads are spooled, publishes go to
// the broker as one retained message per field plus the image itself.
type Dispatcher struct {
	Queue      *Queue
	Spool      *Spool
	Publisher  Publisher
	BaseTopic  string
	QoS        byte
}

func (d *Dispatcher)Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-d.Queue.C:
			if !ok {
				return
			}
			if err := d.Handle(t); err != nil {
				log.Printf("dispatch %s: %v\n", t, err)
			}
		}
	}
}

func (d *Dispatcher)Handle(t Task) error {
	switch t.Action {
	case ActionUpload:
		if d.Spool == nil {
			return fmt.Errorf("no spool configured")
		}
		_, err := d.Spool.Write(t)
		return err

	case ActionPublish:
		return d.publish(t)
	}
	return fmt.Errorf("unknown action %q", t.Action)
}

func (d *Dispatcher)publish(t Task) error {
	if d.Publisher == nil {
		return fmt.Errorf("no publisher configured")
	}
	if t.Payload != nil {
		for _, kv := range t.Payload.Fields() {
			if err := d.Publisher.Publish(path.Join(d.BaseTopic, kv[0]), d.QoS, true, []byte(kv[1])); err != nil {
				return err
			}
		}
	}

	if t.LocalFile == "" {
		return nil
	}
	img, err := os.ReadFile(t.LocalFile)
	if err != nil {
		return fmt.Errorf("read %s: %v", t.LocalFile, err)
	}
	return d.Publisher.Publish(path.Join(d.BaseTopic, "latest"), d.QoS, true, img)
}
