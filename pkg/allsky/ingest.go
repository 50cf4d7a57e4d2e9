package allsky

import(
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/fsnotify/fsnotify"
)

var errGrowing = errors.New("file still being written")

// WaitForFile returns once the file exists, is not empty, and has
// stopped growing; or ErrTimeout after maxWait.
func WaitForFile(filename string, maxWait time.Duration) error {
	last := int64(-1)
	op := func() error {
		st, err := os.Stat(filename)
		if err != nil {
			return err
		}
		size := st.Size()
		if size == 0 || size != last {
			last = size
			return errGrowing
		}
		return nil
	}

	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     50 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      maxWait,
		Clock:               backoff.SystemClock})
	if err != nil {
		return fmt.Errorf("%w: waiting for %s: %v", ErrTimeout, filename, err)
	}
	return nil
}

// An Ingester watches the directory the capture side drops frames
// into, and turns each finished file into a Message.
type Ingester struct {
	Dir        string
	CameraID   int
	Telemetry  *Telemetry
	Out        chan<- Message
	MaxWait    time.Duration
}

func ingestible(filename string) bool {
	base := filepath.Base(filename)
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".fit", ".fits", ".fts", ".jpg", ".jpeg", ".png", ".tif", ".tiff", ".dng":
		return true
	}
	return false
}

// Run blocks until the context is done, or the watcher fails.
func (in *Ingester)Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(in.Dir); err != nil {
		return fmt.Errorf("watch %s: %v", in.Dir, err)
	}
	log.Printf("Watching %s for new frames\n", in.Dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-watcher.Errors:
			return err
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Rename) == 0 || !ingestible(ev.Name) {
				continue
			}
			if ev.Op&fsnotify.Rename != 0 {
				if _, err := os.Stat(ev.Name); err != nil {
					continue // renamed away
				}
			}
			m, err := in.message(ev.Name)
			if err != nil {
				log.Printf("Ingest: %v\n", err)
				continue
			}
			select {
			case in.Out <- m:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// message waits for the file to settle, then describes it using the
// exposure the capture side is currently using.
func (in *Ingester)message(filename string) (Message, error) {
	if err := WaitForFile(filename, in.MaxWait); err != nil {
		return Message{}, err
	}
	st, err := os.Stat(filename)
	if err != nil {
		return Message{}, err
	}
	return Message{
		FilePath:     filename,
		Exposure:     in.Telemetry.Exposure(),
		ExposureTime: st.ModTime(),
		CameraID:     in.CameraID,
	}, nil
}
