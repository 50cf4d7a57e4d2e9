// Package allsky ties the pipeline together: the config, the shared
// telemetry register, and the worker that turns each captured file
// into a finished image.
package allsky

import(
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"runtime/debug"
	"time"

	"github.com/abworrall/allsky/pkg/frame"
)

// PollTimeout is how long the worker waits on its queue before going
// round again.
const PollTimeout = 23 * time.Second

var(
	// ErrTimeout means a wait on the capture side ran out of time.
	ErrTimeout = errors.New("allsky: timed out")
)

// A Message asks the worker to process one captured file. A message
// with Stop set ends the worker.
type Message struct {
	FilePath          string
	Exposure          float64    // seconds
	ExposureTime      time.Time
	Elapsed           float64
	CameraID          int
	FilenameTemplate  string     // optional override of the output file name template
	Stop              bool
}

func StopMessage() Message { return Message{Stop: true} }

func (m Message)String() string {
	if m.Stop { return "msg[stop]" }
	return fmt.Sprintf("msg[%s exp=%.6f ccd%d]", m.FilePath, m.Exposure, m.CameraID)
}

// WorkerError is what the worker reports before it dies.
type WorkerError struct {
	Err    error
	Stack  string
}

func (e *WorkerError)Error() string { return fmt.Sprintf("worker failed: %v", e.Err) }
func (e *WorkerError)Unwrap() error { return e.Err }

// A FrameProcessor does the work for one message.
type FrameProcessor interface {
	Process(m Message, count int) error
}

// A Worker pulls messages off its queue, one at a time.
type Worker struct {
	ID         int
	In         <-chan Message
	Errors     chan<- error
	Processor  FrameProcessor

	count      int
}

// Run loops until it gets a stop message, the context is done, or
// something unexpected goes wrong. Bad input files are logged and
// skipped; anything else is reported on Errors and returned.
func (w *Worker)Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &WorkerError{Err: fmt.Errorf("panic: %v", r), Stack: string(debug.Stack())}
			w.report(err)
		}
	}()

	log.Printf("Worker %d starting\n", w.ID)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-time.After(PollTimeout):
			continue

		case m, ok := <-w.In:
			if !ok || m.Stop {
				log.Printf("Worker %d stopping\n", w.ID)
				return nil
			}
			if err := w.handle(m); err != nil {
				werr := &WorkerError{Err: err, Stack: string(debug.Stack())}
				w.report(werr)
				return werr
			}
		}
	}
}

func (w *Worker)report(err error) {
	if w.Errors == nil {
		return
	}
	select {
	case w.Errors <- err:
	default:
		log.Printf("Worker %d: error channel full, dropping: %v\n", w.ID, err)
	}
}

// handle returns nil for the failures that only cost us the one frame.
func (w *Worker)handle(m Message) error {
	w.count++

	st, err := os.Stat(m.FilePath)
	if err != nil {
		log.Printf("Frame not found: %s\n", m.FilePath)
		return nil
	}
	if st.Size() == 0 {
		log.Printf("Frame is empty: %s\n", m.FilePath)
		os.Remove(m.FilePath)
		return nil
	}

	tStart := time.Now()
	err = w.Processor.Process(m, w.count)
	switch {
	case err == nil:
		log.Printf("Image processed in %0.4f s\n", time.Since(tStart).Seconds())
		return nil
	case errors.Is(err, frame.ErrDecode), errors.Is(err, fs.ErrNotExist):
		log.Printf("Dropping %s: %v\n", m.FilePath, err)
		return nil
	}
	return err
}
