package allsky

import(
	"context"
	"errors"
	"log"
	"strings"
	"time"
)

// Supervise runs a worker over the queue, and starts a new one each
// time one dies. It returns when a worker stops cleanly (a stop
// message, or the queue closing) or the context is done.
func Supervise(ctx context.Context, in <-chan Message, p FrameProcessor, restartDelay time.Duration) {
	errs := make(chan error, 1)

	for idx := 1; ; idx++ {
		w := &Worker{ID: idx, In: in, Errors: errs, Processor: p}
		err := w.Run(ctx)

		select {
		case reported := <-errs:
			var werr *WorkerError
			if errors.As(reported, &werr) {
				log.Printf("Worker %d exception: %v\n", idx, werr.Err)
				for _, line := range strings.Split(werr.Stack, "\n") {
					log.Printf("Worker %d exception: %s\n", idx, line)
				}
			}
		default:
		}

		if err == nil || ctx.Err() != nil {
			return
		}

		log.Printf("Restarting worker in %s\n", restartDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(restartDelay):
		}
	}
}
