package dispatch

import(
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
)

var(
	ErrQueueFull = errors.New("dispatch: queue full")
)

const DefaultQueueSize = 16

// A Queue is a bounded hand-off between the frame worker and the
// dispatcher. Producers never block for long: if the queue stays full,
// the task is refused.
type Queue struct {
	C        chan Task
	MaxWait  time.Duration
}

func NewQueue(size int) *Queue {
	if size < 1 { size = DefaultQueueSize }
	return &Queue{C: make(chan Task, size), MaxWait: 2 * time.Second}
}

func (q *Queue)Len() int { return len(q.C) }

// Enqueue retries with backoff while the queue is full, giving up
// after MaxWait.
func (q *Queue)Enqueue(t Task) error {
	op := func() error {
		select {
		case q.C <- t:
			return nil
		default:
			return ErrQueueFull
		}
	}

	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     10 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         500 * time.Millisecond,
		MaxElapsedTime:      q.MaxWait,
		Clock:               backoff.SystemClock})
	if err != nil {
		return fmt.Errorf("%w: dropping %s", ErrQueueFull, t)
	}
	return nil
}

func (q *Queue)Close() { close(q.C) }
