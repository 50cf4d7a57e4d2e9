package stack

import(
	"github.com/abworrall/allsky/pkg/frame"
)

// A Window holds the most recent frames, newest first. At night it
// holds up to Capacity frames; by day only the latest.
type Window struct {
	Capacity int
	frames   []*frame.Frame
}

func NewWindow(capacity int) *Window {
	if capacity < 1 { capacity = 1 }
	return &Window{Capacity: capacity}
}

func (w *Window)Add(f *frame.Frame, night bool) {
	if !night {
		w.frames = w.frames[:0]
	}
	for len(w.frames) >= w.Capacity {
		w.frames[len(w.frames)-1] = nil
		w.frames = w.frames[:len(w.frames)-1]
	}
	w.frames = append([]*frame.Frame{f}, w.frames...)
}

func (w *Window)Len() int                 { return len(w.frames) }
func (w *Window)Frames() []*frame.Frame   { return w.frames }
