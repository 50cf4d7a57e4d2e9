package stack

import(
	"errors"
	"log"
	"time"

	"github.com/abworrall/allsky/pkg/frame"
)

var ErrUnknownMethod = errors.New("stack: unknown method")

// RegistrationThreshold is the exposure (seconds) above which frames
// drift enough to be worth registering.
const RegistrationThreshold = 5.0

type Options struct {
	Method    Method
	Align     bool
	Split     bool
	FlipH     bool
	Register  RegisterOptions
}

// Stack combines the frames (newest first) into one buffer. A single
// frame comes back untouched. If the method is not one we know, the
// newest frame's buffer comes back unstacked.
func Stack(frames []*frame.Frame, opt Options) frame.Buffer {
	newest := frames[0]
	if len(frames) == 1 {
		return newest.Buffer
	}

	var bufs []frame.Buffer
	if opt.Align && newest.Exposure > RegistrationThreshold {
		long := []*frame.Frame{}
		for _, f := range frames {
			if f.Exposure > RegistrationThreshold {
				long = append(long, f)
			}
		}
		tStart := time.Now()
		bufs = Register(long, opt.Register)
		log.Printf("Registered %d+1 images in %0.4f s\n", len(long)-1, time.Since(tStart).Seconds())
	} else {
		for _, f := range frames {
			if !f.SameShape(newest.Buffer) {
				log.Printf("Stack skipping %s, does not match %s\n", f, newest)
				continue
			}
			bufs = append(bufs, f.Buffer)
		}
	}

	tStart := time.Now()
	stacked, err := Combine(bufs, opt.Method)
	if err != nil {
		log.Printf("Stacking failed, using the newest frame: %v\n", err)
		return newest.Buffer
	}

	if opt.Split {
		stacked = SplitScreen(newest.Buffer, stacked, opt.FlipH)
	}

	log.Printf("Stacked %d images (%s) in %0.4f s\n", len(bufs), opt.Method, time.Since(tStart).Seconds())
	return stacked
}
