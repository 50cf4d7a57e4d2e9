package calibrate

import(
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/abworrall/allsky/pkg/frame"
)

var(
	// ErrNotFound means no usable dark was available; the frame goes on
	// uncalibrated.
	ErrNotFound = errors.New("calibrate: no calibration frame found")
)

// An Engine subtracts darks (and bad pixel maps) from light frames.
type Engine struct {
	Finder  Finder

	// Load reads a calibration frame from disk; defaults to frame.LoadFITS
	Load    func(string) (*frame.Frame, error)
}

func NewEngine(f Finder) *Engine {
	return &Engine{Finder: f, Load: frame.LoadFITS}
}

// Calibrate returns a new frame, with the best matching master
// calibration frame subtracted. A frame that has already been
// calibrated comes straight back.
func (e *Engine)Calibrate(f *frame.Frame, q Query) (*frame.Frame, error) {
	if f.Calibrated {
		return f, nil
	}
	tStart := time.Now()

	var bpm *frame.Frame
	if cf, found := e.Finder.Find(BadPixelMap, q); found {
		if b, err := e.loadMatching(cf, f); err != nil {
			log.Printf("Bad pixel map ignored: %v\n", err)
		} else {
			bpm = b
		}
	}

	cf, found := e.Finder.Find(Dark, q)
	if !found {
		return f, fmt.Errorf("%w: dark for %s", ErrNotFound, q)
	}
	dark, err := e.loadMatching(cf, f)
	if err != nil {
		return f, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	master := dark.Buffer
	if bpm != nil {
		master = MaxOf(bpm.Buffer, dark.Buffer)
	}

	out := *f
	out.Buffer = Subtract(f.Buffer, master)
	out.Calibrated = true

	log.Printf("Calibrated with %s in %0.4f s\n", cf, time.Since(tStart).Seconds())
	return &out, nil
}

func (e *Engine)loadMatching(cf CalibrationFrame, f *frame.Frame) (*frame.Frame, error) {
	if _, err := os.Stat(cf.Filename); err != nil {
		return nil, fmt.Errorf("%s missing: %v", cf, err)
	}
	load := e.Load
	if load == nil { load = frame.LoadFITS }

	c, err := load(cf.Filename)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", cf, err)
	}
	if !c.SameShape(f.Buffer) {
		return nil, fmt.Errorf("%s is %s, frame is %s", cf, c.Buffer, f.Buffer)
	}
	return c, nil
}

// Subtract does a saturating (clamped at zero) subtraction.
func Subtract(src, ref frame.Buffer) frame.Buffer {
	out := src.Clone()
	for i, v := range ref.Pix {
		if out.Pix[i] > v {
			out.Pix[i] -= v
		} else {
			out.Pix[i] = 0
		}
	}
	return out
}

// MaxOf is the element-wise maximum of two buffers.
func MaxOf(a, b frame.Buffer) frame.Buffer {
	out := a.Clone()
	for i, v := range b.Pix {
		if v > out.Pix[i] { out.Pix[i] = v }
	}
	return out
}
