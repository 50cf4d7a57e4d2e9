package frame

import(
	"errors"
	"fmt"
	"time"
)

var(
	// ErrDecode means the source file could not be turned into a frame.
	// Callers log it and drop the frame.
	ErrDecode = errors.New("frame: cannot decode source")
)

// A Line is a detected line segment (meteor or satellite trail
// candidate), in pixel coordinates.
type Line struct {
	X1, Y1 int
	X2, Y2 int
}

// A Star is a detected point source.
type Star struct {
	X, Y   float64
	Flux   float64
	Radius float64
}

// A Frame is one captured exposure, working its way through the
// pipeline. The Buffer is replaced wholesale by the stages that
// change its shape.
type Frame struct {
	Buffer

	BitPix        int        // storage depth of the samples, 8 or 16
	BitDepth      int        // detected dynamic range, 8..16
	BayerPattern  string     // e.g. "RGGB"; empty for mono or already debayered data

	Exposure      float64    // seconds
	ExposureTime  time.Time
	Elapsed       float64    // seconds the capture took
	CameraID      int

	Calibrated    bool
	SQM           float64
	HasSQM        bool

	Lines       []Line
	Stars       []Star

	Header        Header
	Filename      string     // where it was loaded from
}

func (f Frame)String() string {
	cal := ""
	if f.Calibrated { cal = ", calibrated" }
	bayer := ""
	if f.BayerPattern != "" { bayer = ", "+f.BayerPattern }
	return fmt.Sprintf("Frame[ccd%d %s %s, exp=%.6f, bitpix=%d, depth=%d%s%s]",
		f.CameraID, f.ExposureTime.Format("20060102_150405"), f.Buffer, f.Exposure,
		f.BitPix, f.BitDepth, bayer, cal)
}

// Clone returns a deep copy, so a stage can mutate without aliasing
// the original buffer.
func (f *Frame)Clone() *Frame {
	f2 := *f
	f2.Buffer = f.Buffer.Clone()
	f2.Header = f.Header.Clone()
	f2.Lines = append([]Line{}, f.Lines...)
	f2.Stars = append([]Star{}, f.Stars...)
	return &f2
}

// UpdateBitDepth re-measures the dynamic range of the samples.
func (f *Frame)UpdateBitDepth() {
	if f.BitPix == 8 {
		f.BitDepth = 8
		return
	}
	f.BitDepth = DetectBitDepth(f.Buffer.Max())
}

// DetectBitDepth works out the conservative number of significant
// bits needed to hold `max`.
func DetectBitDepth(max uint16) int {
	switch {
	case max > 32768: return 16
	case max > 16384: return 15
	case max > 8192:  return 14
	case max > 4096:  return 13
	case max > 2048:  return 12
	case max > 1024:  return 11
	case max > 512:   return 10
	case max > 256:   return 9
	default:          return 8
	}
}
