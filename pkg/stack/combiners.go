package stack

import(
	"fmt"
	"strings"

	"github.com/abworrall/allsky/pkg/frame"
)

// Method is how the samples at one location across the stack get
// combined.
type Method int

const(
	MethodUnknown Method = iota
	Average
	Maximum
	Minimum
)

func (m Method)String() string {
	switch m {
	case Average: return "average"
	case Maximum: return "maximum"
	case Minimum: return "minimum"
	default:      return "unknown"
	}
}

func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "average", "mean": return Average, nil
	case "maximum", "max":  return Maximum, nil
	case "minimum", "min":  return Minimum, nil
	default:
		return MethodUnknown, fmt.Errorf("%w: stacking method '%s'", ErrUnknownMethod, s)
	}
}

// A CombinerFunc merges one sample from each buffer.
type CombinerFunc func(vals []uint16) uint16

func (m Method)Combiner() (CombinerFunc, error) {
	switch m {
	case Average: return MergeAverage, nil
	case Maximum: return MergeMaximum, nil
	case Minimum: return MergeMinimum, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, m)
	}
}

// {{{ Combine

// Combine merges same-shaped buffers element by element.
func Combine(bufs []frame.Buffer, m Method) (frame.Buffer, error) {
	if len(bufs) == 0 {
		return frame.Buffer{}, fmt.Errorf("combine: no buffers")
	}
	f, err := m.Combiner()
	if err != nil {
		return frame.Buffer{}, err
	}
	for _, b := range bufs[1:] {
		if !b.SameShape(bufs[0]) {
			return frame.Buffer{}, fmt.Errorf("combine: %s does not match %s", b, bufs[0])
		}
	}

	out := frame.NewBuffer(bufs[0].Width, bufs[0].Height, bufs[0].Channels)
	vals := make([]uint16, len(bufs))
	for i := range out.Pix {
		for j, b := range bufs {
			vals[j] = b.Pix[i]
		}
		out.Pix[i] = f(vals)
	}
	return out, nil
}

// }}}

// {{{ MergeAverage, MergeMaximum, MergeMinimum

// MergeAverage is the floor of the mean.
func MergeAverage(vals []uint16) uint16 {
	sum := uint64(0)
	for _, v := range vals {
		sum += uint64(v)
	}
	return uint16(sum / uint64(len(vals)))
}

func MergeMaximum(vals []uint16) uint16 {
	max := vals[0]
	for _, v := range vals[1:] {
		if v > max { max = v }
	}
	return max
}

func MergeMinimum(vals []uint16) uint16 {
	min := vals[0]
	for _, v := range vals[1:] {
		if v < min { min = v }
	}
	return min
}

// }}}
