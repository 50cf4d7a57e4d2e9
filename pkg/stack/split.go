package stack

import(
	"github.com/abworrall/allsky/pkg/frame"
)

// SplitScreen puts the unstacked frame on the left and the stacked
// one on the right, with a one pixel black seam down the middle. If
// the image is going to be flipped horizontally later, the sides are
// swapped now so they end up the right way round.
func SplitScreen(original, stacked frame.Buffer, flipH bool) frame.Buffer {
	left, right := original, stacked
	if flipH {
		left, right = stacked, original
	}

	out := frame.NewBuffer(left.Width, left.Height, left.Channels)
	half := left.Width / 2

	for y:=0; y<out.Height; y++ {
		for x:=0; x<out.Width; x++ {
			for c:=0; c<out.Channels; c++ {
				switch {
				case x < half:
					out.Set(x, y, c, left.At(x, y, c))
				case x > half:
					out.Set(x, y, c, right.At(x, y, c))
				}
			}
		}
	}
	return out
}
