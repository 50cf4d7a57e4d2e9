package photometry

import(
	"image"
	"math"

	"github.com/abworrall/allsky/pkg/ecolor"
	"github.com/abworrall/allsky/pkg/frame"
)

// MinADU is the floor applied to brightness measurements, so the
// exposure maths never divides by zero.
const MinADU = 0.1

// MeasureADU is the mean luminance of the 8 bit image, over the
// nonzero pixels of the mask. A nil mask means the whole frame.
func MeasureADU(img image.Image, mask *image.Gray) float64 {
	b := img.Bounds()
	sum, n := 0.0, 0

	for y:=0; y<b.Dy(); y++ {
		for x:=0; x<b.Dx(); x++ {
			if mask != nil && mask.GrayAt(x, y).Y == 0 {
				continue
			}
			sum += float64(ecolor.Luma8(img.At(b.Min.X+x, b.Min.Y+y)))
			n++
		}
	}

	adu := 0.0
	if n > 0 { adu = sum / float64(n) }
	if adu <= 0 || math.IsNaN(adu) {
		adu = MinADU
	}
	return adu
}

// MaskedMean is the mean of the raw samples under the mask; colour
// samples are converted to luminance first.
func MaskedMean(b frame.Buffer, mask *image.Gray) float64 {
	sum, n := 0.0, 0
	for y:=0; y<b.Height; y++ {
		for x:=0; x<b.Width; x++ {
			if mask != nil && mask.GrayAt(x, y).Y == 0 {
				continue
			}
			if b.IsColor() {
				sum += ecolor.Luma(float64(b.At(x,y,0)), float64(b.At(x,y,1)), float64(b.At(x,y,2)))
			} else {
				sum += float64(b.At(x, y, 0))
			}
			n++
		}
	}
	if n == 0 { return 0 }
	return sum / float64(n)
}

