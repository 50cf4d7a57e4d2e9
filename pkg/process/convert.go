package process

import(
	"image"
	"image/color"
	"log"
	"math"

	"github.com/abworrall/allsky/pkg/frame"
)

// DivFactor is the linear divisor that takes samples of the given
// dynamic depth down to 8 bits.
func DivFactor(depth int) int {
	if depth <= 8 { return 1 }
	return int(math.Pow(2, float64(depth)) / 255)
}

// To8Bit scales the samples down to 8 bits, as *image.Gray or
// *image.NRGBA. Stacked maxima can exceed the detected depth, so
// values clamp at 255.
func To8Bit(b frame.Buffer, bitpix, depth int) image.Image {
	div := uint16(1)
	if bitpix != 8 {
		div = uint16(DivFactor(depth))
		log.Printf("Resampling image from %d to 8 bits\n", bitpix)
	}
	conv := func(v uint16) uint8 {
		v /= div
		if v > 255 { return 255 }
		return uint8(v)
	}

	if !b.IsColor() {
		img := image.NewGray(b.Bounds())
		for i, v := range b.Pix {
			img.Pix[i] = conv(v)
		}
		return img
	}

	img := image.NewNRGBA(b.Bounds())
	for y:=0; y<b.Height; y++ {
		for x:=0; x<b.Width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{conv(b.At(x,y,0)), conv(b.At(x,y,1)), conv(b.At(x,y,2)), 0xff})
		}
	}
	return img
}

// ToNRGBA returns a colour version of any 8 bit image, sharing nothing
// with the input.
func ToNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y:=0; y<b.Dy(); y++ {
		for x:=0; x<b.Dx(); x++ {
			out.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

func isGray(img image.Image) bool {
	_, ok := img.(*image.Gray)
	return ok
}
