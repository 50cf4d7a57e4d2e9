package ecolor

import(
	"image/color"
)

// Rec.601 luma weights, in 14 bit fixed point for the 8 bit path.
const(
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114

	lumaRFixed = 4899
	lumaGFixed = 9617
	lumaBFixed = 1868
	lumaShift  = 14
)

func Luma(r, g, b float64) float64 {
	return lumaR*r + lumaG*g + lumaB*b
}

// Luma8 converts any colour to an 8 bit luma value, rounding the same
// way the usual fixed point implementations do.
func Luma8(c color.Color) uint8 {
	switch g := c.(type) {
	case color.Gray:
		return g.Y
	}
	r, g, b, _ := c.RGBA()
	r8, g8, b8 := r>>8, g>>8, b>>8
	return uint8((r8*lumaRFixed + g8*lumaGFixed + b8*lumaBFixed + (1 << (lumaShift-1))) >> lumaShift)
}
