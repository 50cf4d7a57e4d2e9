package ecolor

import(
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// A LabPixel splits a colour into lightness and chroma, so contrast
// can be stretched without shifting hue.
type LabPixel struct {
	L, A, B float64
}

func ToLab(c color.Color) LabPixel {
	cf, _ := colorful.MakeColor(c)
	l, a, b := cf.Lab()
	return LabPixel{l, a, b}
}

// RGBA converts back, clamping into the sRGB gamut.
func (p LabPixel)RGBA() color.RGBA {
	r, g, b := colorful.Lab(p.L, p.A, p.B).Clamped().RGB255()
	return color.RGBA{r, g, b, 0xff}
}
