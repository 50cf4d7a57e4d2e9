package detect

import(
	"image"

	"github.com/fogleman/gg"

	"github.com/abworrall/allsky/pkg/frame"
)

// Draw overlays the detections: a circle around each star, and each
// line segment.
func Draw(img image.Image, stars []frame.Star, lines []frame.Line) image.Image {
	if len(stars) == 0 && len(lines) == 0 {
		return img
	}

	dc := gg.NewContextForImage(img)
	dc.SetLineWidth(1)

	dc.SetRGB(0.1, 0.9, 0.1)
	for _, s := range stars {
		r := s.Radius + 3
		dc.DrawCircle(s.X, s.Y, r)
		dc.Stroke()
	}

	dc.SetLineWidth(3)
	dc.SetRGB(0.9, 0.1, 0.1)
	for _, l := range lines {
		dc.DrawLine(float64(l.X1), float64(l.Y1), float64(l.X2), float64(l.Y2))
		dc.Stroke()
	}

	return dc.Image()
}
