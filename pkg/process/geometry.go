package process

import(
	"errors"
	"fmt"
	"image"
	"image/draw"
	"log"

	"github.com/disintegration/gift"
)

var(
	// ErrUnknownAlgorithm is a configuration error: a named rotation,
	// SCNR algorithm or orb mode that doesn't exist. Callers log it and
	// carry on without that stage.
	ErrUnknownAlgorithm = errors.New("process: unknown algorithm")
)

type Rotation int
const(
	RotateNone Rotation = iota
	Rotate90Clockwise
	Rotate90CounterClockwise
	Rotate180
)

var rotationNames = map[string]Rotation{
	"":                           RotateNone,
	"ROTATE_90_CLOCKWISE":        Rotate90Clockwise,
	"ROTATE_90_COUNTERCLOCKWISE": Rotate90CounterClockwise,
	"ROTATE_180":                 Rotate180,
}

func ParseRotation(s string) (Rotation, error) {
	if r, exists := rotationNames[s]; exists {
		return r, nil
	}
	return RotateNone, fmt.Errorf("%w: rotation %q", ErrUnknownAlgorithm, s)
}

func (r Rotation)String() string {
	for k, v := range rotationNames {
		if v == r && k != "" { return k }
	}
	return "none"
}

func (r Rotation)filter() gift.Filter {
	switch r {
	case Rotate90Clockwise:        return gift.Rotate270() // gift rotates counter-clockwise
	case Rotate90CounterClockwise: return gift.Rotate90()
	case Rotate180:                return gift.Rotate180()
	}
	return nil
}

// newLike allocates a destination of the same kind as src.
func newLike(src image.Image, r image.Rectangle) draw.Image {
	if isGray(src) {
		return image.NewGray(r)
	}
	return image.NewNRGBA(r)
}

func applyFilters(src image.Image, filters ...gift.Filter) image.Image {
	if len(filters) == 0 {
		return src
	}
	g := gift.New(filters...)
	dst := newLike(src, g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst
}

func Rotate(img image.Image, r Rotation) image.Image {
	if f := r.filter(); f != nil {
		return applyFilters(img, f)
	}
	return img
}

// Flip mirrors top-bottom (v) and/or left-right (h).
func Flip(img image.Image, v, h bool) image.Image {
	filters := []gift.Filter{}
	if v { filters = append(filters, gift.FlipVertical()) }
	if h { filters = append(filters, gift.FlipHorizontal()) }
	return applyFilters(img, filters...)
}

// Crop cuts the image down to a [x1,y1,x2,y2] region given in unbinned
// pixels. An ROI that doesn't fit is logged and ignored.
func Crop(img image.Image, roi []int, bin int) image.Image {
	if len(roi) < 4 {
		return img
	}
	if bin < 1 { bin = 1 }
	r := image.Rect(roi[0]/bin, roi[1]/bin, roi[2]/bin, roi[3]/bin)
	if r.Empty() || !r.In(img.Bounds()) {
		log.Printf("Crop ROI %v (bin %d) outside image %v, not cropping\n", roi, bin, img.Bounds())
		return img
	}

	out := applyFilters(img, gift.Crop(r))
	log.Printf("New cropped size: %d x %d\n", out.Bounds().Dx(), out.Bounds().Dy())
	return out
}

// Scale resizes by a percentage, averaging pixels.
func Scale(img image.Image, percent int) image.Image {
	if percent <= 0 || percent == 100 {
		return img
	}
	b := img.Bounds()
	w := int(float64(b.Dx()) * float64(percent) / 100.0)
	h := int(float64(b.Dy()) * float64(percent) / 100.0)
	if w < 1 || h < 1 {
		log.Printf("Scaling by %d%% leaves nothing, not scaling\n", percent)
		return img
	}
	log.Printf("Scaling image by %d%%, new size: %d x %d\n", percent, w, h)
	return applyFilters(img, gift.Resize(w, h, gift.BoxResampling))
}
