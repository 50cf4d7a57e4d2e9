package photometry

import(
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
)

// RectMask makes a mask with a filled rectangle. The corners are
// inclusive, as given in the config.
func RectMask(w, h int, x1, y1, x2, y2 int) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, w, h))
	r := image.Rect(x1, y1, x2+1, y2+1).Intersect(mask.Bounds())
	draw.Draw(mask, r, image.NewUniform(color.Gray{255}), image.Point{}, draw.Src)
	return mask
}

// ROIMask scales a configured [x1,y1,x2,y2] region of interest by the
// binning. If the ROI isn't usable, the central region spanning
// `frac` of each dimension either side of the centre is used instead.
func ROIMask(w, h int, roi []int, bin int, frac float64) *image.Gray {
	if bin < 1 { bin = 1 }
	if len(roi) >= 4 {
		return RectMask(w, h, roi[0]/bin, roi[1]/bin, roi[2]/bin, roi[3]/bin)
	}

	x1 := int(float64(w)/2 - float64(w)*frac)
	y1 := int(float64(h)/2 - float64(h)*frac)
	x2 := int(float64(w)/2 + float64(w)*frac)
	y2 := int(float64(h)/2 + float64(h)*frac)
	return RectMask(w, h, x1, y1, x2, y2)
}

// ADUMask is the region the exposure controller looks at: the
// detection mask if there is one, else the ADU ROI, else the middle
// of the frame (w/2 +/- w/3).
func ADUMask(w, h int, detectMask *image.Gray, roi []int, bin int) *image.Gray {
	if detectMask != nil && detectMask.Bounds().Dx() == w && detectMask.Bounds().Dy() == h {
		return detectMask
	}
	if len(roi) < 4 {
		log.Printf("Using central ROI for ADU calculations\n")
	}
	return ROIMask(w, h, roi, bin, 1.0/3.0)
}

// LoadMask reads a detection mask image; any nonzero pixel is inside.
func LoadMask(filename string) (*image.Gray, error) {
	reader, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open+r mask '%s': %v", filename, err)
	}
	defer reader.Close()

	img, _, err := image.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("decode mask '%s': %v", filename, err)
	}

	b := img.Bounds()
	mask := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y:=0; y<b.Dy(); y++ {
		for x:=0; x<b.Dx(); x++ {
			if color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y > 0 {
				mask.SetGray(x, y, color.Gray{255})
			}
		}
	}
	return mask, nil
}
