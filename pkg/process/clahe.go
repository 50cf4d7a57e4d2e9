package process

import(
	"image"
	"image/color"
	"math"

	"github.com/abworrall/allsky/pkg/ecolor"
)

const(
	CLAHEClipLimit = 3.0
	CLAHETiles     = 8
)

// CLAHE is contrast limited adaptive histogram equalization. Colour
// images are equalized on Lab lightness only, so hues don't shift.
func CLAHE(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if g, ok := img.(*image.Gray); ok {
		out := image.NewGray(image.Rect(0, 0, w, h))
		lum := make([]uint8, w*h)
		for y:=0; y<h; y++ {
			copy(lum[y*w:(y+1)*w], g.Pix[y*g.Stride:y*g.Stride+w])
		}
		copy(out.Pix, equalize(lum, w, h, CLAHEClipLimit, CLAHETiles))
		return out
	}

	src := ToNRGBA(img)
	lab := make([]ecolor.LabPixel, w*h)
	lum := make([]uint8, w*h)
	for i := range lab {
		p := src.Pix[i*4:]
		lab[i] = ecolor.ToLab(color.NRGBA{p[0], p[1], p[2], 0xff})
		lum[i] = uint8(math.Round(math.Min(1, math.Max(0, lab[i].L)) * 255))
	}

	lum = equalize(lum, w, h, CLAHEClipLimit, CLAHETiles)

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range lab {
		lab[i].L = float64(lum[i]) / 255
		c := lab[i].RGBA()
		out.Pix[i*4], out.Pix[i*4+1], out.Pix[i*4+2], out.Pix[i*4+3] = c.R, c.G, c.B, 0xff
	}
	return out
}

// equalize runs CLAHE over a single 8 bit channel. Each tile gets a
// clipped histogram and its own lookup table; pixels interpolate
// between the tables of the four nearest tile centres.
func equalize(pix []uint8, w, h int, clip float64, tiles int) []uint8 {
	tw := (w + tiles - 1) / tiles
	th := (h + tiles - 1) / tiles
	if tw < 1 { tw = 1 }
	if th < 1 { th = 1 }
	nx := (w + tw - 1) / tw
	ny := (h + th - 1) / th

	luts := make([][256]uint8, nx*ny)
	for ty:=0; ty<ny; ty++ {
		for tx:=0; tx<nx; tx++ {
			x0, y0 := tx*tw, ty*th
			x1, y1 := minInt(x0+tw, w), minInt(y0+th, h)
			luts[ty*nx+tx] = tileLUT(pix, w, x0, y0, x1, y1, clip)
		}
	}

	out := make([]uint8, len(pix))
	for y:=0; y<h; y++ {
		fy := (float64(y) + 0.5) / float64(th) - 0.5
		ty0, ay := tileIndex(fy, ny)
		ty1 := minInt(ty0+1, ny-1)

		for x:=0; x<w; x++ {
			fx := (float64(x) + 0.5) / float64(tw) - 0.5
			tx0, ax := tileIndex(fx, nx)
			tx1 := minInt(tx0+1, nx-1)

			v := pix[y*w+x]
			top := (1-ax)*float64(luts[ty0*nx+tx0][v]) + ax*float64(luts[ty0*nx+tx1][v])
			bot := (1-ax)*float64(luts[ty1*nx+tx0][v]) + ax*float64(luts[ty1*nx+tx1][v])
			out[y*w+x] = uint8(math.Round((1-ay)*top + ay*bot))
		}
	}
	return out
}

func tileIndex(f float64, n int) (int, float64) {
	if f <= 0 { return 0, 0 }
	i := int(f)
	if i >= n-1 { return n-1, 0 }
	return i, f - float64(i)
}

func tileLUT(pix []uint8, w, x0, y0, x1, y1 int, clip float64) [256]uint8 {
	hist := [256]int{}
	for y:=y0; y<y1; y++ {
		for x:=x0; x<x1; x++ {
			hist[pix[y*w+x]]++
		}
	}
	area := (x1 - x0) * (y1 - y0)

	limit := int(clip * float64(area) / 256)
	if limit < 1 { limit = 1 }
	excess := 0
	for i := range hist {
		if hist[i] > limit {
			excess += hist[i] - limit
			hist[i] = limit
		}
	}
	bonus, rem := excess/256, excess%256
	for i := range hist {
		hist[i] += bonus
		if i < rem { hist[i]++ }
	}

	lut := [256]uint8{}
	sum := 0
	scale := 255.0 / float64(area)
	for i := range hist {
		sum += hist[i]
		lut[i] = uint8(math.Min(255, math.Round(float64(sum) * scale)))
	}
	return lut
}

func minInt(a, b int) int {
	if a < b { return a }
	return b
}
