package stack

import(
	"fmt"
	"image"
	"image/color"
	"log"
	"os"

	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/hdrcolor"

	"github.com/abworrall/allsky/pkg/frame"
)

// A Composite wraps a stacked buffer as a linear HDR image, each
// channel scaled so that 2^Depth is 1.0. Implements hdr.Image.
type Composite struct {
	frame.Buffer
	Depth int
}

// Implement image.Image
func (c Composite)ColorModel() color.Model       { return hdrcolor.RGBModel }
func (c Composite)Bounds() image.Rectangle       { return c.Buffer.Bounds() }
func (c Composite)At(x, y int) color.Color       { return c.HDRAt(x,y) }

// Implement hdr.Image
func (c Composite)Size() int                     { return c.Width * c.Height }
func (c Composite)HDRAt(x, y int) hdrcolor.Color {
	max := float64(uint32(1) << uint(c.depth()))
	if !c.IsColor() {
		v := float64(c.Buffer.At(x,y,0)) / max
		return hdrcolor.RGB{R: v, G: v, B: v}
	}
	return hdrcolor.RGB{
		R: float64(c.Buffer.At(x,y,0)) / max,
		G: float64(c.Buffer.At(x,y,1)) / max,
		B: float64(c.Buffer.At(x,y,2)) / max,
	}
}

func (c Composite)depth() int {
	if c.Depth < 8 || c.Depth > 16 { return 16 }
	return c.Depth
}

// WriteToHDR outputs a Radiance RGBE image.
func (c Composite)WriteToHDR(filename string) error {
	if writer, err := os.Create(filename); err != nil {
		return fmt.Errorf("Composite.WriteToHDR, open+w '%s': %v", filename, err)
	} else {
		defer writer.Close()
		err := rgbe.Encode(writer, c)
		if err != nil {
			log.Printf("Composite.WriteToHDR, encoding RGBE file: %v\n", err)
		}
		return err
	}
}
