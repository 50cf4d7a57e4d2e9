package frame

import(
	"fmt"
	"image"
	"image/color"
)

// A Buffer is a raw sensor image; each sample is held in a uint16,
// whatever the bit depth of the source. Colour buffers are interleaved
// RGB, row-major.
type Buffer struct {
	Width    int
	Height   int
	Channels int      // 1 for mono or bayer mosaic data, 3 for RGB
	Pix      []uint16
}

func NewBuffer(w, h, channels int) Buffer {
	return Buffer{
		Width:    w,
		Height:   h,
		Channels: channels,
		Pix:      make([]uint16, w*h*channels),
	}
}

func (b Buffer)String() string {
	return fmt.Sprintf("buf[%dx%dx%d]", b.Width, b.Height, b.Channels)
}

func (b Buffer)Bounds() image.Rectangle { return image.Rect(0, 0, b.Width, b.Height) }
func (b Buffer)IsColor() bool           { return b.Channels == 3 }
func (b Buffer)Empty() bool             { return len(b.Pix) == 0 }

func (b *Buffer)Offset(x, y, c int) int         { return (y*b.Width + x)*b.Channels + c }
func (b *Buffer)At(x, y, c int) uint16          { return b.Pix[b.Offset(x,y,c)] }
func (b *Buffer)Set(x, y, c int, v uint16)      { b.Pix[b.Offset(x,y,c)] = v }

// SameShape is true if the two buffers could be combined pixel for pixel.
func (b Buffer)SameShape(b2 Buffer) bool {
	return b.Width == b2.Width && b.Height == b2.Height && b.Channels == b2.Channels
}

func (b Buffer)Clone() Buffer {
	b2 := b
	b2.Pix = make([]uint16, len(b.Pix))
	copy(b2.Pix, b.Pix)
	return b2
}

func (b Buffer)Max() uint16 {
	max := uint16(0)
	for _, v := range b.Pix {
		if v > max { max = v }
	}
	return max
}

// ToImage renders the buffer as a 16 bit image, shifting each sample
// left by `shift` bits. Shift 0 is what you want for data that is
// already 16 bit.
func (b Buffer)ToImage(shift uint) image.Image {
	bounds := b.Bounds()

	if !b.IsColor() {
		img := image.NewGray16(bounds)
		for y:=0; y<b.Height; y++ {
			for x:=0; x<b.Width; x++ {
				img.SetGray16(x, y, color.Gray16{shiftUp(b.At(x,y,0), shift)})
			}
		}
		return img
	}

	img := image.NewRGBA64(bounds)
	for y:=0; y<b.Height; y++ {
		for x:=0; x<b.Width; x++ {
			img.SetRGBA64(x, y, color.RGBA64{
				R: shiftUp(b.At(x,y,0), shift),
				G: shiftUp(b.At(x,y,1), shift),
				B: shiftUp(b.At(x,y,2), shift),
				A: 0xffff,
			})
		}
	}
	return img
}

func shiftUp(v uint16, shift uint) uint16 {
	if shift == 0 { return v }
	w := uint32(v) << shift
	if w > 0xffff { w = 0xffff }
	return uint16(w)
}

// BufferFromImage copies an image into a buffer. Gray images give a
// mono buffer, everything else RGB. `bits` is 8 or 16; 8 bit data is
// stored unscaled (0-255).
func BufferFromImage(img image.Image, bits int) Buffer {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		b := NewBuffer(w, h, 1)
		for y:=0; y<h; y++ {
			for x:=0; x<w; x++ {
				g := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16).Y
				b.Set(x, y, 0, scaleDown(uint32(g), bits))
			}
		}
		return b
	}

	b := NewBuffer(w, h, 3)
	for y:=0; y<h; y++ {
		for x:=0; x<w; x++ {
			r, g, bl, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			b.Set(x, y, 0, scaleDown(r, bits))
			b.Set(x, y, 1, scaleDown(g, bits))
			b.Set(x, y, 2, scaleDown(bl, bits))
		}
	}
	return b
}

func scaleDown(v uint32, bits int) uint16 {
	if bits == 8 { return uint16(v >> 8) }
	return uint16(v)
}
