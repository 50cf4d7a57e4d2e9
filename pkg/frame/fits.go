package frame

import(
	"fmt"
	"io"
	"math"
	"os"

	"github.com/astrogo/fitsio"
)

// ReadFITS decodes the primary HDU of a FITS stream. Plane-first
// colour data (NAXIS3 == 3) comes back interleaved.
func ReadFITS(r io.Reader) (*Frame, error) {
	fits, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("%w: fits open: %v", ErrDecode, err)
	}
	defer fits.Close()

	img, ok := fits.HDU(0).(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("%w: fits primary HDU is not an image", ErrDecode)
	}

	hdr := img.Header()
	axes := hdr.Axes()
	if len(axes) < 2 || len(axes) > 3 {
		return nil, fmt.Errorf("%w: fits image has %d axes", ErrDecode, len(axes))
	}
	w, h, planes := axes[0], axes[1], 1
	if len(axes) == 3 { planes = axes[2] }
	if planes != 1 && planes != 3 {
		return nil, fmt.Errorf("%w: fits image has %d planes", ErrDecode, planes)
	}

	f := &Frame{}
	for _, k := range hdr.Keys() {
		if c := hdr.Get(k); c != nil {
			f.Header.Cards = append(f.Header.Cards, *c)
		}
	}
	bzero, _ := f.Header.Float("BZERO")
	bscale, ok := f.Header.Float("BSCALE")
	if !ok || bscale == 0 { bscale = 1 }

	n := w * h * planes
	vals := make([]uint16, n)

	switch hdr.Bitpix() {
	case 8:
		data := make([]uint8, n)
		if err := img.Read(&data); err != nil {
			return nil, fmt.Errorf("%w: fits read: %v", ErrDecode, err)
		}
		for i, v := range data { vals[i] = physical(float64(v), bzero, bscale) }
		f.BitPix = 8

	case 16:
		data := make([]int16, n)
		if err := img.Read(&data); err != nil {
			return nil, fmt.Errorf("%w: fits read: %v", ErrDecode, err)
		}
		for i, v := range data { vals[i] = physical(float64(v), bzero, bscale) }
		f.BitPix = 16

	case 32:
		data := make([]int32, n)
		if err := img.Read(&data); err != nil {
			return nil, fmt.Errorf("%w: fits read: %v", ErrDecode, err)
		}
		for i, v := range data { vals[i] = physical(float64(v), bzero, bscale) }
		f.BitPix = 16

	case -32:
		data := make([]float32, n)
		if err := img.Read(&data); err != nil {
			return nil, fmt.Errorf("%w: fits read: %v", ErrDecode, err)
		}
		for i, v := range data { vals[i] = physical(float64(v), bzero, bscale) }
		f.BitPix = 16

	default:
		return nil, fmt.Errorf("%w: fits bitpix %d unsupported", ErrDecode, hdr.Bitpix())
	}

	f.Buffer = NewBuffer(w, h, planes)
	if planes == 1 {
		copy(f.Buffer.Pix, vals)
	} else {
		// (3,H,W) -> (H,W,3)
		plane := w * h
		for c:=0; c<3; c++ {
			for i:=0; i<plane; i++ {
				f.Buffer.Pix[i*3+c] = vals[c*plane+i]
			}
		}
	}

	if bayer, ok := f.Header.Text("BAYERPAT"); ok && planes == 1 {
		f.BayerPattern = bayer
	}
	f.UpdateBitDepth()

	return f, nil
}

func physical(v, bzero, bscale float64) uint16 {
	p := math.Round(v*bscale + bzero)
	if p < 0 { p = 0 }
	if p > 65535 { p = 65535 }
	return uint16(p)
}

// LoadFITS reads a FITS file from disk.
func LoadFITS(filename string) (*Frame, error) {
	r, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: open+r '%s': %w", ErrDecode, filename, err)
	}
	defer r.Close()

	f, err := ReadFITS(r)
	if err != nil {
		return nil, fmt.Errorf("fits '%s': %w", filename, err)
	}
	f.Filename = filename
	return f, nil
}

// WriteFITS encodes the frame as a single image HDU. 16 bit data is
// stored signed with BZERO=32768, colour data plane-first.
func WriteFITS(w io.Writer, f *Frame) error {
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()

	b := f.Buffer
	dims := []int{b.Width, b.Height}
	if b.Channels > 1 {
		dims = append(dims, b.Channels)
	}

	cards := f.Header.fitsCards()
	if f.BayerPattern != "" && b.Channels == 1 {
		h := Header{Cards: cards}
		h.Set("BAYERPAT", f.BayerPattern, "")
		cards = h.Cards
	}

	bitpix := 16
	if f.BitPix == 8 { bitpix = 8 }
	if bitpix == 16 {
		cards = append(cards, fitsio.Card{Name: "BZERO", Value: 32768}, fitsio.Card{Name: "BSCALE", Value: 1.0})
	}

	im := fitsio.NewImage(bitpix, dims)
	defer im.Close()
	if err := im.Header().Append(cards...); err != nil {
		return err
	}

	// Back to plane-first
	plane := b.Width * b.Height
	src := func(i int) uint16 {
		if b.Channels == 1 { return b.Pix[i] }
		c, p := i/plane, i%plane
		return b.Pix[p*b.Channels+c]
	}

	if bitpix == 8 {
		data := make([]uint8, len(b.Pix))
		for i := range data {
			v := src(i)
			if v > 255 { v = 255 }
			data[i] = uint8(v)
		}
		err = im.Write(data)
	} else {
		data := make([]int16, len(b.Pix))
		for i := range data {
			data[i] = int16(src(i) - 32768)
		}
		err = im.Write(data)
	}
	if err != nil {
		return err
	}

	return fits.Write(im)
}

// SaveFITS writes the frame to a new file.
func SaveFITS(f *Frame, filename string) error {
	if writer, err := os.Create(filename); err != nil {
		return fmt.Errorf("open+w '%s': %v", filename, err)
	} else {
		defer writer.Close()
		return WriteFITS(writer, f)
	}
}
