package frame

import(
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"
	"strings"

	exiftiff "github.com/rwcarlsen/goexif/tiff"
)

// The TIFF/DNG tags needed to find and unpack the sensor mosaic
const(
	tagNewSubfileType  = 254
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagStripByteCounts = 279
	tagSubIFDs         = 330
	tagCFARepeatDim    = 33421
	tagCFAPattern      = 33422

	photometricCFA     = 32803
)

// loadDNG unpacks an uncompressed CFA mosaic from a DNG, and wraps it
// with a synthetic header.
func loadDNG(filename string, md Metadata) (*Frame, error) {
	contents, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: read '%s': %w", ErrDecode, filename, err)
	}

	f, err := decodeDNG(contents)
	if err != nil {
		return nil, fmt.Errorf("dng '%s': %w", filename, err)
	}

	if md.CFAPattern != "" {
		f.BayerPattern = strings.ToUpper(md.CFAPattern)
	}

	h := &f.Header
	h.Set("IMAGETYP", "Light Frame", "")
	h.Set("INSTRUME", "libcamera", "")
	h.Set("EXPTIME", md.Exposure, "")
	h.Set("XBINNING", 1, "")
	h.Set("YBINNING", 1, "")
	h.Set("GAIN", md.Gain, "")
	h.Set("CCD-TEMP", md.Temp, "")
	h.Set("SITELAT", md.Latitude, "")
	h.Set("SITELONG", md.Longitude, "")
	h.Set("DATE-OBS", md.ExposureTime.UTC().Format("2006-01-02T15:04:05.000000"), "")
	if f.BayerPattern != "" {
		h.Set("BAYERPAT", f.BayerPattern, "")
	}

	return f, nil
}

func decodeDNG(contents []byte) (*Frame, error) {
	t, err := exiftiff.Decode(bytes.NewReader(contents))
	if err != nil {
		return nil, fmt.Errorf("%w: tiff structure: %v", ErrDecode, err)
	}

	// The raw image usually lives in a SubIFD; the top level chain
	// holds previews.
	dirs := append([]*exiftiff.Dir{}, t.Dirs...)
	for _, d := range t.Dirs {
		tag := findTag(d, tagSubIFDs)
		if tag == nil {
			continue
		}
		for _, off := range tagInts(tag, t.Order) {
			r := bytes.NewReader(contents)
			if _, err := r.Seek(int64(off), io.SeekStart); err != nil {
				continue
			}
			if sub, _, err := exiftiff.DecodeDir(r, t.Order); err == nil {
				dirs = append(dirs, sub)
			}
		}
	}

	var raw *exiftiff.Dir
	for _, d := range dirs {
		if dirInt(d, tagPhotometric, t.Order) == photometricCFA {
			raw = d
			break
		}
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: no CFA image in DNG", ErrDecode)
	}

	w := dirInt(raw, tagImageWidth, t.Order)
	h := dirInt(raw, tagImageLength, t.Order)
	bps := dirInt(raw, tagBitsPerSample, t.Order)
	if c := dirInt(raw, tagCompression, t.Order); c != 1 {
		return nil, fmt.Errorf("%w: DNG compression %d unsupported", ErrDecode, c)
	}
	if spp := dirInt(raw, tagSamplesPerPixel, t.Order); spp > 1 {
		return nil, fmt.Errorf("%w: CFA with %d samples per pixel", ErrDecode, spp)
	}
	if bps != 8 && bps != 16 {
		return nil, fmt.Errorf("%w: DNG %d bits per sample unsupported", ErrDecode, bps)
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: DNG size %dx%d", ErrDecode, w, h)
	}

	offsets := tagInts(findTag(raw, tagStripOffsets), t.Order)
	counts := tagInts(findTag(raw, tagStripByteCounts), t.Order)
	if len(offsets) == 0 || len(offsets) != len(counts) {
		return nil, fmt.Errorf("%w: DNG strips missing", ErrDecode)
	}

	data := []byte{}
	for i := range offsets {
		start, end := offsets[i], offsets[i]+counts[i]
		if start < 0 || end > len(contents) {
			return nil, fmt.Errorf("%w: DNG strip %d out of range", ErrDecode, i)
		}
		data = append(data, contents[start:end]...)
	}

	bytesPer := bps / 8
	if len(data) < w*h*bytesPer {
		return nil, fmt.Errorf("%w: DNG has %d bytes of pixels, need %d", ErrDecode, len(data), w*h*bytesPer)
	}

	f := &Frame{
		Buffer: NewBuffer(w, h, 1),
		BitPix: 16,
	}
	if bps == 8 { f.BitPix = 8 }
	for i:=0; i<w*h; i++ {
		if bytesPer == 1 {
			f.Pix[i] = uint16(data[i])
		} else {
			f.Pix[i] = t.Order.Uint16(data[2*i:])
		}
	}
	f.BayerPattern = cfaPattern(raw, t.Order)
	f.UpdateBitDepth()

	return f, nil
}

func findTag(d *exiftiff.Dir, id uint16) *exiftiff.Tag {
	if d == nil { return nil }
	for _, tag := range d.Tags {
		if tag.Id == id { return tag }
	}
	return nil
}

func dirInt(d *exiftiff.Dir, id uint16, order binary.ByteOrder) int {
	if vals := tagInts(findTag(d, id), order); len(vals) > 0 {
		return vals[0]
	}
	return 0
}

// tagInts decodes the raw tag bytes, which sidesteps goexif's
// stricter type checks for the IFD-pointer tag type.
func tagInts(tag *exiftiff.Tag, order binary.ByteOrder) []int {
	if tag == nil { return nil }

	size := 0
	switch tag.Type {
	case exiftiff.DTByte, exiftiff.DTUndefined:
		size = 1
	case exiftiff.DTShort:
		size = 2
	default:
		size = 4
	}

	out := []int{}
	for i:=0; i<int(tag.Count) && (i+1)*size <= len(tag.Val); i++ {
		switch size {
		case 1: out = append(out, int(tag.Val[i]))
		case 2: out = append(out, int(order.Uint16(tag.Val[2*i:])))
		case 4: out = append(out, int(order.Uint32(tag.Val[4*i:])))
		}
	}
	return out
}

// cfaPattern turns a 2x2 CFAPattern tag into "RGGB" style.
func cfaPattern(d *exiftiff.Dir, order binary.ByteOrder) string {
	dims := tagInts(findTag(d, tagCFARepeatDim), order)
	pat := tagInts(findTag(d, tagCFAPattern), order)
	if len(dims) != 2 || dims[0] != 2 || dims[1] != 2 || len(pat) != 4 {
		return ""
	}

	str := ""
	for _, p := range pat {
		switch p {
		case 0: str += "R"
		case 1: str += "G"
		case 2: str += "B"
		default:
			return ""
		}
	}
	return str
}
