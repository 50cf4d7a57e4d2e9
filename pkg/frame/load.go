package frame

import(
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/tiff"
)

// Metadata is what the capture side knows about an exposure, plus the
// bits of telemetry and config that get injected into synthetic
// headers.
type Metadata struct {
	Exposure      float64
	ExposureTime  time.Time
	Elapsed       float64
	CameraID      int

	Gain          int
	Binning       int
	Temp          float64
	Latitude      float64
	Longitude     float64

	CFAPattern    string       // forced onto sensor-raw frames, if set
	ExtraHeaders  [][2]string  // merged into every header
	RemoveSource  bool         // unlink the source file after loading
}

// Load turns a just-captured file into a Frame, picking the decoder
// by file extension.
func Load(filename string, md Metadata) (*Frame, error) {
	var f *Frame
	var err error

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".fit", ".fits", ".fts":
		f, err = LoadFITS(filename)
	case ".jpg", ".jpeg", ".png":
		f, err = loadRaster(filename)
	case ".tif", ".tiff":
		f, err = loadTIFF(filename)
	case ".dng":
		f, err = loadDNG(filename, md)
	default:
		err = fmt.Errorf("%w: unsupported file type '%s'", ErrDecode, ext)
	}
	if err != nil {
		return nil, err
	}

	f.Filename      = filename
	f.Exposure      = md.Exposure
	f.ExposureTime  = md.ExposureTime
	f.Elapsed       = md.Elapsed
	f.CameraID      = md.CameraID

	f.Header.Set("OBJECT", "AllSky", "")
	f.Header.Set("TELESCOP", "allsky", "")
	f.Header.MergeExtra(md.ExtraHeaders)

	if md.RemoveSource {
		if err := os.Remove(filename); err != nil {
			log.Printf("Unable to remove %s: %v\n", filename, err)
		}
	}

	return f, nil
}

// loadRaster handles the 8 bit formats.
func loadRaster(filename string) (*Frame, error) {
	reader, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: open+r '%s': %w", ErrDecode, filename, err)
	}
	defer reader.Close()

	var img image.Image
	if ext := strings.ToLower(filepath.Ext(filename)); ext == ".png" {
		img, err = png.Decode(reader)
	} else {
		img, err = jpeg.Decode(reader)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: '%s': %v", ErrDecode, filename, err)
	}

	f := &Frame{
		Buffer:   BufferFromImage(img, 8),
		BitPix:   8,
		BitDepth: 8,
	}

	if _, err := reader.Seek(0, 0); err == nil {
		if ex, err := exif.Decode(reader); err == nil {
			exifToHeader(ex, &f.Header)
		}
	}

	return f, nil
}

func loadTIFF(filename string) (*Frame, error) {
	reader, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: open+r '%s': %w", ErrDecode, filename, err)
	}
	defer reader.Close()

	img, err := tiff.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: tiff '%s': %v", ErrDecode, filename, err)
	}

	bits := 16
	switch img.(type) {
	case *image.Gray, *image.RGBA, *image.NRGBA, *image.Paletted:
		bits = 8
	}

	f := &Frame{
		Buffer: BufferFromImage(img, bits),
		BitPix: bits,
	}
	f.UpdateBitDepth()

	if _, err := reader.Seek(0, 0); err == nil {
		if ex, err := exif.Decode(reader); err == nil {
			exifToHeader(ex, &f.Header)
		}
	}

	return f, nil
}

// exifToHeader keeps the few EXIF fields that are worth carrying into
// a FITS header.
func exifToHeader(ex *exif.Exif, h *Header) {
	if tag, err := ex.Get(exif.Model); err == nil {
		if s, err := tag.StringVal(); err == nil {
			h.Set("INSTRUME", strings.TrimSpace(s), "")
		}
	}
	if tag, err := ex.Get(exif.ISOSpeedRatings); err == nil {
		if v, err := tag.Int(0); err == nil {
			h.Set("GAIN", v, "ISO")
		}
	}
	if tag, err := ex.Get(exif.ExposureTime); err == nil {
		if num, denom, err := tag.Rat2(0); err == nil && denom != 0 {
			h.Set("EXPTIME", float64(num)/float64(denom), "")
		}
	}
}
