package output

import(
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"
)

var(
	ErrUnknownFormat = errors.New("output: unknown image format")
)

// EncodeImage writes an image in the format named by ext. The level
// means quality (0-100) for jpg, and compression (0-9) for png and
// tif.
func EncodeImage(w io.Writer, img image.Image, ext string, level int) error {
	switch strings.ToLower(ext) {
	case "jpg", "jpeg":
		if level <= 0 || level > 100 { level = 90 }
		return jpeg.Encode(w, img, &jpeg.Options{Quality: level})

	case "png":
		enc := png.Encoder{CompressionLevel: pngCompression(level)}
		return enc.Encode(w, img)

	case "tif", "tiff":
		opt := &tiff.Options{Compression: tiff.Uncompressed}
		if level > 0 { opt.Compression = tiff.Deflate }
		return tiff.Encode(w, img, opt)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
}

func pngCompression(level int) png.CompressionLevel {
	switch {
	case level <= 0: return png.NoCompression
	case level <= 3: return png.BestSpeed
	case level <= 6: return png.DefaultCompression
	}
	return png.BestCompression
}

// WriteImageFile encodes into a temp file next to the destination,
// and renames it into place; readers never see a partial image.
func WriteImageFile(img image.Image, filename, ext string, level int) error {
	if err := mkdirFor(filename); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(filename), ".tmp-*."+ext)
	if err != nil {
		return fmt.Errorf("open+w temp for '%s': %v", filename, err)
	}
	defer os.Remove(tmp.Name())

	if err := EncodeImage(tmp, img, ext, level); err != nil {
		tmp.Close()
		return fmt.Errorf("encode '%s': %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filename)
}
