package output

import(
	"fmt"
	"image"
	"log"
	"path/filepath"
	"time"

	"github.com/abworrall/allsky/pkg/frame"
	"github.com/abworrall/allsky/pkg/stack"
)

// A Saver knows where everything goes.
type Saver struct {
	ImageFolder       string
	FileType          string           // jpg, png or tif
	Compression       map[string]int   // per file type
	DaytimeTimelapse  bool
	ExportFolder      string
	ExportType        string           // "", png, tif or hdr
	FilenameTemplate  string
}

// Saved records where an image ended up. Timelapse is empty when the
// frame wasn't kept for the timelapse.
type Saved struct {
	Latest     string
	Timelapse  string
}

func (s *Saver)LatestFile() string {
	return filepath.Join(s.ImageFolder, "latest." + s.FileType)
}

// WriteImage always refreshes the latest image. The dated copy for
// the timelapse is skipped in focus mode, by day if daytime timelapses
// are off, and if the file already exists.
func (s *Saver)WriteImage(img image.Image, t time.Time, cameraID int, night, focus bool) (Saved, error) {
	tStart := time.Now()
	saved := Saved{Latest: s.LatestFile()}
	level := s.Compression[s.FileType]

	if err := WriteImageFile(img, saved.Latest, s.FileType, level); err != nil {
		return Saved{}, err
	}
	log.Printf("Image compressed in %0.4f s\n", time.Since(tStart).Seconds())

	if focus {
		log.Printf("Focus mode enabled, not saving timelapse image\n")
		return saved, nil
	}
	if !night && !s.DaytimeTimelapse {
		log.Printf("Daytime timelapse is disabled\n")
		return saved, nil
	}

	filename := filepath.Join(HourFolder(s.ImageFolder, t, night), FileName(s.FilenameTemplate, cameraID, t, s.FileType))
	if exists(filename) {
		log.Printf("File exists: %s (skipping)\n", filename)
		return saved, nil
	}
	if err := WriteImageFile(img, filename, s.FileType, level); err != nil {
		return saved, err
	}
	saved.Timelapse = filename
	return saved, nil
}

// ExportRaw writes the calibrated (and stacked) data before it gets
// squashed to 8 bits; 16 bit data is shifted up from the detected
// depth so it fills the range.
func (s *Saver)ExportRaw(b frame.Buffer, bitpix, depth int, t time.Time, cameraID int, night bool) (string, error) {
	if s.ExportType == "" {
		return "", nil
	}
	if s.ExportFolder == "" {
		return "", fmt.Errorf("raw export to %s needs an export folder", s.ExportType)
	}

	tmpl := "raw_" + s.FilenameTemplate
	if s.FilenameTemplate == "" { tmpl = "raw_" + DefaultFilenameTemplate }
	filename := filepath.Join(HourFolder(s.ExportFolder, t, night), FileName(tmpl, cameraID, t, s.ExportType))
	log.Printf("RAW filename: %s\n", filename)
	tStart := time.Now()

	var err error
	switch s.ExportType {
	case "hdr":
		if err = mkdirFor(filename); err == nil {
			err = stack.Composite{Buffer: b, Depth: depth}.WriteToHDR(filename)
		}
	case "png", "tif", "tiff":
		err = WriteImageFile(RawImage(b, bitpix, depth), filename, s.ExportType, s.Compression[s.ExportType])
	default:
		err = fmt.Errorf("%w: raw export %q", ErrUnknownFormat, s.ExportType)
	}
	if err != nil {
		return "", err
	}

	log.Printf("Raw image written in %0.4f s\n", time.Since(tStart).Seconds())
	return filename, nil
}

// RawImage is the 8 bit data as is, or 16 bit data shifted up from
// its detected depth.
func RawImage(b frame.Buffer, bitpix, depth int) image.Image {
	if bitpix == 8 {
		return To8BitUnscaled(b)
	}
	shift := 0
	if depth >= 8 && depth < 16 {
		shift = 16 - depth
		log.Printf("Upscaling data from %d to 16 bit\n", depth)
	}
	return b.ToImage(uint(shift))
}

// To8BitUnscaled copies samples that are already 8 bit wide into an
// 8 bit image.
func To8BitUnscaled(b frame.Buffer) image.Image {
	if !b.IsColor() {
		img := image.NewGray(b.Bounds())
		for i, v := range b.Pix {
			img.Pix[i] = uint8(v)
		}
		return img
	}
	img := image.NewNRGBA(b.Bounds())
	for i:=0; i<b.Width*b.Height; i++ {
		img.Pix[i*4+0] = uint8(b.Pix[i*3+0])
		img.Pix[i*4+1] = uint8(b.Pix[i*3+1])
		img.Pix[i*4+2] = uint8(b.Pix[i*3+2])
		img.Pix[i*4+3] = 0xff
	}
	return img
}

// SaveFITS keeps the calibrated frame in the timelapse folder. An
// existing file is left alone.
func (s *Saver)SaveFITS(f *frame.Frame, night bool) (string, error) {
	filename := filepath.Join(HourFolder(s.ImageFolder, f.ExposureTime, night), FileName(s.FilenameTemplate, f.CameraID, f.ExposureTime, "fit"))
	if exists(filename) {
		log.Printf("File exists: %s (skipping)\n", filename)
		return "", nil
	}
	if err := mkdirFor(filename); err != nil {
		return "", err
	}

	log.Printf("fit filename: %s\n", filename)
	if err := frame.SaveFITS(f, filename); err != nil {
		return "", err
	}
	return filename, nil
}
