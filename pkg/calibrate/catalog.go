package calibrate

import(
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v2"

	"github.com/abworrall/allsky/pkg/frame"
)

// A Catalog is an in-memory index of calibration frames, persisted as
// a YAML file.
type Catalog struct {
	Frames []CalibrationFrame `yaml:"frames"`

	mu     sync.Mutex
}

func (c *Catalog)Add(cf CalibrationFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Frames = append(c.Frames, cf)
}

func (c *Catalog)Find(kind Kind, q Query) (CalibrationFrame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Select(c.Frames, kind, q)
}

func (c *Catalog)Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Frames)
}

func LoadCatalog(filename string) (*Catalog, error) {
	contents, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("catalog read %s: %v", filename, err)
	}
	c := &Catalog{}
	if err := yaml.Unmarshal(contents, c); err != nil {
		return nil, fmt.Errorf("catalog parse %s: %v", filename, err)
	}
	return c, nil
}

func (c *Catalog)Save(filename string) error {
	c.mu.Lock()
	b, err := yaml.Marshal(c)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return ioutil.WriteFile(filename, b, 0644)
}

// ScanDir indexes every FITS file in a directory, working out what it
// is from its header. Files that aren't calibration frames are skipped.
func ScanDir(dir string, cameraID int) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("readdir %s: %v", dir, err)
	}

	c := &Catalog{}
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".fit" && ext != ".fits") {
			continue
		}

		filename := filepath.Join(dir, e.Name())
		cf, err := describe(filename, cameraID)
		if err != nil {
			log.Printf("calibration scan, skipping %s: %v\n", filename, err)
			continue
		}
		c.Frames = append(c.Frames, cf)
	}

	log.Printf("calibration scan of %s found %d frames\n", dir, len(c.Frames))
	return c, nil
}

func describe(filename string, cameraID int) (CalibrationFrame, error) {
	f, err := frame.LoadFITS(filename)
	if err != nil {
		return CalibrationFrame{}, err
	}

	cf := CalibrationFrame{
		Filename: filename,
		CameraID: cameraID,
		BitDepth: f.BitPix,
		Binning:  1,
	}

	imagetyp, _ := f.Header.Text("IMAGETYP")
	base := strings.ToLower(filepath.Base(filename))
	switch t := strings.ToLower(imagetyp); {
	case strings.Contains(t, "bad pixel"), strings.Contains(t, "bpm"), strings.HasPrefix(base, "bpm"):
		cf.Kind = BadPixelMap
	case strings.Contains(t, "dark"), strings.HasPrefix(base, "dark"):
		cf.Kind = Dark
	default:
		return cf, fmt.Errorf("IMAGETYP '%s' is not a calibration frame", imagetyp)
	}

	cf.Exposure, _ = f.Header.Float("EXPTIME")
	cf.Gain, _ = f.Header.Int("GAIN")
	cf.Temp, _ = f.Header.Float("CCD-TEMP")
	if bin, ok := f.Header.Int("XBINNING"); ok && bin > 0 {
		cf.Binning = bin
	}
	if id, ok := f.Header.Int("CAMERAID"); ok {
		cf.CameraID = id
	}

	if st, err := os.Stat(filename); err == nil {
		cf.Created = st.ModTime()
	}

	return cf, nil
}
