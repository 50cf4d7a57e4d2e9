// Package output writes the artifacts of a processed frame: the
// latest image, the dated timelapse stills, raw and FITS exports, the
// status snapshot, and the image catalog.
package output

import(
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const DefaultFilenameTemplate = "ccd%d_%s.%s"

// DayRef is the date a frame is filed under. Night frames belong to
// the evening they started on, so anything before noon goes in the
// previous day's folder.
func DayRef(t time.Time, night bool) time.Time {
	if night {
		return t.Add(-12 * time.Hour)
	}
	return t
}

func TimeOfDay(night bool) string {
	if night { return "night" }
	return "day"
}

// DayFolder is <root>/<YYYYMMDD>/<night|day>
func DayFolder(root string, t time.Time, night bool) string {
	return filepath.Join(root, DayRef(t, night).Format("20060102"), TimeOfDay(night))
}

// HourFolder is <root>/<YYYYMMDD>/<night|day>/<dd_HH>
func HourFolder(root string, t time.Time, night bool) string {
	return filepath.Join(DayFolder(root, t, night), t.Format("02_15"))
}

// FileName fills in the template with the camera id, the frame's
// timestamp (YYYYMMDD_HHMMSS) and the extension.
func FileName(tmpl string, cameraID int, t time.Time, ext string) string {
	if tmpl == "" { tmpl = DefaultFilenameTemplate }
	return fmt.Sprintf(tmpl, cameraID, t.Format("20060102_150405"), ext)
}

func mkdirFor(filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("mkdir %s: %v", filepath.Dir(filename), err)
	}
	return nil
}

func exists(filename string) bool {
	_, err := os.Stat(filename)
	return err == nil
}
