package calibrate

import(
	"fmt"
	"sort"
	"time"
)

type Kind string

const(
	Dark        Kind = "dark"
	BadPixelMap Kind = "bpm"
)

// TempWindow is how much warmer than the sensor a dark is allowed to
// be, in degrees C, during the first selection pass.
const TempWindow = 5.0

// A CalibrationFrame describes a dark or bad pixel map on disk. The
// files are owned by whoever made them; we only read them.
type CalibrationFrame struct {
	Kind      Kind       `yaml:"kind"`
	Filename  string     `yaml:"filename"`
	CameraID  int        `yaml:"camera_id"`
	BitDepth  int        `yaml:"bitdepth"`
	Exposure  float64    `yaml:"exposure"`
	Gain      int        `yaml:"gain"`
	Binning   int        `yaml:"binning"`
	Temp      float64    `yaml:"temp"`
	Created   time.Time  `yaml:"created"`
}

func (cf CalibrationFrame)String() string {
	return fmt.Sprintf("%s[%s ccd%d bits=%d exp=%.3f gain=%d bin=%d temp=%.1f]",
		cf.Kind, cf.Filename, cf.CameraID, cf.BitDepth, cf.Exposure, cf.Gain, cf.Binning, cf.Temp)
}

// A Query is the key for finding the best calibration frame for a
// light frame.
type Query struct {
	CameraID  int
	BitDepth  int        // storage bits (BITPIX), not the detected range
	Gain      int
	Binning   int
	Exposure  float64
	Temp      float64
}

func (q Query)String() string {
	return fmt.Sprintf("q[ccd%d bits=%d gain=%d bin=%d exp=%.3f temp=%.1f]",
		q.CameraID, q.BitDepth, q.Gain, q.Binning, q.Exposure, q.Temp)
}

// A Finder returns the best matching calibration frame of a kind.
type Finder interface {
	Find(kind Kind, q Query) (CalibrationFrame, bool)
}

func (q Query)matchesExact(cf CalibrationFrame) bool {
	return cf.CameraID == q.CameraID &&
		cf.BitDepth == q.BitDepth &&
		cf.Gain == q.Gain &&
		cf.Binning == q.Binning &&
		cf.Exposure >= q.Exposure
}

// Select picks the best candidate in two passes. The first wants a
// dark no colder than the sensor and at most TempWindow warmer,
// preferring shortest exposure, then coolest, then oldest. If that
// finds nothing, the temperature constraint is dropped and the hottest
// dark wins the tie-break instead.
func Select(candidates []CalibrationFrame, kind Kind, q Query) (CalibrationFrame, bool) {
	pass1 := []CalibrationFrame{}
	pass2 := []CalibrationFrame{}

	for _, cf := range candidates {
		if cf.Kind != kind || !q.matchesExact(cf) {
			continue
		}
		pass2 = append(pass2, cf)
		// bounded above too, so a much hotter dark never counts as a match
		if cf.Temp >= q.Temp && cf.Temp <= q.Temp+TempWindow {
			pass1 = append(pass1, cf)
		}
	}

	if len(pass1) > 0 {
		sort.SliceStable(pass1, func(i, j int) bool {
			a, b := pass1[i], pass1[j]
			if a.Exposure != b.Exposure { return a.Exposure < b.Exposure }
			if a.Temp != b.Temp         { return a.Temp < b.Temp }
			return a.Created.Before(b.Created)
		})
		return pass1[0], true
	}

	if len(pass2) > 0 {
		sort.SliceStable(pass2, func(i, j int) bool {
			a, b := pass2[i], pass2[j]
			if a.Exposure != b.Exposure { return a.Exposure < b.Exposure }
			if a.Temp != b.Temp         { return a.Temp > b.Temp }
			return a.Created.Before(b.Created)
		})
		return pass2[0], true
	}

	return CalibrationFrame{}, false
}
