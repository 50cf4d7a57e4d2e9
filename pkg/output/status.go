package output

import(
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Status is the snapshot other tools poll to see what the camera is
// doing.
type Status struct {
	Name              string   `json:"name"`
	Class             string   `json:"class"`
	Device            string   `json:"device"`
	Night             bool     `json:"night"`
	Temp              float64  `json:"temp"`
	Gain              int      `json:"gain"`
	Exposure          float64  `json:"exposure"`
	StableExposure    int      `json:"stable_exposure"`
	TargetADU         float64  `json:"target_adu"`
	CurrentADUTarget  float64  `json:"current_adu_target"`
	CurrentADU        float64  `json:"current_adu"`
	ADUAverage        float64  `json:"adu_average"`
	SQM               float64  `json:"sqm"`
	Stars             int      `json:"stars"`
	Time              string   `json:"time"`
	Latitude          float64  `json:"latitude"`
	Longitude         float64  `json:"longitude"`
}

func NewStatus(device string, t time.Time) Status {
	return Status{Name: "allsky_json", Class: "ccd", Device: device, Time: EpochString(t)}
}

func EpochString(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

func boolInt(b bool) int {
	if b { return 1 }
	return 0
}

func (s *Status)SetStable(b bool) { s.StableExposure = boolInt(b) }

// Metadata is what gets uploaded next to each image.
type Metadata struct {
	Device            string   `json:"device"`
	Night             bool     `json:"night"`
	Temp              float64  `json:"temp"`
	Gain              int      `json:"gain"`
	Exposure          float64  `json:"exposure"`
	StableExposure    int      `json:"stable_exposure"`
	TargetADU         float64  `json:"target_adu"`
	CurrentADUTarget  float64  `json:"current_adu_target"`
	CurrentADU        float64  `json:"current_adu"`
	ADUAverage        float64  `json:"adu_average"`
	SQM               float64  `json:"sqm"`
	Stars             int      `json:"stars"`
	Time              string   `json:"time"`
	SQMData           Stats    `json:"sqm_data"`
	StarsData         Stats    `json:"stars_data"`
	Latitude          float64  `json:"latitude"`
	Longitude         float64  `json:"longitude"`
	SiderealTime      string   `json:"sidereal_time"`
}

func MetadataFromStatus(s Status) Metadata {
	return Metadata{
		Device:           s.Device,
		Night:            s.Night,
		Temp:             s.Temp,
		Gain:             s.Gain,
		Exposure:         s.Exposure,
		StableExposure:   s.StableExposure,
		TargetADU:        s.TargetADU,
		CurrentADUTarget: s.CurrentADUTarget,
		CurrentADU:       s.CurrentADU,
		ADUAverage:       s.ADUAverage,
		SQM:              s.SQM,
		Stars:            s.Stars,
		Time:             s.Time,
		Latitude:         s.Latitude,
		Longitude:        s.Longitude,
	}
}

// WriteJSON replaces the file atomically, mode 0644.
func WriteJSON(filename string, v interface{}) error {
	if err := mkdirFor(filename); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(filename), ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("open+w temp for '%s': %v", filename, err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("encode '%s': %v", filename, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filename)
}

// WriteMetadataTemp puts the metadata into a fresh temp file, for the
// upload side to send and then delete.
func WriteMetadataTemp(dir string, m Metadata) (string, error) {
	tmp, err := os.CreateTemp(dir, "allsky-metadata-*.json")
	if err != nil {
		return "", err
	}
	name := tmp.Name()
	tmp.Close()

	if err := WriteJSON(name, m); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}
