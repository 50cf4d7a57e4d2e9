package output

import(
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

const DefaultStatsWindow = 30 * time.Minute

// An ImageRecord describes one saved timelapse image.
type ImageRecord struct {
	Filename    string     `json:"filename"`
	CameraID    int        `json:"camera_id"`
	Time        time.Time  `json:"time"`
	Exposure    float64    `json:"exposure"`
	Elapsed     float64    `json:"exp_elapsed"`
	Gain        int        `json:"gain"`
	Binning     int        `json:"binmode"`
	Temp        float64    `json:"temp"`
	ADU         float64    `json:"adu"`
	Stable      bool       `json:"stable"`
	MoonMode    bool       `json:"moonmode"`
	MoonPhase   float64    `json:"moonphase"`
	Night       bool       `json:"night"`
	ADUROI      []int      `json:"adu_roi"`
	Calibrated  bool       `json:"calibrated"`
	SQM         float64    `json:"sqm"`
	Stars       int        `json:"stars"`
	Detections  int        `json:"detections"`
}

// Stats summarise a value over recent images; all zero when there
// were none.
type Stats struct {
	Max    float64  `json:"max"`
	Min    float64  `json:"min"`
	Avg    float64  `json:"avg"`
	Count  int      `json:"count"`
}

func (s Stats)String() string {
	return fmt.Sprintf("n=%d min=%.2f max=%.2f avg=%.2f", s.Count, s.Min, s.Max, s.Avg)
}

// An ImageCatalog appends records to a JSON-lines file, and keeps the
// recent ones in memory for the rolling SQM and star statistics.
type ImageCatalog struct {
	Filename  string
	Window    time.Duration

	mu        sync.Mutex
	recent    []ImageRecord
}

func NewImageCatalog(filename string) *ImageCatalog {
	return &ImageCatalog{Filename: filename, Window: DefaultStatsWindow}
}

func (c *ImageCatalog)Add(r ImageRecord) error {
	c.mu.Lock()
	c.recent = append(c.recent, r)
	c.prune(r.Time)
	c.mu.Unlock()

	if c.Filename == "" {
		return nil
	}
	if err := mkdirFor(c.Filename); err != nil {
		return err
	}
	f, err := os.OpenFile(c.Filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open+a '%s': %v", c.Filename, err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(r)
}

func (c *ImageCatalog)prune(now time.Time) {
	cutoff := now.Add(-c.Window)
	i := 0
	for i < len(c.recent) && !c.recent[i].Time.After(cutoff) {
		i++
	}
	c.recent = c.recent[i:]
}

func (c *ImageCatalog)stats(cameraID int, now time.Time, val func(ImageRecord) float64) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{}
	cutoff := now.Add(-c.Window)
	sum := 0.0
	for _, r := range c.recent {
		if r.CameraID != cameraID || !r.Time.After(cutoff) {
			continue
		}
		v := val(r)
		if s.Count == 0 || v > s.Max { s.Max = v }
		if s.Count == 0 || v < s.Min { s.Min = v }
		sum += v
		s.Count++
	}
	if s.Count > 0 {
		s.Avg = sum / float64(s.Count)
	}
	return s
}

func (c *ImageCatalog)SQMStats(cameraID int, now time.Time) Stats {
	return c.stats(cameraID, now, func(r ImageRecord) float64 { return r.SQM })
}

func (c *ImageCatalog)StarsStats(cameraID int, now time.Time) Stats {
	return c.stats(cameraID, now, func(r ImageRecord) float64 { return float64(r.Stars) })
}
