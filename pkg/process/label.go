package process

import(
	"bytes"
	"fmt"
	"log"
	"os"
	"strings"
	"text/template"
	"time"
)

// MaxExtraTextSize bounds the external text file merged into labels.
const MaxExtraTextSize = 10000

const DefaultLabelTemplate = `{{.Timestamp.Format "20060102 15:04:05"}}
Exposure {{printf "%0.6f" .Exposure}}
Gain {{.Gain}}
Temp {{printf "%0.1f" .Temp}}{{.TempUnit}}
Stars {{.Stars}}`

type TempUnit int
const(
	Celsius TempUnit = iota
	Fahrenheit
	Kelvin
)

func ParseTempUnit(s string) (TempUnit, error) {
	switch strings.ToLower(s) {
	case "", "c": return Celsius, nil
	case "f":     return Fahrenheit, nil
	case "k":     return Kelvin, nil
	}
	return Celsius, fmt.Errorf("%w: temperature unit %q", ErrUnknownAlgorithm, s)
}

// Convert a celsius temperature into this unit, returning the suffix.
func (u TempUnit)Convert(c float64) (float64, string) {
	switch u {
	case Fahrenheit: return c*9.0/5.0 + 32, "F"
	case Kelvin:     return c + 273.15, "K"
	}
	return c, "C"
}

// LabelData is everything a label template can refer to.
type LabelData struct {
	Timestamp     time.Time
	Exposure      float64
	Gain          int
	Temp          float64
	TempUnit      string
	SQM           float64
	Stars         int
	Detections    bool
	SunAlt        float64
	MoonAlt       float64
	MoonPhase     float64
	SunMoonSep    float64
	Latitude      float64
	Longitude     float64
	SiderealTime  string
	StackMethod   string
	StackCount    int
}

type LabelTemplate struct {
	tmpl *template.Template
}

func NewLabelTemplate(text string) (*LabelTemplate, error) {
	if text == "" {
		text = DefaultLabelTemplate
	}
	t, err := template.New("label").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("label template: %v", err)
	}
	return &LabelTemplate{t}, nil
}

// Lines renders the template, one string per output line.
func (lt *LabelTemplate)Lines(d LabelData) ([]string, error) {
	var buf bytes.Buffer
	if err := lt.tmpl.Execute(&buf, d); err != nil {
		return nil, fmt.Errorf("label template: %v", err)
	}
	return strings.Split(strings.TrimRight(buf.String(), "\n"), "\n"), nil
}

// ReadExtraText loads the lines of an external text file to add to
// the label. Missing, odd or oversized files are logged and skipped.
func ReadExtraText(filename string) []string {
	if filename == "" {
		return nil
	}

	st, err := os.Stat(filename)
	if err != nil {
		log.Printf("Extra text %s: %v\n", filename, err)
		return nil
	} else if !st.Mode().IsRegular() {
		log.Printf("Extra text %s is not a file\n", filename)
		return nil
	} else if st.Size() > MaxExtraTextSize {
		log.Printf("Extra text %s is too large (%d bytes)\n", filename, st.Size())
		return nil
	}

	contents, err := os.ReadFile(filename)
	if err != nil {
		log.Printf("Extra text %s: %v\n", filename, err)
		return nil
	}

	lines := []string{}
	for _, l := range strings.Split(strings.TrimRight(string(contents), "\n"), "\n") {
		lines = append(lines, strings.TrimRight(l, " \t\r"))
	}
	return lines
}
