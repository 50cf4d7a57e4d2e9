package calibrate

import(
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/abworrall/allsky/pkg/frame"
)

var t0 = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

func dark(name string, exp, temp float64, age int) CalibrationFrame {
	return CalibrationFrame{
		Kind:     Dark,
		Filename: name,
		CameraID: 1,
		BitDepth: 16,
		Gain:     100,
		Binning:  1,
		Exposure: exp,
		Temp:     temp,
		Created:  t0.Add(time.Duration(age) * time.Hour),
	}
}

func TestSelect(t *testing.T) {
	q := Query{CameraID: 1, BitDepth: 16, Gain: 100, Binning: 1, Exposure: 10, Temp: 20}

	tests := []struct{
		name  string
		cands []CalibrationFrame
		want  string
	}{
		{"none", nil, ""},
		{"too short", []CalibrationFrame{dark("a", 5, 20, 0)}, ""},
		{"shortest qualifying exposure", []CalibrationFrame{
			dark("a", 30, 21, 0), dark("b", 15, 22, 0), dark("c", 10, 24, 0)}, "c"},
		{"coolest within window", []CalibrationFrame{
			dark("a", 15, 24, 0), dark("b", 15, 21, 0), dark("c", 15, 19, 0)}, "b"},
		{"oldest on a tie", []CalibrationFrame{
			dark("a", 15, 21, 5), dark("b", 15, 21, 1)}, "b"},
		{"window beats exposure", []CalibrationFrame{
			dark("a", 10, 30, 0), dark("b", 60, 22, 0)}, "b"},
		{"window top edge is inclusive", []CalibrationFrame{
			dark("a", 10, 25.5, 0), dark("b", 20, 25, 0)}, "b"},
		{"fallback takes hottest", []CalibrationFrame{
			dark("a", 15, 10, 0), dark("b", 15, 40, 0), dark("c", 15, 12, 0)}, "b"},
		{"fallback still prefers exposure", []CalibrationFrame{
			dark("a", 20, 40, 0), dark("b", 15, 10, 0)}, "b"},
		{"gain must match", []CalibrationFrame{
			func() CalibrationFrame { d := dark("a", 15, 21, 0); d.Gain = 50; return d }()}, ""},
		{"kind must match", []CalibrationFrame{
			func() CalibrationFrame { d := dark("a", 15, 21, 0); d.Kind = BadPixelMap; return d }()}, ""},
	}

	for _, test := range tests {
		got, found := Select(test.cands, Dark, q)
		if test.want == "" {
			if found {
				t.Errorf("%s: found %s, wanted nothing", test.name, got)
			}
			continue
		}
		if !found || got.Filename != test.want {
			t.Errorf("%s: got %q (found=%v), want %q", test.name, got.Filename, found, test.want)
		}
	}
}

func TestSubtractSaturates(t *testing.T) {
	src := frame.Buffer{Width: 4, Height: 1, Channels: 1, Pix: []uint16{0, 10, 500, 65535}}
	ref := frame.Buffer{Width: 4, Height: 1, Channels: 1, Pix: []uint16{5, 10, 100, 65535}}

	got := Subtract(src, ref)
	if diff := cmp.Diff([]uint16{0, 0, 400, 0}, got.Pix); diff != "" {
		t.Errorf("Subtract (-want +got):\n%s", diff)
	}
	if src.Pix[2] != 500 {
		t.Errorf("source buffer was mutated")
	}
}

func writeCal(t *testing.T, dir, name string, pix []uint16, imagetyp string, exp float64) string {
	t.Helper()
	f := &frame.Frame{
		Buffer: frame.Buffer{Width: len(pix), Height: 1, Channels: 1, Pix: pix},
		BitPix: 16,
	}
	f.Header.Set("IMAGETYP", imagetyp, "")
	f.Header.Set("EXPTIME", exp, "")
	f.Header.Set("GAIN", 100, "")
	f.Header.Set("CCD-TEMP", 21.0, "")
	filename := filepath.Join(dir, name)
	if err := frame.SaveFITS(f, filename); err != nil {
		t.Fatalf("SaveFITS: %v", err)
	}
	return filename
}

func light(pix ...uint16) *frame.Frame {
	return &frame.Frame{
		Buffer: frame.Buffer{Width: len(pix), Height: 1, Channels: 1, Pix: pix},
		BitPix: 16,
		Exposure: 10,
	}
}

func TestCalibrateWithBPM(t *testing.T) {
	dir := t.TempDir()
	darkFile := writeCal(t, dir, "dark_1.fit", []uint16{10, 10, 10, 10}, "Dark Frame", 15)
	bpmFile := writeCal(t, dir, "bpm_1.fit", []uint16{0, 50, 0, 0}, "Bad Pixel Map", 15)

	cat := &Catalog{}
	d := dark(darkFile, 15, 21, 0)
	b := dark(bpmFile, 15, 21, 0)
	b.Kind = BadPixelMap
	cat.Add(d)
	cat.Add(b)

	q := Query{CameraID: 1, BitDepth: 16, Gain: 100, Binning: 1, Exposure: 10, Temp: 20}
	e := NewEngine(cat)

	f := light(100, 40, 5, 1000)
	f2, err := e.Calibrate(f, q)
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if !f2.Calibrated {
		t.Errorf("not flagged calibrated")
	}
	if diff := cmp.Diff([]uint16{90, 0, 0, 990}, f2.Pix); diff != "" {
		t.Errorf("calibrated (-want +got):\n%s", diff)
	}

	// Second call must be a no-op
	f3, err := e.Calibrate(f2, q)
	if err != nil || f3 != f2 {
		t.Errorf("recalibration changed the frame (err=%v)", err)
	}
}

func TestCalibrateMissingBPMIgnored(t *testing.T) {
	dir := t.TempDir()
	darkFile := writeCal(t, dir, "dark_1.fit", []uint16{10, 10}, "Dark Frame", 15)

	cat := &Catalog{}
	cat.Add(dark(darkFile, 15, 21, 0))
	b := dark(filepath.Join(dir, "gone.fit"), 15, 21, 0)
	b.Kind = BadPixelMap
	cat.Add(b)

	q := Query{CameraID: 1, BitDepth: 16, Gain: 100, Binning: 1, Exposure: 10, Temp: 20}
	f2, err := NewEngine(cat).Calibrate(light(100, 5), q)
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if diff := cmp.Diff([]uint16{90, 0}, f2.Pix); diff != "" {
		t.Errorf("calibrated (-want +got):\n%s", diff)
	}
}

func TestCalibrateNotFound(t *testing.T) {
	q := Query{CameraID: 1, BitDepth: 16, Gain: 100, Binning: 1, Exposure: 10, Temp: 20}

	f := light(1, 2)
	f2, err := NewEngine(&Catalog{}).Calibrate(f, q)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("empty catalog: got %v", err)
	}
	if f2.Calibrated {
		t.Errorf("frame flagged calibrated")
	}

	cat := &Catalog{}
	cat.Add(dark(filepath.Join(t.TempDir(), "missing.fit"), 15, 21, 0))
	if _, err := NewEngine(cat).Calibrate(light(1, 2), q); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing file: got %v", err)
	}
}

func TestScanDirAndCatalogFile(t *testing.T) {
	dir := t.TempDir()
	writeCal(t, dir, "dark_a.fit", []uint16{1, 2}, "Dark Frame", 15)
	writeCal(t, dir, "bpm_a.fit", []uint16{1, 2}, "Bad Pixel Map", 15)
	writeCal(t, dir, "light.fit", []uint16{1, 2}, "Light Frame", 15)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644)

	cat, err := ScanDir(dir, 1)
	if err != nil {
		t.Fatalf("ScanDir: %v", err)
	}
	if cat.Len() != 2 {
		t.Fatalf("ScanDir found %d frames, want 2", cat.Len())
	}

	q := Query{CameraID: 1, BitDepth: 16, Gain: 100, Binning: 1, Exposure: 10, Temp: 20}
	if cf, found := cat.Find(Dark, q); !found || filepath.Base(cf.Filename) != "dark_a.fit" {
		t.Errorf("Find dark: %v %v", cf, found)
	}

	yamlFile := filepath.Join(dir, "catalog.yaml")
	if err := cat.Save(yamlFile); err != nil {
		t.Fatalf("Save: %v", err)
	}
	cat2, err := LoadCatalog(yamlFile)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if cf, found := cat2.Find(BadPixelMap, q); !found || filepath.Base(cf.Filename) != "bpm_a.fit" {
		t.Errorf("Find bpm after reload: %v %v", cf, found)
	}
}
