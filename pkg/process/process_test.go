package process

import(
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/abworrall/allsky/pkg/emath"
	"github.com/abworrall/allsky/pkg/ephem"
	"github.com/abworrall/allsky/pkg/frame"
)

func grayImage(w, h int, vals ...uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	copy(img.Pix, vals)
	return img
}

func TestTo8Bit(t *testing.T) {
	if d := DivFactor(12); d != 16 {
		t.Errorf("DivFactor(12) = %d", d)
	}

	b := frame.NewBuffer(3, 1, 1)
	b.Pix = []uint16{4095, 160, 8000}
	img := To8Bit(b, 16, 12).(*image.Gray)
	if diff := cmp.Diff([]uint8{255, 10, 255}, img.Pix); diff != "" {
		t.Errorf("12 bit (-want +got):\n%s", diff)
	}

	b.Pix = []uint16{200, 10, 255}
	img = To8Bit(b, 8, 8).(*image.Gray)
	if diff := cmp.Diff([]uint8{200, 10, 255}, img.Pix); diff != "" {
		t.Errorf("8 bit (-want +got):\n%s", diff)
	}

	c := frame.NewBuffer(1, 1, 3)
	c.Pix = []uint16{65535, 32768, 0}
	rgb := To8Bit(c, 16, 16).(*image.NRGBA)
	if diff := cmp.Diff([]uint8{255, 127, 0, 255}, rgb.Pix); diff != "" {
		t.Errorf("colour (-want +got):\n%s", diff)
	}
}

func TestUnknownNames(t *testing.T) {
	if _, err := ParseRotation("ROTATE_45"); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Errorf("rotation: %v", err)
	}
	if _, err := ParseSCNR("purple"); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Errorf("scnr: %v", err)
	}
	if _, err := ParseOrbMode("spiral"); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Errorf("orb: %v", err)
	}
	if r, err := ParseRotation("ROTATE_180"); err != nil || r != Rotate180 {
		t.Errorf("ROTATE_180: %v %v", r, err)
	}
}

func TestGeometry(t *testing.T) {
	img := grayImage(2, 1, 10, 20)

	cw := Rotate(img, Rotate90Clockwise).(*image.Gray)
	if cw.Bounds().Dx() != 1 || cw.Bounds().Dy() != 2 || cw.GrayAt(0, 0).Y != 10 || cw.GrayAt(0, 1).Y != 20 {
		t.Errorf("clockwise: %v %v", cw.Bounds(), cw.Pix)
	}
	ccw := Rotate(img, Rotate90CounterClockwise).(*image.Gray)
	if ccw.GrayAt(0, 0).Y != 20 {
		t.Errorf("counterclockwise: %v", ccw.Pix)
	}
	if Rotate(img, RotateNone) != image.Image(img) {
		t.Errorf("no-op rotation made a copy")
	}

	h := Flip(img, false, true).(*image.Gray)
	if diff := cmp.Diff([]uint8{20, 10}, h.Pix); diff != "" {
		t.Errorf("flip h (-want +got):\n%s", diff)
	}
}

func TestCrop(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 20, 10))
	img.SetGray(5, 2, color.Gray{99})

	out := Crop(img, []int{10, 4, 20, 12}, 2)
	if out.Bounds().Dx() != 5 || out.Bounds().Dy() != 4 {
		t.Fatalf("crop size %v", out.Bounds())
	}
	if g := out.(*image.Gray).GrayAt(0, 0).Y; g != 99 {
		t.Errorf("crop origin %d", g)
	}

	if out := Crop(img, []int{0, 0, 100, 100}, 1); out != image.Image(img) {
		t.Errorf("oversized crop should be ignored")
	}
}

func TestScale(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	out := Scale(img, 50)
	if out.Bounds().Dx() != 20 || out.Bounds().Dy() != 10 {
		t.Errorf("scaled to %v", out.Bounds())
	}
	if Scale(img, 100) != image.Image(img) {
		t.Errorf("100%% should be a no-op")
	}
}

func TestDebayer(t *testing.T) {
	b := frame.NewBuffer(4, 4, 1)
	cfa, _ := ParseCFA("RGGB")
	vals := [3]uint16{1000, 500, 100}
	for y:=0; y<4; y++ {
		for x:=0; x<4; x++ {
			b.Set(x, y, 0, vals[cfa.At(x, y)])
		}
	}

	rgb, err := Debayer(b, "rggb")
	if err != nil {
		t.Fatalf("Debayer: %v", err)
	}
	for y:=0; y<4; y++ {
		for x:=0; x<4; x++ {
			got := [3]uint16{rgb.At(x,y,0), rgb.At(x,y,1), rgb.At(x,y,2)}
			if got != vals {
				t.Fatalf("(%d,%d) = %v, want %v", x, y, got, vals)
			}
		}
	}

	if _, err := Debayer(b, "XYZW"); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Errorf("bad pattern: %v", err)
	}

	g := DebayerFrame(b, "RGGB", true)
	if g.IsColor() {
		t.Errorf("grayscale debayer gave colour")
	}
	if v := g.At(1, 1, 0); v != 604 { // 0.299*1000 + 0.587*500 + 0.114*100
		t.Errorf("luma %d", v)
	}
	if same := DebayerFrame(b, "", false); same.IsColor() {
		t.Errorf("no pattern should leave mono alone")
	}
}

func TestSCNR(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{100, 200, 50, 255})

	tests := map[SCNR]uint8{
		SCNRAverageNeutral: 75,
		SCNRMaximumNeutral: 100,
		SCNRMaximumMask:    78,  // 200 * 100/255
		SCNRAdditiveMask:   118, // 200 * 150/255
	}
	for alg, want := range tests {
		out := ApplySCNR(img, alg).(*image.NRGBA)
		if g := out.Pix[1]; g != want {
			t.Errorf("%s: green %d, want %d", alg, g, want)
		}
		if out.Pix[0] != 100 || out.Pix[2] != 50 {
			t.Errorf("%s: touched red/blue", alg)
		}
	}
	if img.Pix[1] != 200 {
		t.Errorf("input was modified")
	}
}

func TestWhiteBalance(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{100, 50, 0, 255})
	img.SetNRGBA(1, 0, color.NRGBA{100, 50, 0, 255})

	out := AutoWhiteBalance(img).(*image.NRGBA)
	if diff := cmp.Diff([]uint8{50, 50, 0, 255, 50, 50, 0, 255}, out.Pix); diff != "" {
		t.Errorf("auto wb (-want +got):\n%s", diff)
	}

	out = WhiteBalance(img, emath.Vec3{3, 1, 1}).(*image.NRGBA)
	if out.Pix[0] != 255 {
		t.Errorf("manual wb should saturate, got %d", out.Pix[0])
	}

	mono := grayImage(1, 1, 7)
	if WhiteBalance(mono, emath.Vec3{2, 2, 2}) != image.Image(mono) {
		t.Errorf("mono should be skipped")
	}
}

func TestCLAHEStretchesContrast(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 256, 256))
	for y:=0; y<256; y++ {
		for x:=0; x<256; x++ {
			img.SetGray(x, y, color.Gray{uint8(100 + x/8)})
		}
	}

	out := CLAHE(img).(*image.Gray)
	lo, hi := uint8(255), uint8(0)
	for _, v := range out.Pix {
		if v < lo { lo = v }
		if v > hi { hi = v }
	}
	if int(hi)-int(lo) <= 31 {
		t.Errorf("range %d..%d not stretched", lo, hi)
	}

	rgb := CLAHE(ToNRGBA(img))
	if rgb.Bounds() != img.Bounds() {
		t.Errorf("colour CLAHE changed size")
	}
}

func TestLabelTemplate(t *testing.T) {
	lt, err := NewLabelTemplate("")
	if err != nil {
		t.Fatalf("default template: %v", err)
	}

	temp, unit := Fahrenheit.Convert(20)
	lines, err := lt.Lines(LabelData{
		Timestamp: time.Date(2023, 7, 4, 22, 15, 0, 0, time.UTC),
		Exposure:  2.5,
		Gain:      100,
		Temp:      temp,
		TempUnit:  unit,
		Stars:     42,
	})
	if err != nil {
		t.Fatalf("Lines: %v", err)
	}
	want := []string{"20230704 22:15:00", "Exposure 2.500000", "Gain 100", "Temp 68.0F", "Stars 42"}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("label (-want +got):\n%s", diff)
	}

	if _, err := NewLabelTemplate("{{.Nope"); err == nil {
		t.Errorf("bad template parsed")
	}
}

func TestReadExtraText(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "extra.txt")
	os.WriteFile(good, []byte("Cloudy  \nWind 5mph\n"), 0644)
	if diff := cmp.Diff([]string{"Cloudy", "Wind 5mph"}, ReadExtraText(good)); diff != "" {
		t.Errorf("extra text (-want +got):\n%s", diff)
	}

	big := filepath.Join(dir, "big.txt")
	os.WriteFile(big, []byte(strings.Repeat("x", MaxExtraTextSize+1)), 0644)
	if lines := ReadExtraText(big); lines != nil {
		t.Errorf("oversized file read")
	}
	if lines := ReadExtraText(dir); lines != nil {
		t.Errorf("directory read")
	}
}

func TestAnnotatorBanners(t *testing.T) {
	a, err := NewAnnotator(TextProperties{Color: color.RGBA{255, 255, 255, 255}}, OrbProperties{Mode: OrbOff}, nil, "")
	if err != nil {
		t.Fatalf("NewAnnotator: %v", err)
	}

	lines := a.Lines(Annotation{Night: true, MoonMode: true, Astro: ephem.Astrometry{SunMoonSep: 0.5}})
	if diff := cmp.Diff([]string{"* Moon Mode *", "* LUNAR ECLIPSE *"}, lines[len(lines)-2:]); diff != "" {
		t.Errorf("night banners (-want +got):\n%s", diff)
	}

	lines = a.Lines(Annotation{Night: false, Astro: ephem.Astrometry{SunMoonSep: 179.5}})
	if lines[len(lines)-1] != "* SOLAR ECLIPSE *" {
		t.Errorf("day banner: %v", lines)
	}
}

func TestAnnotatorFocusMode(t *testing.T) {
	a, err := NewAnnotator(TextProperties{Color: color.RGBA{255, 255, 255, 255}, X: 10, Y: 30, Size: 20}, OrbProperties{Mode: OrbHourAngle}, nil, "")
	if err != nil {
		t.Fatalf("NewAnnotator: %v", err)
	}

	img := image.NewGray(image.Rect(0, 0, 200, 100))
	out := a.Draw(img, Annotation{Focus: true, Label: LabelData{Timestamp: time.Date(2023, 1, 1, 1, 2, 3, 0, time.UTC)}})

	g, ok := out.(*image.Gray)
	if !ok {
		t.Fatalf("gray input came back as %T", out)
	}
	lit := func(r image.Rectangle) bool {
		for y:=r.Min.Y; y<r.Max.Y; y++ {
			for x:=r.Min.X; x<r.Max.X; x++ {
				if g.GrayAt(x, y).Y > 0 { return true }
			}
		}
		return false
	}
	if lit(image.Rect(0, 0, 200, 60)) {
		t.Errorf("focus mode drew in the label area")
	}
	if !lit(image.Rect(75, 60, 200, 100)) {
		t.Errorf("focus mode timestamp missing")
	}
}

func TestOrbPosition(t *testing.T) {
	sun := ephem.Body{Name: "sun", HA: -90, Az: 90, Alt: 30}
	x, y, ok := OrbPosition(OrbHourAngle, sun, 400, 200, 10)
	if !ok || x != 100 || y != 10 {
		t.Errorf("ha: %v %v %v", x, y, ok)
	}

	moon := ephem.Body{Name: "moon", Az: 270, Alt: -45}
	x, y, _ = OrbPosition(OrbAzimuth, moon, 400, 200, 10)
	if x != 300 || y != 190 {
		t.Errorf("az: %v %v", x, y)
	}
	x, y, _ = OrbPosition(OrbAltitude, moon, 400, 200, 10)
	if x != 390 || y != 150 {
		t.Errorf("alt: %v %v", x, y)
	}

	if _, _, ok := OrbPosition(OrbOff, sun, 400, 200, 10); ok {
		t.Errorf("off mode placed an orb")
	}
}
