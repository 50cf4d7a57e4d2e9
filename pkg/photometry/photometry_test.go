package photometry

import(
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/abworrall/allsky/pkg/frame"
)

func TestROIMask(t *testing.T) {
	m := ROIMask(80, 40, nil, 1, 0.25)
	// central ROI: x 20..60, y 10..30 inclusive
	if m.GrayAt(20, 10).Y == 0 || m.GrayAt(60, 30).Y == 0 {
		t.Errorf("central ROI corners missing")
	}
	if m.GrayAt(19, 10).Y != 0 || m.GrayAt(61, 30).Y != 0 || m.GrayAt(20, 31).Y != 0 {
		t.Errorf("central ROI too big")
	}

	m = ROIMask(90, 60, []int{20, 20, 40, 40}, 2, 1.0/3.0)
	if m.GrayAt(10, 10).Y == 0 || m.GrayAt(20, 20).Y == 0 || m.GrayAt(21, 21).Y != 0 || m.GrayAt(9, 10).Y != 0 {
		t.Errorf("binned ROI wrong")
	}
}

func TestMeasureADU(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	if adu := MeasureADU(img, nil); adu != MinADU {
		t.Errorf("black frame ADU %f, want floor %f", adu, MinADU)
	}

	for y:=0; y<10; y++ {
		for x:=0; x<10; x++ {
			v := uint8(100)
			if x >= 5 { v = 200 }
			img.SetGray(x, y, color.Gray{v})
		}
	}
	if adu := MeasureADU(img, nil); adu != 150 {
		t.Errorf("unmasked ADU %f", adu)
	}
	if adu := MeasureADU(img, RectMask(10, 10, 0, 0, 4, 9)); adu != 100 {
		t.Errorf("masked ADU %f", adu)
	}

	rgb := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := range rgb.Pix {
		rgb.Pix[i] = 255
	}
	if adu := MeasureADU(rgb, nil); adu != 255 {
		t.Errorf("white RGB ADU %f", adu)
	}
}

func TestADUMaskPrefersDetectionMask(t *testing.T) {
	det := RectMask(20, 20, 0, 0, 3, 3)
	if m := ADUMask(20, 20, det, []int{5, 5, 10, 10}, 1); m != det {
		t.Errorf("detection mask not used")
	}
	if m := ADUMask(40, 40, det, nil, 1); m == det {
		t.Errorf("mis-sized detection mask should be ignored")
	}
}

func TestSQM(t *testing.T) {
	b := frame.NewBuffer(8, 8, 1)
	for i := range b.Pix {
		b.Pix[i] = 1000
	}

	s := NewSQMCalculator(SQMConfig{ExposureMax: 15, NightGain: 100, Binning: 1})
	// exposure at max and gain at night gain leaves the mean unweighted
	if v := s.Calculate(b, 15, 100); math.Abs(v-1000) > 1e-9 {
		t.Errorf("SQM %f, want 1000", v)
	}
	// 5s exposure: x2; gain 90: x2
	if v := s.Calculate(b, 5, 90); math.Abs(v-4000) > 1e-9 {
		t.Errorf("SQM %f, want 4000", v)
	}
}

func TestLoadMask(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	img.SetGray(2, 2, color.Gray{1})
	filename := filepath.Join(t.TempDir(), "mask.png")
	w, _ := os.Create(filename)
	png.Encode(w, img)
	w.Close()

	m, err := LoadMask(filename)
	if err != nil {
		t.Fatalf("LoadMask: %v", err)
	}
	if m.GrayAt(2, 2).Y != 255 || m.GrayAt(1, 1).Y != 0 {
		t.Errorf("mask pixels wrong")
	}

	if _, err := LoadMask(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Errorf("missing mask should fail")
	}
}
