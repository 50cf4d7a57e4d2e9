package stack

import(
	"errors"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/abworrall/allsky/pkg/frame"
)

func mono(pix ...uint16) frame.Buffer {
	return frame.Buffer{Width: len(pix), Height: 1, Channels: 1, Pix: pix}
}

func fr(exp float64, b frame.Buffer) *frame.Frame {
	return &frame.Frame{Buffer: b, Exposure: exp, BitPix: 16}
}

func TestWindow(t *testing.T) {
	w := NewWindow(3)
	a, b, c, d := fr(1, mono(1)), fr(1, mono(2)), fr(1, mono(3)), fr(1, mono(4))

	for _, f := range []*frame.Frame{a, b, c, d} {
		w.Add(f, true)
	}
	if w.Len() != 3 || w.Frames()[0] != d || w.Frames()[2] != b {
		t.Errorf("night window wrong: %v", w.Frames())
	}

	w.Add(a, false)
	if w.Len() != 1 || w.Frames()[0] != a {
		t.Errorf("day window should hold one frame: %v", w.Frames())
	}

	w.Capacity = 1
	w.Add(b, true)
	if w.Len() != 1 || w.Frames()[0] != b {
		t.Errorf("capacity 1 window: %v", w.Frames())
	}
}

func TestCombine(t *testing.T) {
	a := mono(0, 10, 65535, 7)
	b := mono(1, 20, 65535, 2)

	tests := []struct{
		m    Method
		want []uint16
	}{
		{Average, []uint16{0, 15, 65535, 4}},
		{Maximum, []uint16{1, 20, 65535, 7}},
		{Minimum, []uint16{0, 10, 65535, 2}},
	}
	for _, test := range tests {
		got, err := Combine([]frame.Buffer{a, b}, test.m)
		if err != nil {
			t.Fatalf("%s: %v", test.m, err)
		}
		if diff := cmp.Diff(test.want, got.Pix); diff != "" {
			t.Errorf("%s (-want +got):\n%s", test.m, diff)
		}

		single, _ := Combine([]frame.Buffer{a}, test.m)
		if diff := cmp.Diff(a.Pix, single.Pix); diff != "" {
			t.Errorf("%s of one buffer is not identity:\n%s", test.m, diff)
		}
	}

	if _, err := Combine([]frame.Buffer{a, b}, MethodUnknown); !errors.Is(err, ErrUnknownMethod) {
		t.Errorf("unknown method: %v", err)
	}
}

func TestParseMethod(t *testing.T) {
	if m, err := ParseMethod("Maximum"); err != nil || m != Maximum {
		t.Errorf("ParseMethod(Maximum) = %v, %v", m, err)
	}
	if _, err := ParseMethod("median"); !errors.Is(err, ErrUnknownMethod) {
		t.Errorf("ParseMethod(median) = %v", err)
	}
}

func TestStack(t *testing.T) {
	newest := fr(1, mono(10, 10, 10))
	older := fr(1, mono(20, 0, 11))

	if got := Stack([]*frame.Frame{newest}, Options{Method: Average}); !cmp.Equal(got.Pix, newest.Pix) {
		t.Errorf("single frame: %v", got.Pix)
	}

	got := Stack([]*frame.Frame{newest, older}, Options{Method: Maximum})
	if diff := cmp.Diff([]uint16{20, 10, 11}, got.Pix); diff != "" {
		t.Errorf("maximum (-want +got):\n%s", diff)
	}

	got = Stack([]*frame.Frame{newest, older}, Options{Method: MethodUnknown})
	if diff := cmp.Diff(newest.Pix, got.Pix); diff != "" {
		t.Errorf("unknown method should give the newest frame:\n%s", diff)
	}
}

func TestSplitScreen(t *testing.T) {
	orig := mono(1, 1, 1, 1, 1)
	stacked := mono(9, 9, 9, 9, 9)

	got := SplitScreen(orig, stacked, false)
	if diff := cmp.Diff([]uint16{1, 1, 0, 9, 9}, got.Pix); diff != "" {
		t.Errorf("split (-want +got):\n%s", diff)
	}

	got = SplitScreen(orig, stacked, true)
	if diff := cmp.Diff([]uint16{9, 9, 0, 1, 1}, got.Pix); diff != "" {
		t.Errorf("split flipped (-want +got):\n%s", diff)
	}
}

func TestStackSplit(t *testing.T) {
	newest := fr(1, mono(10, 10, 10, 10, 10))
	older := fr(1, mono(30, 30, 30, 30, 30))
	frames := []*frame.Frame{newest, older}

	got := Stack(frames, Options{Method: Maximum, Split: true})
	if diff := cmp.Diff([]uint16{10, 10, 0, 30, 30}, got.Pix); diff != "" {
		t.Errorf("split stack (-want +got):\n%s", diff)
	}

	got = Stack(frames, Options{Method: Maximum, Split: true, FlipH: true})
	if diff := cmp.Diff([]uint16{30, 30, 0, 10, 10}, got.Pix); diff != "" {
		t.Errorf("split stack, flipped (-want +got):\n%s", diff)
	}

	if got := Stack(frames[:1], Options{Method: Maximum, Split: true}); !cmp.Equal(got.Pix, newest.Pix) {
		t.Errorf("single frame should not be split: %v", got.Pix)
	}
}

func TestCropRect(t *testing.T) {
	r := CropRect(300, 300)
	area := float64(r.Dx()*r.Dy()) / (300*300)
	if math.Abs(area-1.0/3.0) > 0.01 {
		t.Errorf("crop %v covers %.3f of the frame", r, area)
	}
	if r.Min.X != 300-r.Max.X {
		t.Errorf("crop %v not centred", r)
	}
}

// starfield renders gaussian stars onto a noisy background.
func starfield(w, h int, stars [][2]float64, dx, dy float64) frame.Buffer {
	b := frame.NewBuffer(w, h, 1)
	for i := range b.Pix {
		b.Pix[i] = uint16(500 + (i*7919)%11)
	}
	for _, s := range stars {
		cx, cy := s[0]+dx, s[1]+dy
		for y:=int(cy)-6; y<=int(cy)+6; y++ {
			for x:=int(cx)-6; x<=int(cx)+6; x++ {
				if x < 0 || y < 0 || x >= w || y >= h { continue }
				d2 := (float64(x)-cx)*(float64(x)-cx) + (float64(y)-cy)*(float64(y)-cy)
				v := float64(b.At(x, y, 0)) + 20000*math.Exp(-d2/(2*1.5*1.5))
				if v > 65535 { v = 65535 }
				b.Set(x, y, 0, uint16(v))
			}
		}
	}
	return b
}

func randomStars(n, w, h int) [][2]float64 {
	rng := rand.New(rand.NewSource(42))
	stars := [][2]float64{}
	for len(stars) < n {
		p := [2]float64{10 + rng.Float64()*float64(w-20), 10 + rng.Float64()*float64(h-20)}
		ok := true
		for _, s := range stars {
			if math.Hypot(s[0]-p[0], s[1]-p[1]) < 15 { ok = false; break }
		}
		if ok { stars = append(stars, p) }
	}
	return stars
}

func TestFindTransform(t *testing.T) {
	stars := randomStars(80, 320, 240)
	ref := starfield(320, 240, stars, 0, 0)
	target := starfield(320, 240, stars, 4, -3)

	m, err := FindTransform(ref, target, DefaultRegisterOptions)
	if err != nil {
		t.Fatalf("FindTransform: %v", err)
	}
	scale, rot, tx, ty := m.Params()
	if math.Abs(tx+4) > 0.2 || math.Abs(ty-3) > 0.2 || math.Abs(rot) > 0.2 || math.Abs(scale-1) > 0.01 {
		t.Errorf("transform %s, want translation (-4,3)", m)
	}

	warped := Warp(target, m)
	x, y := int(math.Round(stars[0][0])), int(math.Round(stars[0][1]))
	if warped.At(x, y, 0) < 5000 {
		t.Errorf("warped frame has no star at (%d,%d): %d", x, y, warped.At(x, y, 0))
	}
}

func TestRegisterDropsFailures(t *testing.T) {
	stars := randomStars(80, 320, 240)
	ref := fr(10, starfield(320, 240, stars, 0, 0))
	good := fr(10, starfield(320, 240, stars, 2, 1))
	blank := fr(10, starfield(320, 240, nil, 0, 0))

	bufs := Register([]*frame.Frame{ref, blank, good}, DefaultRegisterOptions)
	if len(bufs) != 2 {
		t.Errorf("got %d buffers, want reference plus one registered", len(bufs))
	}

	_, err := FindTransform(ref.Buffer, blank.Buffer, DefaultRegisterOptions)
	if !errors.Is(err, ErrDegenerateTransform) {
		t.Errorf("blank target: got %v", err)
	}
}

func TestCompositeHDR(t *testing.T) {
	c := Composite{Buffer: mono(0, 2048, 4096), Depth: 12}
	if r, _, _, _ := c.HDRAt(1, 0).HDRRGBA(); math.Abs(r-0.5) > 1e-9 {
		t.Errorf("HDRAt: %f", r)
	}
	if err := c.WriteToHDR(filepath.Join(t.TempDir(), "out.hdr")); err != nil {
		t.Errorf("WriteToHDR: %v", err)
	}
}
