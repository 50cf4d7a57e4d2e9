package ecolor

import(
	"image/color"
	"math"
	"testing"
)

func TestLuma8(t *testing.T) {
	tests := []struct{
		c    color.Color
		want uint8
	}{
		{color.Gray{77}, 77},
		{color.RGBA{255, 255, 255, 255}, 255},
		{color.RGBA{0, 0, 0, 255}, 0},
		{color.RGBA{255, 0, 0, 255}, 76},
		{color.RGBA{0, 255, 0, 255}, 150},
		{color.RGBA{0, 0, 255, 255}, 29},
	}
	for _, test := range tests {
		if got := Luma8(test.c); got != test.want {
			t.Errorf("Luma8(%v) = %d, want %d", test.c, got, test.want)
		}
	}

	if l := Luma(100, 100, 100); math.Abs(l-100) > 1e-9 {
		t.Errorf("Luma of gray: %f", l)
	}
}

func TestLabRoundTrip(t *testing.T) {
	in := color.RGBA{200, 120, 40, 255}
	out := ToLab(in).RGBA()
	for i, pair := range [][2]uint8{{in.R, out.R}, {in.G, out.G}, {in.B, out.B}} {
		if d := int(pair[0]) - int(pair[1]); d > 1 || d < -1 {
			t.Errorf("channel %d: %d -> %d", i, pair[0], pair[1])
		}
	}

	gray := ToLab(color.RGBA{128, 128, 128, 255})
	if math.Abs(gray.A) > 1e-3 || math.Abs(gray.B) > 1e-3 {
		t.Errorf("gray has chroma: %+v", gray)
	}
}
