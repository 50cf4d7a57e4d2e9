package emath

import(
	"fmt"
	"image"
	"image/color"
)

// A FloatGrid holds one float per pixel, row-major. Line detection and
// registration work on these rather than on images.
type FloatGrid struct {
	stride int
	values []float64
}

func NewFloatGrid(w, h int) FloatGrid {
	return FloatGrid{stride: w, values: make([]float64, w*h)}
}

// NewFloatGridFromImage takes the luminance of each pixel, on a
// [0, 0xFFFF] scale whatever the bit depth of the image.
func NewFloatGridFromImage(img image.Image) FloatGrid {
	b := img.Bounds()
	fg := NewFloatGrid(b.Dx(), b.Dy())
	i := 0
	for y:=b.Min.Y; y<b.Max.Y; y++ {
		for x:=b.Min.X; x<b.Max.X; x++ {
			fg.values[i] = float64(color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y)
			i++
		}
	}
	return fg
}

func (fg *FloatGrid)Dx() int                 { return fg.stride }
func (fg *FloatGrid)Values() []float64       { return fg.values }
func (fg *FloatGrid)Get(x, y int) float64    { return fg.values[fg.stride*y + x] }
func (fg *FloatGrid)Set(x, y int, v float64) { fg.values[fg.stride*y + x] = v }
func (fg *FloatGrid)NewFromThis() FloatGrid  { return NewFloatGrid(fg.Dx(), fg.Dy()) }

func (fg *FloatGrid)Dy() int {
	if fg.stride == 0 { return 0 }
	return len(fg.values) / fg.stride
}

func (fg *FloatGrid)String() string {
	lo, hi := fg.MinMax()
	return fmt.Sprintf("grid[%dx%d, %.1f..%.1f]", fg.Dx(), fg.Dy(), lo, hi)
}

// SubGrid copies out the part of r that lies inside the grid.
func (fg *FloatGrid)SubGrid(r image.Rectangle) FloatGrid {
	r = r.Intersect(image.Rect(0, 0, fg.Dx(), fg.Dy()))
	sub := NewFloatGrid(r.Dx(), r.Dy())
	for y:=0; y<r.Dy(); y++ {
		row := fg.stride*(r.Min.Y+y) + r.Min.X
		copy(sub.values[y*sub.stride:(y+1)*sub.stride], fg.values[row:row+r.Dx()])
	}
	return sub
}

// smooth3 runs the [1 2 1]/4 kernel along one line of n values, reading
// and writing through the accessors. The end values are mirrored.
func smooth3(n int, get func(int) float64, set func(int, float64)) {
	if n < 2 {
		if n == 1 { set(0, get(0)) }
		return
	}
	for i:=0; i<n; i++ {
		prev, next := i-1, i+1
		if prev < 0 { prev = 0 }
		if next >= n { next = n-1 }
		set(i, (get(prev) + 2*get(i) + get(next)) / 4)
	}
}

// GaussianBlur is a separable 3x3 binomial blur; the output is a new grid.
func (fg FloatGrid)GaussianBlur() FloatGrid {
	w, h := fg.Dx(), fg.Dy()
	tmp := fg.NewFromThis()
	out := fg.NewFromThis()

	for y:=0; y<h; y++ {
		smooth3(w, func(x int) float64 { return fg.Get(x, y) }, func(x int, v float64) { tmp.Set(x, y, v) })
	}
	for x:=0; x<w; x++ {
		smooth3(h, func(y int) float64 { return tmp.Get(x, y) }, func(y int, v float64) { out.Set(x, y, v) })
	}
	return out
}

// DownSample halves each dimension, each output value the mean of a
// 2x2 block. An odd last row or column is dropped.
func (fg *FloatGrid)DownSample() FloatGrid {
	small := NewFloatGrid(fg.Dx()/2, fg.Dy()/2)
	for y:=0; y<small.Dy(); y++ {
		for x:=0; x<small.Dx(); x++ {
			sum := fg.Get(2*x, 2*y) + fg.Get(2*x+1, 2*y) + fg.Get(2*x, 2*y+1) + fg.Get(2*x+1, 2*y+1)
			small.Set(x, y, sum/4)
		}
	}
	return small
}

func (fg *FloatGrid)MinMax() (float64, float64) {
	if len(fg.values) == 0 { return 0, 0 }
	lo, hi := fg.values[0], fg.values[0]
	for _, v := range fg.values[1:] {
		if v < lo { lo = v }
		if v > hi { hi = v }
	}
	return lo, hi
}
