package detect

import(
	"image"
	"math"
	"sort"

	"github.com/codahale/hdrhistogram"

	"github.com/abworrall/allsky/pkg/emath"
	"github.com/abworrall/allsky/pkg/frame"
)

// StarOptions tunes the point source detector.
type StarOptions struct {
	Sigma    float64  // detection threshold, in noise sigmas above background
	MinArea  int      // in pixels
	MaxArea  int
	MaxStars int      // keep only the brightest; 0 is no limit
}

var DefaultStarOptions = StarOptions{
	Sigma:    5,
	MinArea:  3,
	MaxArea:  400,
	MaxStars: 0,
}

// Background estimates the sky level and its noise, from the median
// and the 16/84 percentiles. Only the pixels where mask is nonzero are
// considered; a nil mask means everything.
func Background(fg emath.FloatGrid, mask *image.Gray) (median, sigma float64) {
	_, max := fg.MinMax()
	h := hdrhistogram.New(1, int64(max)+2, 3)

	for y:=0; y<fg.Dy(); y++ {
		for x:=0; x<fg.Dx(); x++ {
			if mask != nil && mask.GrayAt(x, y).Y == 0 {
				continue
			}
			v := fg.Get(x, y)
			if v < 0 { v = 0 }
			h.RecordValue(int64(v))
		}
	}
	if h.TotalCount() == 0 {
		return 0, 1
	}

	median = float64(h.ValueAtQuantile(50))
	sigma = float64(h.ValueAtQuantile(84.13) - h.ValueAtQuantile(15.87)) / 2.0
	if sigma < 1 { sigma = 1 }
	return median, sigma
}

// FindStars thresholds the grid and returns the centroids of the
// connected blobs that are star sized, brightest first.
func FindStars(fg emath.FloatGrid, mask *image.Gray, opt StarOptions) []frame.Star {
	w, h := fg.Dx(), fg.Dy()
	bg, sigma := Background(fg, mask)
	thresh := bg + opt.Sigma*sigma

	seen := make([]bool, w*h)
	stars := []frame.Star{}
	stack := []int{}

	for y:=0; y<h; y++ {
		for x:=0; x<w; x++ {
			i := y*w + x
			if seen[i] || fg.Get(x, y) <= thresh {
				continue
			}
			if mask != nil && mask.GrayAt(x, y).Y == 0 {
				continue
			}

			// Flood fill the blob
			area := 0
			sum, sx, sy := 0.0, 0.0, 0.0
			stack = append(stack[:0], i)
			seen[i] = true
			for len(stack) > 0 {
				j := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				px, py := j%w, j/w
				v := fg.Get(px, py) - bg
				area++
				sum += v
				sx += v * float64(px)
				sy += v * float64(py)

				for _, n := range [4][2]int{{px-1,py}, {px+1,py}, {px,py-1}, {px,py+1}} {
					if n[0] < 0 || n[1] < 0 || n[0] >= w || n[1] >= h {
						continue
					}
					k := n[1]*w + n[0]
					if mask != nil && mask.GrayAt(n[0], n[1]).Y == 0 {
						continue
					}
					if !seen[k] && fg.Get(n[0], n[1]) > thresh {
						seen[k] = true
						stack = append(stack, k)
					}
				}
			}

			if area < opt.MinArea || (opt.MaxArea > 0 && area > opt.MaxArea) || sum <= 0 {
				continue
			}
			stars = append(stars, frame.Star{
				X:      sx / sum,
				Y:      sy / sum,
				Flux:   sum,
				Radius: math.Sqrt(float64(area) / math.Pi),
			})
		}
	}

	sort.Slice(stars, func(i, j int) bool { return stars[i].Flux > stars[j].Flux })
	if opt.MaxStars > 0 && len(stars) > opt.MaxStars {
		stars = stars[:opt.MaxStars]
	}
	return stars
}
