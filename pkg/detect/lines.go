package detect

import(
	"image"
	"math"
	"sort"

	"github.com/abworrall/allsky/pkg/emath"
	"github.com/abworrall/allsky/pkg/frame"
)

// LineOptions tunes the trail detector.
type LineOptions struct {
	Sigma      float64  // pixels this many sigmas above background are candidates
	MinLength  int      // shortest segment reported, pixels
	MaxGap     int      // gap allowed along a segment
	MinVotes   int      // hough accumulator threshold
	MaxLines   int
}

var DefaultLineOptions = LineOptions{
	Sigma:     6,
	MinLength: 40,
	MaxGap:    5,
	MinVotes:  40,
	MaxLines:  10,
}

const nTheta = 180

// FindLines looks for long straight bright features (meteors,
// satellites, planes) using a hough transform over the pixels that are
// well above the sky background.
func FindLines(fg emath.FloatGrid, mask *image.Gray, opt LineOptions) []frame.Line {
	scale := 1
	for fg.Dx() > 1500 {
		fg = fg.DownSample()
		scale *= 2
		mask = nil // no longer lines up
	}
	fg = fg.GaussianBlur()
	w, h := fg.Dx(), fg.Dy()

	bg, sigma := Background(fg, mask)
	thresh := bg + opt.Sigma*sigma

	on := make([]bool, w*h)
	pts := [][2]int{}
	for y:=0; y<h; y++ {
		for x:=0; x<w; x++ {
			if fg.Get(x, y) <= thresh { continue }
			if mask != nil && mask.GrayAt(x, y).Y == 0 { continue }
			on[y*w+x] = true
			pts = append(pts, [2]int{x, y})
		}
	}
	if len(pts) < opt.MinLength {
		return nil
	}

	sinT, cosT := [nTheta]float64{}, [nTheta]float64{}
	for t:=0; t<nTheta; t++ {
		th := float64(t) * math.Pi / nTheta
		sinT[t], cosT[t] = math.Sin(th), math.Cos(th)
	}
	maxRho := int(math.Ceil(math.Hypot(float64(w), float64(h))))
	nRho := 2*maxRho + 1
	acc := make([]int, nTheta*nRho)
	for _, p := range pts {
		for t:=0; t<nTheta; t++ {
			r := int(math.Round(float64(p[0])*cosT[t] + float64(p[1])*sinT[t])) + maxRho
			acc[t*nRho+r]++
		}
	}

	type peak struct{ t, r, votes int }
	peaks := []peak{}
	for t:=0; t<nTheta; t++ {
		for r:=0; r<nRho; r++ {
			v := acc[t*nRho+r]
			if v < opt.MinVotes || !localMax(acc, nRho, t, r) {
				continue
			}
			peaks = append(peaks, peak{t, r, v})
		}
	}
	sort.Slice(peaks, func(i, j int) bool { return peaks[i].votes > peaks[j].votes })

	lines := []frame.Line{}
	for _, pk := range peaks {
		if opt.MaxLines > 0 && len(lines) >= opt.MaxLines {
			break
		}
		rho := float64(pk.r - maxRho)
		seg, ok := walkLine(on, w, h, rho, sinT[pk.t], cosT[pk.t], opt)
		if !ok || overlaps(lines, seg, scale) {
			continue
		}
		lines = append(lines, frame.Line{X1: seg.X1*scale, Y1: seg.Y1*scale, X2: seg.X2*scale, Y2: seg.Y2*scale})
	}

	return lines
}

// localMax checks the 3x3 neighbourhood in (theta,rho) space; theta
// wraps around.
func localMax(acc []int, nRho, t, r int) bool {
	v := acc[t*nRho+r]
	for dt:=-1; dt<=1; dt++ {
		for dr:=-1; dr<=1; dr++ {
			if dt == 0 && dr == 0 { continue }
			tt, rr := (t+dt+nTheta)%nTheta, r+dr
			if rr < 0 || rr >= nRho { continue }
			n := acc[tt*nRho+rr]
			if n > v || (n == v && (dt < 0 || (dt == 0 && dr < 0))) {
				return false
			}
		}
	}
	return true
}

// walkLine steps along the infinite line and returns the longest run
// of lit pixels, allowing small gaps.
func walkLine(on []bool, w, h int, rho, sinT, cosT float64, opt LineOptions) (frame.Line, bool) {
	// Point on the line closest to the origin, and direction along it
	x0, y0 := rho*cosT, rho*sinT
	dx, dy := -1*sinT, cosT
	reach := math.Hypot(float64(w), float64(h))

	lit := func(x, y float64) bool {
		// accept a one pixel wobble either side of the line
		for _, o := range []float64{0, -1, 1} {
			px := int(math.Round(x + o*cosT))
			py := int(math.Round(y + o*sinT))
			if px >= 0 && py >= 0 && px < w && py < h && on[py*w+px] {
				return true
			}
		}
		return false
	}

	best := frame.Line{}
	bestLen := 0.0
	inRun, gap := false, 0
	var sx, sy, ex, ey float64

	for s:=-1*reach; s<=reach; s++ {
		x, y := x0+s*dx, y0+s*dy
		if lit(x, y) {
			if !inRun {
				sx, sy = x, y
				inRun = true
			}
			ex, ey, gap = x, y, 0
			continue
		}
		if !inRun { continue }
		gap++
		if gap > opt.MaxGap {
			if l := math.Hypot(ex-sx, ey-sy); l > bestLen {
				bestLen, best = l, segment(sx, sy, ex, ey)
			}
			inRun = false
		}
	}
	if inRun {
		if l := math.Hypot(ex-sx, ey-sy); l > bestLen {
			bestLen, best = l, segment(sx, sy, ex, ey)
		}
	}

	return best, bestLen >= float64(opt.MinLength)
}

// overlaps drops near duplicate segments, which the hough transform
// throws up for thick trails.
func overlaps(lines []frame.Line, seg frame.Line, scale int) bool {
	s := float64(scale)
	for _, l := range lines {
		d1 := math.Hypot(float64(l.X1)-s*float64(seg.X1), float64(l.Y1)-s*float64(seg.Y1))
		d2 := math.Hypot(float64(l.X2)-s*float64(seg.X2), float64(l.Y2)-s*float64(seg.Y2))
		d3 := math.Hypot(float64(l.X1)-s*float64(seg.X2), float64(l.Y1)-s*float64(seg.Y2))
		d4 := math.Hypot(float64(l.X2)-s*float64(seg.X1), float64(l.Y2)-s*float64(seg.Y1))
		if (d1 < 10*s && d2 < 10*s) || (d3 < 10*s && d4 < 10*s) {
			return true
		}
	}
	return false
}

func segment(x1, y1, x2, y2 float64) frame.Line {
	return frame.Line{
		X1: int(math.Round(x1)),
		Y1: int(math.Round(y1)),
		X2: int(math.Round(x2)),
		Y2: int(math.Round(y2)),
	}
}
