package stack

import(
	"errors"
	"fmt"
	"image"
	"log"
	"math"
	"sort"
	"sync"

	"golang.org/x/image/draw"      // replace by "image/draw" at some point
	"golang.org/x/image/math/f64"  // replace by "image/math/f64" at some point

	"github.com/abworrall/allsky/pkg/detect"
	"github.com/abworrall/allsky/pkg/emath"
	"github.com/abworrall/allsky/pkg/frame"
)

var(
	ErrMaxIter             = errors.New("stack: no transform found with enough matching stars")
	ErrDegenerateTransform = errors.New("stack: degenerate transform")
)

// RegisterOptions tunes star matching between frames.
type RegisterOptions struct {
	Sigma            float64  // star detection threshold
	MinArea          int
	MaxControlPoints int      // brightest N stars used for matching
	Tolerance        float64  // pixels; a star pair within this is an inlier
	InvariantTol     float64  // how close triangle shapes must be
	MinInliers       int
	Workers          int
}

var DefaultRegisterOptions = RegisterOptions{
	Sigma:            7,
	MinArea:          15,
	MaxControlPoints: 100,
	Tolerance:        2.0,
	InvariantTol:     0.1,
	MinInliers:       4,
	Workers:          8,
}

// CropRect is the centred rectangle holding the middle third of the
// frame by area.
func CropRect(w, h int) image.Rectangle {
	cw := int(float64(w) / math.Sqrt(3))
	ch := int(float64(h) / math.Sqrt(3))
	x0, y0 := (w-cw)/2, (h-ch)/2
	return image.Rect(x0, y0, x0+cw, y0+ch)
}

// luminanceGrid gives a float view of a raw buffer; colour samples are
// averaged.
func luminanceGrid(b frame.Buffer) emath.FloatGrid {
	fg := emath.NewFloatGrid(b.Width, b.Height)
	for y:=0; y<b.Height; y++ {
		for x:=0; x<b.Width; x++ {
			sum := 0.0
			for c:=0; c<b.Channels; c++ {
				sum += float64(b.At(x, y, c))
			}
			fg.Set(x, y, sum/float64(b.Channels))
		}
	}
	return fg
}

func controlPoints(b frame.Buffer, crop image.Rectangle, opt RegisterOptions) []emath.Point {
	fg := luminanceGrid(b)
	sub := fg.SubGrid(crop)
	stars := detect.FindStars(sub, nil, detect.StarOptions{
		Sigma:    opt.Sigma,
		MinArea:  opt.MinArea,
		MaxStars: opt.MaxControlPoints,
	})

	pts := []emath.Point{}
	for _, s := range stars {
		pts = append(pts, emath.Point{X: s.X + float64(crop.Min.X), Y: s.Y + float64(crop.Min.Y)})
	}
	return pts
}

// {{{ triangles

// A triangle of control points, with vertices ordered by the sides
// opposite them (shortest first), so two similar triangles line up
// vertex for vertex.
type triangle struct {
	v   [3]int
	inv [2]float64
}

func makeTriangle(pts []emath.Point, i, j, k int) (triangle, bool) {
	idx := [3]int{i, j, k}
	// side s[n] is opposite vertex idx[n]
	s := [3]float64{
		pts[j].Dist(pts[k]),
		pts[i].Dist(pts[k]),
		pts[i].Dist(pts[j]),
	}
	order := []int{0, 1, 2}
	sort.Slice(order, func(a, b int) bool { return s[order[a]] < s[order[b]] })

	l0, l1, l2 := s[order[0]], s[order[1]], s[order[2]]
	if l0 < 1.0 || l1 == l0 || l2 == l1 {
		return triangle{}, false // too thin, or ambiguous vertex order
	}

	return triangle{
		v:   [3]int{idx[order[0]], idx[order[1]], idx[order[2]]},
		inv: [2]float64{l2/l1, l1/l0},
	}, true
}

// buildTriangles makes triangles out of each point and its four
// nearest neighbours.
func buildTriangles(pts []emath.Point) []triangle {
	tris := []triangle{}
	seen := map[[3]int]bool{}

	for i := range pts {
		near := make([]int, 0, len(pts))
		for j := range pts {
			near = append(near, j)
		}
		sort.Slice(near, func(a, b int) bool { return pts[i].Dist(pts[near[a]]) < pts[i].Dist(pts[near[b]]) })
		if len(near) > 5 { near = near[:5] }

		for a:=0; a<len(near); a++ {
			for b:=a+1; b<len(near); b++ {
				for c:=b+1; c<len(near); c++ {
					key := [3]int{near[a], near[b], near[c]}
					sort.Ints(key[:])
					if seen[key] { continue }
					seen[key] = true
					if t, ok := makeTriangle(pts, key[0], key[1], key[2]); ok {
						tris = append(tris, t)
					}
				}
			}
		}
	}
	return tris
}

// }}}

type pair struct{ src, dst int }

type hypothesis struct {
	// Inputs
	Name      string
	XForm     emath.Aff3

	// Outputs
	Inliers   int
	Residual  float64
}

// FindTransform works out the similarity transform that maps pixel
// locations in `target` onto the same bit of sky in `ref`.
func FindTransform(ref, target frame.Buffer, opt RegisterOptions) (emath.Aff3, error) {
	crop := CropRect(ref.Width, ref.Height)
	refPts := controlPoints(ref, crop, opt)
	tgtPts := controlPoints(target, crop, opt)

	if len(refPts) < 3 || len(tgtPts) < 3 {
		return emath.Aff3{}, fmt.Errorf("%w: %d reference and %d target stars", ErrDegenerateTransform, len(refPts), len(tgtPts))
	}

	refTris := buildTriangles(refPts)
	tgtTris := buildTriangles(tgtPts)

	// Match up similar triangles
	hyps := []hypothesis{}
	pairSet := map[pair]bool{}
	for _, tt := range tgtTris {
		best, bestD := -1, opt.InvariantTol
		for i, rt := range refTris {
			d := math.Hypot(tt.inv[0]-rt.inv[0], tt.inv[1]-rt.inv[1])
			if d < bestD {
				best, bestD = i, d
			}
		}
		if best < 0 { continue }

		rt := refTris[best]
		src := []emath.Point{tgtPts[tt.v[0]], tgtPts[tt.v[1]], tgtPts[tt.v[2]]}
		dst := []emath.Point{refPts[rt.v[0]], refPts[rt.v[1]], refPts[rt.v[2]]}
		m, err := emath.FitSimilarity(src, dst)
		if err != nil { continue }

		hyps = append(hyps, hypothesis{Name: fmt.Sprintf("tri-%03d", len(hyps)), XForm: m})
		for n:=0; n<3; n++ {
			pairSet[pair{tt.v[n], rt.v[n]}] = true
		}
	}
	if len(hyps) == 0 {
		return emath.Aff3{}, fmt.Errorf("%w: no matching triangles", ErrMaxIter)
	}

	pairs := []pair{}
	for p := range pairSet {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].src != pairs[j].src { return pairs[i].src < pairs[j].src }
		return pairs[i].dst < pairs[j].dst
	})

	best := scoreHypothesesConcurrently(hyps, pairs, tgtPts, refPts, opt)
	if best.Inliers < opt.MinInliers {
		return emath.Aff3{}, fmt.Errorf("%w: best had %d inliers, need %d", ErrMaxIter, best.Inliers, opt.MinInliers)
	}

	// Refit on every inlier
	src, dst := []emath.Point{}, []emath.Point{}
	used := map[int]bool{}
	for _, p := range pairs {
		if used[p.src] { continue }
		if best.XForm.Apply(tgtPts[p.src]).Dist(refPts[p.dst]) < opt.Tolerance {
			src = append(src, tgtPts[p.src])
			dst = append(dst, refPts[p.dst])
			used[p.src] = true
		}
	}
	m, err := emath.FitSimilarity(src, dst)
	if err != nil {
		return emath.Aff3{}, fmt.Errorf("%w: %v", ErrDegenerateTransform, err)
	}
	if scale, _, _, _ := m.Params(); scale < 0.9 || scale > 1.1 {
		return emath.Aff3{}, fmt.Errorf("%w: scale %.3f", ErrDegenerateTransform, scale)
	}

	return m, nil
}

// scoreHypothesesConcurrently uses a pool of goroutines to count the
// inliers for each proposed transform, and returns the best one.
func scoreHypothesesConcurrently(hyps []hypothesis, pairs []pair, src, dst []emath.Point, opt RegisterOptions) hypothesis {
	var wg sync.WaitGroup
	jobsChan    := make(chan hypothesis, len(hyps))
	resultsChan := make(chan hypothesis, len(hyps))

	nWorkers := opt.Workers
	if nWorkers < 1 { nWorkers = 1 }
	for i:=0; i<nWorkers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			for job := range jobsChan {
				counted := map[int]bool{}
				for _, p := range pairs {
					if counted[p.src] { continue }
					d := job.XForm.Apply(src[p.src]).Dist(dst[p.dst])
					if d < opt.Tolerance {
						counted[p.src] = true
						job.Inliers++
						job.Residual += d
					}
				}
				resultsChan<- job
			}
		}()
	}

	// Feed in jobs
	for _, h := range hyps {
		jobsChan<- h
	}

	close(jobsChan)
	wg.Wait()
	close(resultsChan)

	// results processor
	best := hypothesis{Residual: math.MaxFloat64}
	for result := range resultsChan {
		if result.Inliers > best.Inliers ||
			(result.Inliers == best.Inliers && result.Residual < best.Residual) ||
			(result.Inliers == best.Inliers && result.Residual == best.Residual && result.Name < best.Name) {
			best = result
		}
	}

	return best
}

// Warp resamples the buffer through the transform.
func Warp(b frame.Buffer, m emath.Aff3) frame.Buffer {
	src := b.ToImage(0)
	var dst draw.Image
	if b.IsColor() {
		dst = image.NewRGBA64(src.Bounds())
	} else {
		dst = image.NewGray16(src.Bounds())
	}
	draw.CatmullRom.Transform(dst, f64.Aff3(m), src, src.Bounds(), draw.Src, nil)
	return frame.BufferFromImage(dst, 16)
}

// Register aligns each of the frames onto the first one. Frames that
// can't be registered are logged and left out.
func Register(frames []*frame.Frame, opt RegisterOptions) []frame.Buffer {
	if len(frames) == 0 {
		return nil
	}
	ref := frames[0]
	out := []frame.Buffer{ref.Buffer}

	for _, f := range frames[1:] {
		if !f.SameShape(ref.Buffer) {
			log.Printf("Image registration skipped, %s does not match %s\n", f.Buffer, ref.Buffer)
			continue
		}
		m, err := FindTransform(ref.Buffer, f.Buffer, opt)
		if err != nil {
			log.Printf("Image registration failure: %v\n", err)
			continue
		}
		out = append(out, Warp(f.Buffer, m))
	}

	return out
}
