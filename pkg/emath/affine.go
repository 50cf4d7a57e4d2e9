package emath

// Similarity transforms, for registering one frame onto another

import(
	"errors"
	"fmt"
	"math"

	"golang.org/x/image/math/f64"
	"gonum.org/v1/gonum/mat"
)

var ErrSingular = errors.New("emath: singular system")

// An Aff3 is a row-major 2x3 matrix; it converts straight to the
// x/image/draw transform type when warping.
type Aff3 f64.Aff3

func (m Aff3)Apply(p Point) Point {
	return Point{
		m[0]*p.X + m[1]*p.Y + m[2],
		m[3]*p.X + m[4]*p.Y + m[5],
	}
}

// Params decomposes a similarity transform.
func (m Aff3)Params() (scale, rotDeg, tx, ty float64) {
	scale = math.Hypot(m[0], m[3])
	rotDeg = math.Atan2(m[3], m[0]) * 180.0 / math.Pi
	return scale, rotDeg, m[2], m[5]
}

func (m Aff3)String() string {
	s, r, tx, ty := m.Params()
	return fmt.Sprintf("xform[(%6.2f,%6.2f), %5.2fdeg, x%.4f]", tx, ty, r, s)
}

type Point struct {
	X, Y float64
}

func (p Point)Dist(p2 Point) float64 { return math.Hypot(p.X-p2.X, p.Y-p2.Y) }

// FitSimilarity finds the least squares similarity transform (rotate,
// uniform scale, translate) that maps each src point onto its dst
// point. Needs at least two distinct pairs.
//
//   x' = a*x - b*y + tx
//   y' = b*x + a*y + ty
func FitSimilarity(src, dst []Point) (Aff3, error) {
	n := len(src)
	if n < 2 || n != len(dst) {
		return Aff3{}, fmt.Errorf("%w: %d src, %d dst points", ErrSingular, len(src), len(dst))
	}

	A := mat.NewDense(2*n, 4, nil)
	b := mat.NewVecDense(2*n, nil)
	for i:=0; i<n; i++ {
		A.SetRow(2*i,   []float64{src[i].X, -1*src[i].Y, 1, 0})
		A.SetRow(2*i+1, []float64{src[i].Y,    src[i].X, 0, 1})
		b.SetVec(2*i,   dst[i].X)
		b.SetVec(2*i+1, dst[i].Y)
	}

	var x mat.VecDense
	if err := x.SolveVec(A, b); err != nil {
		return Aff3{}, fmt.Errorf("%w: %v", ErrSingular, err)
	}

	a, bb, tx, ty := x.AtVec(0), x.AtVec(1), x.AtVec(2), x.AtVec(3)
	if math.IsNaN(a) || math.IsNaN(bb) || (a == 0 && bb == 0) {
		return Aff3{}, ErrSingular
	}
	return Aff3{a, -1*bb, tx,   bb, a, ty}, nil
}
