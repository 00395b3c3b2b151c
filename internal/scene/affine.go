package scene

import (
	"math"

	"github.com/opd-ai/go-vellogd/internal/protocol"
)

// Affine is a 2D affine transform:
//
//	x' = A*x + B*y + C
//	y' = D*x + E*y + F
type Affine struct {
	A, B, C float64
	D, E, F float64
}

// Identity is the identity transform.
var Identity = Affine{A: 1, E: 1}

// Translate returns a translation.
func Translate(x, y float64) Affine {
	return Affine{A: 1, C: x, E: 1, F: y}
}

// Scale returns a scaling about the origin.
func Scale(sx, sy float64) Affine {
	return Affine{A: sx, E: sy}
}

// Rotate returns a rotation by angle radians. In a y-down space a positive
// angle turns clockwise on screen.
func Rotate(angle float64) Affine {
	sin, cos := math.Sincos(angle)
	return Affine{A: cos, B: -sin, D: sin, E: cos}
}

// FlipY maps bottom-left-origin logical coordinates onto a top-left-origin
// device of the given height: y' = height - y.
func FlipY(height float64) Affine {
	return Affine{A: 1, E: -1, F: height}
}

// Then returns the transform that applies a and then b.
func (a Affine) Then(b Affine) Affine {
	return Affine{
		A: b.A*a.A + b.B*a.D,
		B: b.A*a.B + b.B*a.E,
		C: b.A*a.C + b.B*a.F + b.C,
		D: b.D*a.A + b.E*a.D,
		E: b.D*a.B + b.E*a.E,
		F: b.D*a.C + b.E*a.F + b.F,
	}
}

// Apply transforms a point.
func (a Affine) Apply(p protocol.Point) protocol.Point {
	return protocol.Pt(a.A*p.X+a.B*p.Y+a.C, a.D*p.X+a.E*p.Y+a.F)
}

// Invert returns the inverse transform. A singular transform yields false.
func (a Affine) Invert() (Affine, bool) {
	det := a.A*a.E - a.B*a.D
	if det == 0 || math.IsNaN(det) {
		return Affine{}, false
	}
	inv := 1 / det
	return Affine{
		A: a.E * inv,
		B: -a.B * inv,
		C: (a.B*a.F - a.E*a.C) * inv,
		D: -a.D * inv,
		E: a.A * inv,
		F: (a.D*a.C - a.A*a.F) * inv,
	}, true
}

// ScaleFactor is the geometric mean of the axis scales, used to scale
// stroke widths and radii.
func (a Affine) ScaleFactor() float64 {
	return math.Sqrt(math.Abs(a.A*a.E - a.B*a.D))
}
