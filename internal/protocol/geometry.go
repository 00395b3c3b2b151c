package protocol

import "math"

// Point is a position in bottom-left-origin logical coordinates.
type Point struct {
	X, Y float64
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// SegmentOp identifies a path segment.
type SegmentOp uint8

const (
	OpMoveTo SegmentOp = iota
	OpLineTo
	OpQuadTo
	OpCubicTo
	OpClose
)

// Segment is one path element. Points holds the control points followed by
// the end point; unused entries are zero.
type Segment struct {
	Op     SegmentOp
	Points [3]Point
}

// Path is an ordered list of segments. A path may hold several subpaths.
type Path struct {
	Segments []Segment
}

// MoveTo starts a new subpath.
func (p *Path) MoveTo(pt Point) *Path {
	p.Segments = append(p.Segments, Segment{Op: OpMoveTo, Points: [3]Point{pt}})
	return p
}

// LineTo appends a straight segment.
func (p *Path) LineTo(pt Point) *Path {
	p.Segments = append(p.Segments, Segment{Op: OpLineTo, Points: [3]Point{pt}})
	return p
}

// QuadTo appends a quadratic Bézier segment.
func (p *Path) QuadTo(c, pt Point) *Path {
	p.Segments = append(p.Segments, Segment{Op: OpQuadTo, Points: [3]Point{c, pt}})
	return p
}

// CubicTo appends a cubic Bézier segment.
func (p *Path) CubicTo(c1, c2, pt Point) *Path {
	p.Segments = append(p.Segments, Segment{Op: OpCubicTo, Points: [3]Point{c1, c2, pt}})
	return p
}

// Close closes the current subpath.
func (p *Path) Close() *Path {
	p.Segments = append(p.Segments, Segment{Op: OpClose})
	return p
}

// IsEmpty reports whether the path has no drawable segments.
func (p Path) IsEmpty() bool {
	return len(p.Segments) == 0
}

// Clone returns a deep copy.
func (p Path) Clone() Path {
	out := Path{Segments: make([]Segment, len(p.Segments))}
	copy(out.Segments, p.Segments)
	return out
}

// PathFromXY builds a polyline through the given coordinates.
// Extra entries in the longer slice are ignored.
func PathFromXY(x, y []float64, closed bool) Path {
	var p Path
	n := min(len(x), len(y))
	if n == 0 {
		return p
	}
	p.MoveTo(Pt(x[0], y[0]))
	for i := 1; i < n; i++ {
		p.LineTo(Pt(x[i], y[i]))
	}
	if closed {
		p.Close()
	}
	return p
}

// PathWithHoles builds one closed subpath per entry of nper, consuming
// nper[i] points for subpath i. Running out of points ends the path.
func PathWithHoles(x, y []float64, nper []int) Path {
	var p Path
	n := min(len(x), len(y))
	i := 0
	for _, count := range nper {
		if i >= n || count <= 0 {
			break
		}
		p.MoveTo(Pt(x[i], y[i]))
		i++
		for k := 1; k < count && i < n; k++ {
			p.LineTo(Pt(x[i], y[i]))
			i++
		}
		p.Close()
	}
	return p
}

// kappa is the cubic control distance for a quarter circle of radius 1.
const kappa = 0.5522847498307936

// CirclePath approximates a circle with four cubic segments.
func CirclePath(center Point, r float64) Path {
	var p Path
	k := kappa * r
	cx, cy := center.X, center.Y
	p.MoveTo(Pt(cx+r, cy))
	p.CubicTo(Pt(cx+r, cy+k), Pt(cx+k, cy+r), Pt(cx, cy+r))
	p.CubicTo(Pt(cx-k, cy+r), Pt(cx-r, cy+k), Pt(cx-r, cy))
	p.CubicTo(Pt(cx-r, cy-k), Pt(cx-k, cy-r), Pt(cx, cy-r))
	p.CubicTo(Pt(cx+k, cy-r), Pt(cx+r, cy-k), Pt(cx+r, cy))
	p.Close()
	return p
}

// RectPath builds a closed rectangle from two opposite corners.
func RectPath(p0, p1 Point) Path {
	var p Path
	p.MoveTo(p0)
	p.LineTo(Pt(p1.X, p0.Y))
	p.LineTo(p1)
	p.LineTo(Pt(p0.X, p1.Y))
	p.Close()
	return p
}

// Rect is an axis-aligned rectangle with Min <= Max on both axes.
type Rect struct {
	Min, Max Point
}

// NormalizeRect orders two corners into a Rect.
func NormalizeRect(p0, p1 Point) Rect {
	return Rect{
		Min: Pt(math.Min(p0.X, p1.X), math.Min(p0.Y, p1.Y)),
		Max: Pt(math.Max(p0.X, p1.X), math.Max(p0.Y, p1.Y)),
	}
}

// Width returns the horizontal extent.
func (r Rect) Width() float64 { return r.Max.X - r.Min.X }

// Height returns the vertical extent.
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Covers reports whether r contains the whole canvas [0,w]x[0,h].
func (r Rect) Covers(w, h float64) bool {
	return r.Min.X <= 0 && r.Min.Y <= 0 && r.Max.X >= w && r.Max.Y >= h
}
