package protocol

// FillRule selects how path interiors are determined.
type FillRule uint8

const (
	NonZero FillRule = iota
	EvenOdd
)

// Join is the stroke line-join style.
type Join uint8

const (
	JoinRound Join = iota
	JoinMiter
	JoinBevel
)

// Cap is the stroke line-cap style.
type Cap uint8

const (
	CapRound Cap = iota
	CapButt
	CapSquare
)

// Extend controls how a pattern behaves outside its defined area.
type Extend uint8

const (
	ExtendPad Extend = iota
	ExtendRepeat
	ExtendReflect
	ExtendNone
)

// String returns the lowercase extend name.
func (e Extend) String() string {
	switch e {
	case ExtendPad:
		return "pad"
	case ExtendRepeat:
		return "repeat"
	case ExtendReflect:
		return "reflect"
	case ExtendNone:
		return "none"
	default:
		return "unknown"
	}
}

// BrushKind distinguishes solid brushes from pattern references.
type BrushKind uint8

const (
	BrushSolid BrushKind = iota
	BrushPattern
)

// Brush is either a colour or a reference into the pattern registry.
type Brush struct {
	Kind    BrushKind
	Color   Color
	Pattern int
}

// SolidBrush returns a colour brush.
func SolidBrush(c Color) Brush {
	return Brush{Kind: BrushSolid, Color: c}
}

// PatternRef returns a brush referring to registered pattern index.
func PatternRef(index int) Brush {
	return Brush{Kind: BrushPattern, Pattern: index}
}

// FillParams describes how to fill a shape.
type FillParams struct {
	Brush Brush
	Rule  FillRule
}

// StrokeParams describes how to outline a shape.
type StrokeParams struct {
	Color      Color
	Width      float64
	Join       Join
	Cap        Cap
	MiterLimit float64
	// Dash holds alternating on/off run lengths. Empty means solid.
	Dash       []float64
	DashOffset float64
}

// GradientKind distinguishes linear from radial gradients.
type GradientKind uint8

const (
	GradientLinear GradientKind = iota
	GradientRadial
)

// ColorStop is one colour at a normalized gradient offset.
type ColorStop struct {
	Offset float64
	Color  Color
}

// Gradient is a gradient definition in logical coordinates.
// Linear gradients run from (X0,Y0) to (X1,Y1). Radial gradients use
// (X0,Y0,R0) as the focal circle and (X1,Y1,R1) as the outer circle.
type Gradient struct {
	Kind   GradientKind
	X0, Y0 float64
	X1, Y1 float64
	R0, R1 float64
	Stops  []ColorStop
	Extend Extend
}

// Clone returns a deep copy.
func (g Gradient) Clone() Gradient {
	out := g
	out.Stops = append([]ColorStop(nil), g.Stops...)
	return out
}

// Raster is a tightly packed straight-alpha RGBA8 image, top row first.
type Raster struct {
	Width, Height int
	Pix           []byte
}
