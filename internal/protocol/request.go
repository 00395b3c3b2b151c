package protocol

// Kind identifies a Request variant.
type Kind uint8

const (
	KindConnectionReady Kind = iota
	KindNewWindow
	KindRedrawWindow
	KindCloseWindow
	KindNewPage
	KindSetBaseColor
	KindGetWindowSizes
	KindSaveAsPng
	KindPrepareForSaveAsTile
	KindSaveAsTile
	KindRegisterGradient
	KindReleasePattern
	KindSuspendRendering
	KindClip
	KindDrawCircle
	KindDrawLine
	KindDrawPolyline
	KindDrawPolygon
	KindDrawRect
	KindDrawRaster
	KindDrawText
	KindDrawGlyphs
	kindCount
)

var kindNames = [kindCount]string{
	KindConnectionReady:      "ConnectionReady",
	KindNewWindow:            "NewWindow",
	KindRedrawWindow:         "RedrawWindow",
	KindCloseWindow:          "CloseWindow",
	KindNewPage:              "NewPage",
	KindSetBaseColor:         "SetBaseColor",
	KindGetWindowSizes:       "GetWindowSizes",
	KindSaveAsPng:            "SaveAsPng",
	KindPrepareForSaveAsTile: "PrepareForSaveAsTile",
	KindSaveAsTile:           "SaveAsTile",
	KindRegisterGradient:     "RegisterGradient",
	KindReleasePattern:       "ReleasePattern",
	KindSuspendRendering:     "SuspendRendering",
	KindClip:                 "Clip",
	KindDrawCircle:           "DrawCircle",
	KindDrawLine:             "DrawLine",
	KindDrawPolyline:         "DrawPolyline",
	KindDrawPolygon:          "DrawPolygon",
	KindDrawRect:             "DrawRect",
	KindDrawRaster:           "DrawRaster",
	KindDrawText:             "DrawText",
	KindDrawGlyphs:           "DrawGlyphs",
}

// String returns the variant name.
func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return "Unknown"
}

// ExpectsReply reports whether requests of this kind are RPC-style: the
// issuer blocks until exactly one Response arrives.
func (k Kind) ExpectsReply() bool {
	switch k {
	case KindGetWindowSizes, KindSaveAsTile, KindRegisterGradient:
		return true
	default:
		return false
	}
}

// IsDraw reports whether the kind mutates the scene.
func (k Kind) IsDraw() bool {
	return k >= KindClip && k < kindCount
}

// Request is the closed set of messages a host sends to the server.
// Values are immutable once constructed and consumed exactly once.
type Request interface {
	Kind() Kind
}

// ConnectionReady acknowledges the bootstrap address exchange.
type ConnectionReady struct{}

// NewWindow materializes the window, or resets the scene if it exists.
type NewWindow struct{}

// RedrawWindow asks for a repaint if the scene changed since the last one.
type RedrawWindow struct{}

// CloseWindow destroys the window and its surface.
type CloseWindow struct{}

// NewPage clears the scene.
type NewPage struct{}

// SetBaseColor sets the colour painted beneath the scene.
type SetBaseColor struct {
	Color uint32
}

// GetWindowSizes queries the inner size of the window.
type GetWindowSizes struct{}

// SaveAsPng rasterizes the current scene to a PNG file. Zero dimensions
// mean the current canvas size.
type SaveAsPng struct {
	Filename      string
	Width, Height int
}

// PrepareForSaveAsTile starts capturing subsequent draws into a tile.
// Height is the canvas height the captured coordinates refer to.
type PrepareForSaveAsTile struct {
	Height float64
}

// SaveAsTile finishes a tile capture. The tile covers the logical rectangle
// with bottom-left corner (X, Y) and the given size.
type SaveAsTile struct {
	X, Y          float64
	Width, Height float64
	Extend        Extend
}

// RegisterGradient stores a gradient definition in the pattern registry.
type RegisterGradient struct {
	Gradient Gradient
}

// ReleasePattern drops a registered pattern. The index is never reused.
type ReleasePattern struct {
	Index int
}

// SuspendRendering toggles the flag that stops periodic redraws while the
// host performs a multi-step update.
type SuspendRendering struct {
	Suspended bool
}

// Clip sets the clip rectangle. A rectangle covering the whole canvas
// releases the current clip.
type Clip struct {
	P0, P1 Point
}

type DrawCircle struct {
	Center Point
	Radius float64
	Fill   *FillParams
	Stroke *StrokeParams
}

type DrawLine struct {
	P0, P1 Point
	Stroke StrokeParams
}

type DrawPolyline struct {
	Path   Path
	Stroke StrokeParams
}

// DrawPolygon fills and strokes a path. Several closed subpaths express holes
// under the chosen fill rule.
type DrawPolygon struct {
	Path   Path
	Fill   *FillParams
	Stroke *StrokeParams
}

type DrawRect struct {
	P0, P1 Point
	Fill   *FillParams
	Stroke *StrokeParams
}

// DrawRaster places an image. Pos is the bottom-left corner in logical
// coordinates, Scale the device size of one image pixel and Angle the
// counter-clockwise rotation in degrees.
type DrawRaster struct {
	Image       Raster
	Pos         Point
	Scale       Point
	Angle       float64
	Interpolate bool
	ExtendEdge  bool
}

// DrawText lays out and draws a string. Angle is in radians; Hadj is the
// horizontal justification in [0, 1].
type DrawText struct {
	Pos        Point
	Text       string
	Color      Color
	Size       float64
	LineHeight float64
	Family     string
	Face       int
	Angle      float64
	Hadj       float64
}

// DrawGlyphs draws pre-positioned glyph IDs from a font.
type DrawGlyphs struct {
	IDs    []uint32
	X, Y   []float64
	Size   float64
	Color  Color
	Family string
	Face   int
	Angle  float64
}

func (ConnectionReady) Kind() Kind      { return KindConnectionReady }
func (NewWindow) Kind() Kind            { return KindNewWindow }
func (RedrawWindow) Kind() Kind         { return KindRedrawWindow }
func (CloseWindow) Kind() Kind          { return KindCloseWindow }
func (NewPage) Kind() Kind              { return KindNewPage }
func (SetBaseColor) Kind() Kind         { return KindSetBaseColor }
func (GetWindowSizes) Kind() Kind       { return KindGetWindowSizes }
func (SaveAsPng) Kind() Kind            { return KindSaveAsPng }
func (PrepareForSaveAsTile) Kind() Kind { return KindPrepareForSaveAsTile }
func (SaveAsTile) Kind() Kind           { return KindSaveAsTile }
func (RegisterGradient) Kind() Kind     { return KindRegisterGradient }
func (ReleasePattern) Kind() Kind       { return KindReleasePattern }
func (SuspendRendering) Kind() Kind     { return KindSuspendRendering }
func (Clip) Kind() Kind                 { return KindClip }
func (DrawCircle) Kind() Kind           { return KindDrawCircle }
func (DrawLine) Kind() Kind             { return KindDrawLine }
func (DrawPolyline) Kind() Kind         { return KindDrawPolyline }
func (DrawPolygon) Kind() Kind          { return KindDrawPolygon }
func (DrawRect) Kind() Kind             { return KindDrawRect }
func (DrawRaster) Kind() Kind           { return KindDrawRaster }
func (DrawText) Kind() Kind             { return KindDrawText }
func (DrawGlyphs) Kind() Kind           { return KindDrawGlyphs }
