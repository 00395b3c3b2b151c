package vellogd

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/opd-ai/go-vellogd/internal/protocol"
	"github.com/opd-ai/go-vellogd/internal/text"
)

// Metric describes a single character at a given font setting.
type Metric = text.Metric

// Device receives a host's drawing callbacks, one method per callback.
// Coordinates are logical, with the origin at the bottom-left of the
// canvas. Colours are packed host colours (see GC).
type Device interface {
	Activate() error
	Deactivate() error
	Close() error

	// NewPage starts a fresh page painted with gc.Fill when it is not
	// transparent.
	NewPage(gc GC) error
	// Mode is called when the host starts (1) or stops (0) drawing.
	Mode(mode int) error
	// HoldFlush adjusts the flush hold level and returns the new level.
	HoldFlush(level int) (int, error)
	// Size returns the canvas extents as left, right, bottom and top.
	Size() (left, right, bottom, top float64, err error)

	// Clip sets the clip rectangle; one covering the canvas releases it.
	Clip(from, to Point) error
	Circle(center Point, radius float64, gc GC) error
	Line(from, to Point, gc GC) error
	Polyline(x, y []float64, gc GC) error
	Polygon(x, y []float64, gc GC) error
	// Path fills nper[i] points per subpath. winding selects the nonzero
	// rule; otherwise even-odd is used.
	Path(x, y []float64, nper []int, winding bool, gc GC) error
	Rect(from, to Point, gc GC) error
	// Raster draws a width x height image of packed host colours, top row
	// first, with its bottom-left corner at pos, scaled to size and
	// rotated by angle degrees.
	Raster(pix []uint32, width, height int, pos, size Point, angle float64, interpolate bool, gc GC) error
	// Text draws s at pos, rotated by angle degrees and justified by hadj.
	Text(pos Point, s string, angle, hadj float64, gc GC) error
	Glyphs(ids []uint32, x, y []float64, family string, face int, size, angle float64, col uint32) error

	TextWidth(s string, gc GC) (float64, error)
	CharMetric(r rune, gc GC) (Metric, error)

	// SetPattern registers a gradient and returns its pattern index.
	SetPattern(g Gradient) (int, error)
	ReleasePattern(index int) error
	// BeginTile starts capturing draws into a tile pattern.
	BeginTile(height float64) error
	// EndTile finishes the capture; the tile covers the rectangle with
	// bottom-left corner (x, y).
	EndTile(x, y, width, height float64, extend Extend) (int, error)
	SavePNG(filename string, width, height int) error
}

// RemoteDevice forwards callbacks to a server over a ClientChannel.
// Text metrics are computed locally with the same fonts the server uses.
type RemoteDevice struct {
	client   *protocol.Client
	layouter *text.Layouter
	breaker  *CircuitBreaker
	logger   Logger

	mu   sync.Mutex
	hold int

	closeOnce sync.Once
	closeErr  error
}

var _ Device = (*RemoteDevice)(nil)

// NewRemoteDevice wraps ch. A nil logger discards output.
func NewRemoteDevice(ch ClientChannel, logger Logger) *RemoteDevice {
	if logger == nil {
		logger = NopLogger()
	}
	d := &RemoteDevice{
		client:   protocol.NewClient(ch),
		layouter: text.NewLayouter(),
		logger:   logger,
	}
	d.breaker = NewCircuitBreaker(CircuitBreakerConfig{
		OnStateChange: func(from, to CircuitState) {
			d.logger.Warn("server channel circuit changed", "from", from, "to", to)
		},
	})
	return d
}

// Connect dials a server listening at address ("tcp:host:port" or
// "unix:/path") and returns a device drawing to it.
func Connect(ctx context.Context, address string, logger Logger) (*RemoteDevice, error) {
	ch, err := protocol.Dial(ctx, nil, address)
	if err != nil {
		return nil, err
	}
	return NewRemoteDevice(ch, logger), nil
}

// Breaker exposes the circuit guarding the server channel.
func (d *RemoteDevice) Breaker() *CircuitBreaker { return d.breaker }

// guard runs fn through the breaker. Failures reported by the server do
// not count against the channel.
func (d *RemoteDevice) guard(fn func() error) error {
	var remote error
	err := d.breaker.Execute(func() error {
		err := fn()
		var re *protocol.RemoteError
		if errors.As(err, &re) {
			remote = err
			return nil
		}
		return err
	})
	if remote != nil {
		return remote
	}
	return err
}

func (d *RemoteDevice) send(r Request) error {
	return d.guard(func() error { return d.client.Send(r) })
}

func (d *RemoteDevice) Activate() error   { return d.send(protocol.NewWindow{}) }
func (d *RemoteDevice) Deactivate() error { return nil }

// Close asks the server to close its window and releases the channel.
func (d *RemoteDevice) Close() error {
	err := d.send(protocol.CloseWindow{})
	if cerr := d.Disconnect(); err == nil {
		err = cerr
	}
	return err
}

// Disconnect releases the channel without closing the window. Calls after
// the first return the first result.
func (d *RemoteDevice) Disconnect() error {
	d.closeOnce.Do(func() { d.closeErr = d.client.Close() })
	return d.closeErr
}

func (d *RemoteDevice) NewPage(gc GC) error {
	if gc.Fill != 0 {
		if err := d.send(protocol.SetBaseColor{Color: gc.Fill}); err != nil {
			return err
		}
	}
	return d.send(protocol.NewPage{})
}

func (d *RemoteDevice) Mode(int) error { return nil }

func (d *RemoteDevice) HoldFlush(level int) (int, error) {
	d.mu.Lock()
	d.hold = max(d.hold+level, 0)
	hold := d.hold
	d.mu.Unlock()

	return hold, d.send(protocol.SuspendRendering{Suspended: hold > 0})
}

func (d *RemoteDevice) Size() (left, right, bottom, top float64, err error) {
	var w, h uint32
	err = d.guard(func() error {
		var err error
		w, h, err = d.client.WindowSizes()
		return err
	})
	return 0, float64(w), 0, float64(h), err
}

func (d *RemoteDevice) Clip(from, to Point) error {
	return d.send(protocol.Clip{P0: from, P1: to})
}

func (d *RemoteDevice) Circle(center Point, radius float64, gc GC) error {
	fill, stroke := gc.FillParams(), gc.StrokeParams()
	if fill == nil && stroke == nil {
		return nil
	}
	return d.send(protocol.DrawCircle{Center: center, Radius: radius, Fill: fill, Stroke: stroke})
}

func (d *RemoteDevice) Line(from, to Point, gc GC) error {
	stroke := gc.StrokeParams()
	if stroke == nil {
		return nil
	}
	return d.send(protocol.DrawLine{P0: from, P1: to, Stroke: *stroke})
}

func (d *RemoteDevice) Polyline(x, y []float64, gc GC) error {
	stroke := gc.StrokeParams()
	if stroke == nil {
		return nil
	}
	return d.send(protocol.DrawPolyline{Path: protocol.PathFromXY(x, y, false), Stroke: *stroke})
}

func (d *RemoteDevice) Polygon(x, y []float64, gc GC) error {
	fill, stroke := gc.FillParams(), gc.StrokeParams()
	if fill == nil && stroke == nil {
		return nil
	}
	return d.send(protocol.DrawPolygon{Path: protocol.PathFromXY(x, y, true), Fill: fill, Stroke: stroke})
}

func (d *RemoteDevice) Path(x, y []float64, nper []int, winding bool, gc GC) error {
	fill, stroke := gc.FillParams(), gc.StrokeParams()
	if fill == nil && stroke == nil {
		return nil
	}
	if fill != nil && !winding {
		fill.Rule = protocol.EvenOdd
	}
	return d.send(protocol.DrawPolygon{Path: protocol.PathWithHoles(x, y, nper), Fill: fill, Stroke: stroke})
}

func (d *RemoteDevice) Rect(from, to Point, gc GC) error {
	fill, stroke := gc.FillParams(), gc.StrokeParams()
	if fill == nil && stroke == nil {
		return nil
	}
	return d.send(protocol.DrawRect{P0: from, P1: to, Fill: fill, Stroke: stroke})
}

func (d *RemoteDevice) Raster(pix []uint32, width, height int, pos, size Point, angle float64, interpolate bool, _ GC) error {
	img, err := rasterFromHost(pix, width, height)
	if err != nil {
		return err
	}
	return d.send(protocol.DrawRaster{
		Image:       img,
		Pos:         pos,
		Scale:       Pt(size.X/float64(width), size.Y/float64(height)),
		Angle:       angle,
		Interpolate: interpolate,
		ExtendEdge:  interpolate,
	})
}

// rasterFromHost converts packed host colours into a straight RGBA raster.
func rasterFromHost(pix []uint32, width, height int) (protocol.Raster, error) {
	if width <= 0 || height <= 0 {
		return protocol.Raster{}, fmt.Errorf("raster: invalid size %dx%d", width, height)
	}
	if len(pix) < width*height {
		return protocol.Raster{}, fmt.Errorf("raster: %d pixels for %dx%d image", len(pix), width, height)
	}
	out := make([]byte, 4*width*height)
	for i, v := range pix[:width*height] {
		c := protocol.ColorFromUint32(v)
		out[4*i], out[4*i+1], out[4*i+2], out[4*i+3] = c.R, c.G, c.B, c.A
	}
	return protocol.Raster{Width: width, Height: height, Pix: out}, nil
}

func (d *RemoteDevice) Text(pos Point, s string, angle, hadj float64, gc GC) error {
	col := protocol.ColorFromUint32(gc.Col)
	if col.IsTransparent() || s == "" {
		return nil
	}
	return d.send(protocol.DrawText{
		Pos:        pos,
		Text:       s,
		Color:      col,
		Size:       gc.FontSize(),
		LineHeight: gc.LineHeight,
		Family:     gc.FontFamily,
		Face:       gc.FontFace,
		Angle:      angle * math.Pi / 180,
		Hadj:       hadj,
	})
}

func (d *RemoteDevice) Glyphs(ids []uint32, x, y []float64, family string, face int, size, angle float64, col uint32) error {
	c := protocol.ColorFromUint32(col)
	if c.IsTransparent() || len(ids) == 0 {
		return nil
	}
	return d.send(protocol.DrawGlyphs{
		IDs:    ids,
		X:      x,
		Y:      y,
		Size:   size,
		Color:  c,
		Family: family,
		Face:   face,
		Angle:  angle * math.Pi / 180,
	})
}

func (d *RemoteDevice) TextWidth(s string, gc GC) (float64, error) {
	return d.layouter.TextWidth(s, gc.FontSize(), gc.FontFamily, gc.FontFace)
}

func (d *RemoteDevice) CharMetric(r rune, gc GC) (Metric, error) {
	return d.layouter.CharMetric(r, gc.FontSize(), gc.FontFamily, gc.FontFace)
}

func (d *RemoteDevice) SetPattern(g Gradient) (int, error) {
	var idx int
	err := d.guard(func() error {
		var err error
		idx, err = d.client.RegisterGradient(g)
		return err
	})
	return idx, err
}

func (d *RemoteDevice) ReleasePattern(index int) error {
	return d.send(protocol.ReleasePattern{Index: index})
}

func (d *RemoteDevice) BeginTile(height float64) error {
	return d.send(protocol.PrepareForSaveAsTile{Height: height})
}

func (d *RemoteDevice) EndTile(x, y, width, height float64, extend Extend) (int, error) {
	var idx int
	err := d.guard(func() error {
		var err error
		idx, err = d.client.SaveAsTile(protocol.SaveAsTile{X: x, Y: y, Width: width, Height: height, Extend: extend})
		return err
	})
	return idx, err
}

func (d *RemoteDevice) SavePNG(filename string, width, height int) error {
	return d.send(protocol.SaveAsPng{Filename: filename, Width: width, Height: height})
}
