package capture

import (
	"errors"
	"reflect"
	"testing"

	"github.com/opd-ai/go-vellogd/internal/headless"
	"github.com/opd-ai/go-vellogd/internal/protocol"
	"github.com/opd-ai/go-vellogd/internal/scene"
)

type fakeGate struct {
	suspended bool
	changes   int
}

func (g *fakeGate) SetSuspended(v bool) { g.suspended = v; g.changes++ }
func (g *fakeGate) Suspended() bool     { return g.suspended }

func setup(t *testing.T) (*Coordinator, *scene.Drawer, *fakeGate) {
	t.Helper()
	d := scene.NewDrawer(scene.NewCanvas(100, 100), nil, nil)
	g := &fakeGate{}
	return New(d, g, headless.New(nil)), d, g
}

var red = protocol.Color{R: 255, A: 255}

func fillRect(d *scene.Drawer, p0, p1 protocol.Point, b protocol.Brush) {
	d.Rect(protocol.DrawRect{P0: p0, P1: p1, Fill: &protocol.FillParams{Brush: b}})
}

func TestRegisterGradientResolvesExactly(t *testing.T) {
	c, d, _ := setup(t)
	g := protocol.Gradient{
		Kind: protocol.GradientRadial,
		X0:   10, Y0: 10, X1: 20, Y1: 20, R0: 1, R1: 30,
		Stops: []protocol.ColorStop{
			{Offset: 0, Color: red},
			{Offset: 0.4, Color: protocol.White},
			{Offset: 1, Color: protocol.Black},
		},
		Extend: protocol.ExtendReflect,
	}
	idx := c.RegisterGradient(g)
	fillRect(d, protocol.Pt(0, 0), protocol.Pt(50, 50), protocol.PatternRef(idx))

	cmds := d.Frame().Commands
	if len(cmds) != 1 || cmds[0].Paint.Kind != scene.PaintPattern {
		t.Fatalf("commands = %+v, want one pattern fill", cmds)
	}
	if !reflect.DeepEqual(cmds[0].Paint.Pattern.Gradient, g) {
		t.Errorf("gradient = %+v, want %+v", cmds[0].Paint.Pattern.Gradient, g)
	}

	if err := c.Release(idx); err != nil {
		t.Fatal(err)
	}
	if err := c.Release(idx); !errors.Is(err, scene.ErrStalePattern) {
		t.Errorf("second Release = %v, want ErrStalePattern", err)
	}
}

func TestTileCaptureRoundTrip(t *testing.T) {
	c, d, g := setup(t)
	fillRect(d, protocol.Pt(0, 0), protocol.Pt(10, 10), protocol.SolidBrush(protocol.Black))
	before := d.Frame().Commands
	d.MarkPresented()

	if err := c.Prepare(100); err != nil {
		t.Fatalf("Prepare error = %v", err)
	}
	if !g.suspended {
		t.Error("presentation not suspended during capture")
	}
	// Covers the whole tile area [20,40]x[20,30].
	fillRect(d, protocol.Pt(15, 15), protocol.Pt(45, 35), protocol.SolidBrush(red))
	if d.NeedsRedraw() {
		t.Error("capture draw flagged a redraw of the live scene")
	}

	idx, err := c.SaveAsTile(protocol.SaveAsTile{X: 20, Y: 20, Width: 20, Height: 10, Extend: protocol.ExtendRepeat})
	if err != nil {
		t.Fatalf("SaveAsTile error = %v", err)
	}
	if g.suspended {
		t.Error("presentation still suspended after SaveAsTile")
	}
	if c.Active() {
		t.Error("capture still active")
	}
	if !reflect.DeepEqual(d.Frame().Commands, before) {
		t.Error("live scene changed across the capture")
	}
	if d.Patterns().Len() != 1 {
		t.Errorf("patterns = %d, want 1", d.Patterns().Len())
	}

	p, err := d.Patterns().Get(idx)
	if err != nil {
		t.Fatal(err)
	}
	if p.Kind != scene.PatternTile || p.Tile.Extend != protocol.ExtendRepeat {
		t.Fatalf("pattern = %+v", p)
	}
	if b := p.Tile.Image.Bounds(); b.Dx() != 20 || b.Dy() != 10 {
		t.Errorf("tile size = %v, want 20x10", b)
	}
	px := p.Tile.Image.RGBAAt(10, 5)
	if px.R != 255 || px.A != 255 {
		t.Errorf("tile pixel = %v, want opaque red", px)
	}
	if _, tiles, _ := c.Stats(); tiles != 1 {
		t.Errorf("tiles = %d, want 1", tiles)
	}
}

func TestNestedPrepareFails(t *testing.T) {
	c, _, _ := setup(t)
	if err := c.Prepare(0); err != nil {
		t.Fatal(err)
	}
	if err := c.Prepare(0); !errors.Is(err, scene.ErrCaptureActive) {
		t.Errorf("nested Prepare = %v, want ErrCaptureActive", err)
	}
	c.Abort()
	if c.Active() {
		t.Error("Abort left the capture open")
	}
}

func TestSaveAsTileWithoutPrepare(t *testing.T) {
	c, d, g := setup(t)
	g.suspended = true
	fillRect(d, protocol.Pt(0, 0), protocol.Pt(10, 10), protocol.SolidBrush(red))

	if _, err := c.SaveAsTile(protocol.SaveAsTile{Width: 5, Height: 5}); !errors.Is(err, scene.ErrNoCapture) {
		t.Fatalf("SaveAsTile = %v, want ErrNoCapture", err)
	}
	if g.suspended {
		t.Error("presentation not restored after rejected SaveAsTile")
	}
	if d.Len() != 1 || d.Patterns().Len() != 0 {
		t.Errorf("scene len %d, patterns %d; want 1, 0", d.Len(), d.Patterns().Len())
	}
	if _, _, rejected := c.Stats(); rejected != 1 {
		t.Errorf("rejected = %d, want 1", rejected)
	}
}

func TestPrepareKeepsPriorSuspension(t *testing.T) {
	c, _, g := setup(t)
	g.suspended = true
	if err := c.Prepare(50); err != nil {
		t.Fatal(err)
	}
	if _, err := c.SaveAsTile(protocol.SaveAsTile{Width: 4, Height: 4}); err != nil {
		t.Fatal(err)
	}
	if !g.suspended {
		t.Error("capture cleared a suspension the client had set")
	}
}

func TestInvalidTileSize(t *testing.T) {
	c, _, g := setup(t)
	if err := c.Prepare(50); err != nil {
		t.Fatal(err)
	}
	if _, err := c.SaveAsTile(protocol.SaveAsTile{Width: 0, Height: 4}); !errors.Is(err, ErrInvalidTile) {
		t.Errorf("SaveAsTile = %v, want ErrInvalidTile", err)
	}
	if c.Active() || g.suspended {
		t.Error("failed tile left capture state behind")
	}
}
