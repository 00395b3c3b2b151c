// Package scene records host drawing requests as device-space commands.
//
// Hosts address a bottom-left-origin logical canvas. Every command carries
// the transform that places it on the top-left-origin device, so glyph
// outlines and raster pixels, which are already device oriented, are only
// positioned and never mirrored.
package scene

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/opd-ai/go-vellogd/internal/protocol"
	"github.com/opd-ai/go-vellogd/internal/text"
)

var (
	// ErrCaptureActive is returned when a capture starts while another one
	// is still open.
	ErrCaptureActive = errors.New("pattern capture already in progress")
	// ErrNoCapture is returned when a capture is finished that was never
	// started, or with a token that does not match.
	ErrNoCapture = errors.New("no matching pattern capture in progress")
)

// CaptureToken identifies an open capture.
type CaptureToken uint64

type capture struct {
	token  CaptureToken
	scene  *Scene
	height float64
}

// Frame is a detached snapshot ready for rendering.
type Frame struct {
	Commands      []Command
	Base          protocol.Color
	Width, Height uint32
}

// Drawer owns the live scene and turns requests into commands. The scene
// lock is held for one primitive at a time.
type Drawer struct {
	canvas   *Canvas
	patterns *Registry
	text     *text.Layouter

	mu      sync.Mutex
	live    *Scene
	capture *capture
	lastTok CaptureToken
	base    protocol.Color

	needsRedraw atomic.Bool
}

// NewDrawer returns a drawer recording into a fresh scene.
func NewDrawer(canvas *Canvas, patterns *Registry, layouter *text.Layouter) *Drawer {
	if patterns == nil {
		patterns = NewRegistry()
	}
	if layouter == nil {
		layouter = text.NewLayouter()
	}
	return &Drawer{
		canvas:   canvas,
		patterns: patterns,
		text:     layouter,
		live:     NewScene(),
		base:     protocol.WhiteSmoke,
	}
}

// Canvas returns the canvas the drawer records against.
func (d *Drawer) Canvas() *Canvas { return d.canvas }

// Patterns returns the pattern registry.
func (d *Drawer) Patterns() *Registry { return d.patterns }

// Layouter returns the text layouter.
func (d *Drawer) Layouter() *text.Layouter { return d.text }

// NeedsRedraw reports whether the live scene changed since the last
// successful present.
func (d *Drawer) NeedsRedraw() bool { return d.needsRedraw.Load() }

// MarkPresented clears the redraw flag after a successful present.
func (d *Drawer) MarkPresented() { d.needsRedraw.Store(false) }

// Invalidate forces the next redraw tick to repaint.
func (d *Drawer) Invalidate() { d.needsRedraw.Store(true) }

// SetBaseColor sets the colour painted under the scene.
func (d *Drawer) SetBaseColor(c protocol.Color) {
	d.mu.Lock()
	d.base = c
	d.mu.Unlock()
	d.needsRedraw.Store(true)
}

// BaseColor returns the colour painted under the scene.
func (d *Drawer) BaseColor() protocol.Color {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.base
}

// Reset clears the live scene.
func (d *Drawer) Reset() {
	d.mu.Lock()
	d.live.Reset()
	d.mu.Unlock()
	d.needsRedraw.Store(true)
}

// Len returns the number of commands in the live scene.
func (d *Drawer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live.Len()
}

// ClipDepth returns the number of open clip layers in the scene currently
// receiving draws.
func (d *Drawer) ClipDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.target().Depth()
}

// Frame snapshots the live scene with every clip layer closed.
func (d *Drawer) Frame() Frame {
	w, h := d.canvas.Size()
	d.mu.Lock()
	defer d.mu.Unlock()
	return Frame{Commands: d.live.Commands(), Base: d.base, Width: w, Height: h}
}

// Snapshot returns a detached clone of the live scene.
func (d *Drawer) Snapshot() *Scene {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live.Clone()
}

// BeginCapture diverts subsequent draws into an empty capture scene whose
// logical coordinates refer to a canvas of the given height.
func (d *Drawer) BeginCapture(height float64) (CaptureToken, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.capture != nil {
		return 0, ErrCaptureActive
	}
	d.lastTok++
	d.capture = &capture{token: d.lastTok, scene: NewScene(), height: height}
	return d.lastTok, nil
}

// EndCapture closes the capture identified by tok and returns the captured
// scene and its canvas height. Draws go to the live scene again.
func (d *Drawer) EndCapture(tok CaptureToken) (*Scene, float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.capture == nil || d.capture.token != tok {
		return nil, 0, ErrNoCapture
	}
	c := d.capture
	d.capture = nil
	return c.scene, c.height, nil
}

// AbortCapture drops any open capture.
func (d *Drawer) AbortCapture() {
	d.mu.Lock()
	d.capture = nil
	d.mu.Unlock()
}

// Capturing reports whether a capture is open.
func (d *Drawer) Capturing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.capture != nil
}

// target returns the scene receiving draws. Callers hold d.mu.
func (d *Drawer) target() *Scene {
	if d.capture != nil {
		return d.capture.scene
	}
	return d.live
}

// space returns the logical-to-device transform and canvas size draws are
// recorded against.
func (d *Drawer) space() (Affine, float64, float64) {
	w, h := d.canvas.Size()
	d.mu.Lock()
	c := d.capture
	d.mu.Unlock()
	if c != nil {
		return FlipY(c.height), float64(w), c.height
	}
	return d.canvas.Transform(), float64(w), float64(h)
}

// record appends cmds atomically and flags a redraw when they land in the
// live scene.
func (d *Drawer) record(cmds ...Command) {
	if len(cmds) == 0 {
		return
	}
	d.mu.Lock()
	t := d.target()
	for _, c := range cmds {
		t.append(c)
	}
	live := t == d.live
	d.mu.Unlock()
	if live {
		d.needsRedraw.Store(true)
	}
}

// fillCommand resolves fill parameters. A nil result means nothing to fill,
// including a pattern index that is no longer registered.
func (d *Drawer) fillCommand(path protocol.Path, tr Affine, fp *protocol.FillParams) *Command {
	if fp == nil || path.IsEmpty() {
		return nil
	}
	paint := Paint{Kind: PaintSolid, Color: fp.Brush.Color, Transform: tr}
	switch fp.Brush.Kind {
	case protocol.BrushPattern:
		p, err := d.patterns.Get(fp.Brush.Pattern)
		if err != nil {
			return nil
		}
		paint.Kind = PaintPattern
		paint.Pattern = p
	default:
		if fp.Brush.Color.IsTransparent() {
			return nil
		}
	}
	return &Command{Op: OpFill, Path: path, Transform: tr, Paint: paint, Rule: fp.Rule}
}

func strokeCommand(path protocol.Path, tr Affine, sp *protocol.StrokeParams) *Command {
	if sp == nil || path.IsEmpty() || sp.Color.IsTransparent() || sp.Width < 0 {
		return nil
	}
	return &Command{
		Op:        OpStroke,
		Path:      path,
		Transform: tr,
		Paint:     Paint{Kind: PaintSolid, Color: sp.Color, Transform: tr},
		Stroke:    *sp,
	}
}

func (d *Drawer) shape(path protocol.Path, fp *protocol.FillParams, sp *protocol.StrokeParams) {
	tr, _, _ := d.space()
	var cmds []Command
	if c := d.fillCommand(path, tr, fp); c != nil {
		cmds = append(cmds, *c)
	}
	if c := strokeCommand(path, tr, sp); c != nil {
		cmds = append(cmds, *c)
	}
	d.record(cmds...)
}

// Circle records a filled and/or stroked circle.
func (d *Drawer) Circle(r protocol.DrawCircle) {
	if r.Radius <= 0 {
		return
	}
	d.shape(protocol.CirclePath(r.Center, r.Radius), r.Fill, r.Stroke)
}

// Line records a stroked segment.
func (d *Drawer) Line(r protocol.DrawLine) {
	var p protocol.Path
	p.MoveTo(r.P0).LineTo(r.P1)
	d.shape(p, nil, &r.Stroke)
}

// Polyline records an open stroked path.
func (d *Drawer) Polyline(r protocol.DrawPolyline) {
	d.shape(r.Path, nil, &r.Stroke)
}

// Polygon records a path whose closed subpaths may express holes.
func (d *Drawer) Polygon(r protocol.DrawPolygon) {
	d.shape(r.Path, r.Fill, r.Stroke)
}

// Rect records an axis-aligned rectangle.
func (d *Drawer) Rect(r protocol.DrawRect) {
	d.shape(protocol.RectPath(r.P0, r.P1), r.Fill, r.Stroke)
}

// Clip infers push or pop from an absolute rectangle. A rectangle covering
// the whole canvas pops one layer; anything smaller replaces the current
// partial clip.
func (d *Drawer) Clip(r protocol.Clip) {
	tr, w, h := d.space()
	rect := protocol.NormalizeRect(r.P0, r.P1)

	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.target()
	if rect.Covers(w, h) {
		if t.Depth() > 0 {
			t.append(Command{Op: OpPopClip})
		}
		return
	}
	if t.Depth() > 0 {
		t.append(Command{Op: OpPopClip})
	}
	t.append(Command{Op: OpPushClip, Clip: protocol.NormalizeRect(tr.Apply(rect.Min), tr.Apply(rect.Max))})
}

// Raster records an image whose bottom-left corner sits at r.Pos, scaled
// by r.Scale per pixel and rotated counter-clockwise by r.Angle degrees
// about that corner.
func (d *Drawer) Raster(r protocol.DrawRaster) {
	img := r.Image
	if img.Width <= 0 || img.Height <= 0 || len(img.Pix) < img.Width*img.Height*4 {
		return
	}
	_, _, h := d.space()

	out := &Image{
		Width:       img.Width,
		Height:      img.Height,
		Pix:         img.Pix,
		Stride:      img.Width * 4,
		Interpolate: r.Interpolate,
	}
	if r.ExtendEdge {
		out.Pix, out.Stride = padEdges(img)
		out.Offset = 0.5
	}

	tr := Scale(r.Scale.X, r.Scale.Y).
		Then(Translate(0, -float64(img.Height)*r.Scale.Y)).
		Then(Rotate(-r.Angle * math.Pi / 180)).
		Then(Translate(r.Pos.X, h-r.Pos.Y))

	d.record(Command{Op: OpImage, Transform: tr, Image: out})
}

// padEdges copies img with one extra column and row duplicating the last
// ones.
func padEdges(img protocol.Raster) ([]byte, int) {
	w, h := img.Width, img.Height
	stride := (w + 1) * 4
	pix := make([]byte, stride*(h+1))
	for y := 0; y <= h; y++ {
		sy := min(y, h-1)
		row := pix[y*stride : (y+1)*stride]
		copy(row, img.Pix[sy*w*4:(sy+1)*w*4])
		copy(row[w*4:], img.Pix[(sy*w+w-1)*4:(sy*w+w)*4])
	}
	return pix, stride
}

// Text lays out r.Text and records its glyph outlines. The layout is
// justified by r.Hadj, rotated by r.Angle radians and anchored at r.Pos.
func (d *Drawer) Text(r protocol.DrawText) error {
	if r.Text == "" || r.Color.IsTransparent() {
		return nil
	}
	lay, err := d.text.Layout(r.Text, r.Size, r.LineHeight, r.Family, r.Face)
	if err != nil {
		return fmt.Errorf("layout text: %w", err)
	}
	run, err := d.text.Run(lay, -lay.Ascent*0.5)
	if err != nil {
		return fmt.Errorf("glyph outlines: %w", err)
	}
	if run.IsEmpty() {
		return nil
	}

	_, _, h := d.space()
	tr := Translate(-lay.Width*r.Hadj, 0).
		Then(Rotate(-r.Angle)).
		Then(Translate(r.Pos.X, h-r.Pos.Y))

	d.record(Command{
		Op:        OpFill,
		Path:      run,
		Transform: tr,
		Paint:     Paint{Kind: PaintSolid, Color: r.Color, Transform: tr},
		Rule:      protocol.NonZero,
	})
	return nil
}

// Glyphs records pre-positioned glyphs. Positions are logical; each glyph
// is rotated by r.Angle radians about its own position.
func (d *Drawer) Glyphs(r protocol.DrawGlyphs) error {
	if len(r.IDs) == 0 || r.Color.IsTransparent() {
		return nil
	}
	_, _, h := d.space()
	ys := make([]float64, len(r.Y))
	for i, y := range r.Y {
		ys[i] = h - y
	}
	run, err := d.text.Glyphs(text.Resolve(r.Family, r.Face), r.IDs, r.X, ys, r.Size, r.Angle)
	if err != nil {
		return fmt.Errorf("glyph outlines: %w", err)
	}
	if run.IsEmpty() {
		return nil
	}
	d.record(Command{
		Op:        OpFill,
		Path:      run,
		Transform: Identity,
		Paint:     Paint{Kind: PaintSolid, Color: r.Color, Transform: Identity},
		Rule:      protocol.NonZero,
	})
	return nil
}

// Apply dispatches a draw request. It reports whether req was a draw.
func (d *Drawer) Apply(req protocol.Request) (bool, error) {
	switch r := req.(type) {
	case protocol.Clip:
		d.Clip(r)
	case protocol.DrawCircle:
		d.Circle(r)
	case protocol.DrawLine:
		d.Line(r)
	case protocol.DrawPolyline:
		d.Polyline(r)
	case protocol.DrawPolygon:
		d.Polygon(r)
	case protocol.DrawRect:
		d.Rect(r)
	case protocol.DrawRaster:
		d.Raster(r)
	case protocol.DrawText:
		return true, d.Text(r)
	case protocol.DrawGlyphs:
		return true, d.Glyphs(r)
	default:
		return false, nil
	}
	return true, nil
}
