// Package capture coordinates pattern registration: gradients are stored
// directly, tiles are captured in two phases around a diverted scene.
package capture

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"sync/atomic"

	"github.com/opd-ai/go-vellogd/internal/protocol"
	"github.com/opd-ai/go-vellogd/internal/scene"
)

// ErrInvalidTile is returned for a tile with a non-positive size.
var ErrInvalidTile = errors.New("invalid tile size")

// Presentation gates periodic redraws. The refresh scheduler satisfies it.
type Presentation interface {
	SetSuspended(bool)
	Suspended() bool
}

// Rasterizer renders commands off screen.
type Rasterizer interface {
	Rasterize(cmds []scene.Command, base protocol.Color, width, height int, extra scene.Affine) (*image.RGBA, error)
}

// Coordinator runs the capture protocol against a drawer.
type Coordinator struct {
	drawer *scene.Drawer
	gate   Presentation
	raster Rasterizer

	mu    sync.Mutex
	token scene.CaptureToken
	open  bool
	// restore is the gate state to return to when the capture ends.
	restore bool

	tiles     atomic.Uint64
	gradients atomic.Uint64
	rejected  atomic.Uint64
}

// New returns a coordinator.
func New(drawer *scene.Drawer, gate Presentation, raster Rasterizer) *Coordinator {
	return &Coordinator{drawer: drawer, gate: gate, raster: raster}
}

// RegisterGradient stores g and returns its index.
func (c *Coordinator) RegisterGradient(g protocol.Gradient) int {
	c.gradients.Add(1)
	return c.drawer.Patterns().Register(scene.Pattern{Kind: scene.PatternGradient, Gradient: g})
}

// Release drops a pattern.
func (c *Coordinator) Release(index int) error {
	return c.drawer.Patterns().Release(index)
}

// Prepare suspends presentation and diverts draws into an empty capture
// scene. height is the canvas height the captured coordinates refer to; a
// non-positive height selects the current canvas height.
func (c *Coordinator) Prepare(height float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open {
		return scene.ErrCaptureActive
	}
	if height <= 0 {
		_, h := c.drawer.Canvas().Size()
		height = float64(h)
	}

	restore := c.gate.Suspended()
	c.gate.SetSuspended(true)
	tok, err := c.drawer.BeginCapture(height)
	if err != nil {
		c.gate.SetSuspended(restore)
		return err
	}
	c.token, c.open, c.restore = tok, true, restore
	return nil
}

// Active reports whether a capture is open.
func (c *Coordinator) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// SaveAsTile closes the capture, rasterizes it into a tile and registers
// the tile. Without a matching Prepare it fails with scene.ErrNoCapture
// after re-enabling presentation; the live scene is untouched either way.
func (c *Coordinator) SaveAsTile(req protocol.SaveAsTile) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		c.gate.SetSuspended(false)
		c.rejected.Add(1)
		return 0, fmt.Errorf("save as tile: %w", scene.ErrNoCapture)
	}
	captured, height, err := c.drawer.EndCapture(c.token)
	c.gate.SetSuspended(c.restore)
	c.open = false
	if err != nil {
		c.rejected.Add(1)
		return 0, fmt.Errorf("save as tile: %w", err)
	}

	img, err := c.rasterize(captured, height, req)
	if err != nil {
		return 0, fmt.Errorf("save as tile: %w", err)
	}
	c.tiles.Add(1)
	return c.drawer.Patterns().Register(scene.Pattern{
		Kind: scene.PatternTile,
		Tile: &scene.Tile{
			Image: img,
			Bounds: protocol.Rect{
				Min: protocol.Pt(req.X, req.Y),
				Max: protocol.Pt(req.X+req.Width, req.Y+req.Height),
			},
			Extend: req.Extend,
		},
	}), nil
}

// rasterize renders the tile rectangle of the captured scene at one pixel
// per logical unit.
func (c *Coordinator) rasterize(s *scene.Scene, height float64, req protocol.SaveAsTile) (*image.RGBA, error) {
	if !(req.Width > 0) || !(req.Height > 0) {
		return nil, fmt.Errorf("%gx%g: %w", req.Width, req.Height, ErrInvalidTile)
	}
	pw := max(1, int(math.Ceil(req.Width)))
	ph := max(1, int(math.Ceil(req.Height)))

	// Device-space top of the tile in the capture canvas.
	top := height - req.Y - req.Height
	extra := scene.Translate(-req.X, -top).
		Then(scene.Scale(float64(pw)/req.Width, float64(ph)/req.Height))
	return c.raster.Rasterize(s.Commands(), protocol.Transparent, pw, ph, extra)
}

// Abort drops an open capture and restores presentation.
func (c *Coordinator) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return
	}
	c.drawer.AbortCapture()
	c.gate.SetSuspended(c.restore)
	c.open = false
}

// Stats returns counters for registered gradients, tiles and rejected
// tile requests.
func (c *Coordinator) Stats() (gradients, tiles, rejected uint64) {
	return c.gradients.Load(), c.tiles.Load(), c.rejected.Load()
}
