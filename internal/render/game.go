//go:build !noebiten

// Package render presents frames in a desktop window driven by Ebiten. It
// implements window.Toolkit and window.Runner: Ebiten owns the main
// goroutine, so the server's event loop is pumped from Update.
package render

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/opd-ai/go-vellogd/internal/window"
)

// X11ClassName is the WM_CLASS given to the window. Window hints use it to
// find the window.
const X11ClassName = "vellogd"

// ErrNotRunning is returned by Window operations after the game loop ended.
var ErrNotRunning = errors.New("render loop not running")

// display is the window-system surface the game drives.
type display interface {
	SetSize(width, height int)
	SetTitle(title string)
	Minimize()
	Restore()
	Minimized() bool
	BeingClosed() bool
	ScaleFactor() float64
}

type ebitenDisplay struct{}

func (ebitenDisplay) SetSize(w, h int)      { ebiten.SetWindowSize(w, h) }
func (ebitenDisplay) SetTitle(title string) { ebiten.SetWindowTitle(title) }
func (ebitenDisplay) Minimize()             { ebiten.MinimizeWindow() }
func (ebitenDisplay) Restore()              { ebiten.RestoreWindow() }
func (ebitenDisplay) Minimized() bool       { return ebiten.IsWindowMinimized() }
func (ebitenDisplay) BeingClosed() bool     { return ebiten.IsWindowBeingClosed() }

func (ebitenDisplay) ScaleFactor() float64 {
	if m := ebiten.Monitor(); m != nil {
		return m.DeviceScaleFactor()
	}
	return 1
}

// Game is the Ebiten toolkit. Ebiten has one window per process, so the
// toolkit hands out a single Window that is hidden on Close and shown again
// by the next CreateWindow.
type Game struct {
	disp   display
	logger window.Logger

	mu      sync.Mutex
	ctx     context.Context
	pump    func() error
	running bool
	win     *Window
	initial window.Options

	hintsApplied bool
}

// NewGame returns a toolkit backed by Ebiten.
func NewGame(logger window.Logger) *Game {
	return newGame(ebitenDisplay{}, logger)
}

func newGame(d display, logger window.Logger) *Game {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Game{disp: d, logger: logger}
}

// Configure sets the options Run applies before any window was created.
// Ebiten fixes transparency and taskbar visibility when its loop starts.
func (g *Game) Configure(opts window.Options) {
	g.mu.Lock()
	g.initial = opts
	g.mu.Unlock()
}

// runOptions returns the options of the window, or the configured ones
// before it exists. Must be called with mu held.
func (g *Game) runOptions() window.Options {
	if g.win != nil {
		return g.win.Options()
	}
	return g.initial
}

// CreateWindow implements window.Toolkit.
func (g *Game) CreateWindow(opts window.Options, sink window.EventSink) (window.Window, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.win == nil {
		g.win = &Window{game: g}
	}
	w := g.win
	w.mu.Lock()
	w.opts = opts
	w.sink = sink
	w.closed = false
	w.frame = nil
	if w.width == 0 || w.height == 0 {
		scale := g.disp.ScaleFactor()
		w.width = int(float64(opts.Width) * scale)
		w.height = int(float64(opts.Height) * scale)
	}
	w.mu.Unlock()

	g.disp.SetTitle(opts.Title)
	g.disp.SetSize(opts.Width, opts.Height)
	if g.running {
		g.disp.Restore()
	}
	g.hintsApplied = false
	return w, nil
}

// Run implements window.Runner. It blocks until ctx is done or pump fails.
func (g *Game) Run(ctx context.Context, pump func() error) error {
	g.mu.Lock()
	g.ctx = ctx
	g.pump = pump
	g.running = true
	opts := g.runOptions()
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.running = false
		g.mu.Unlock()
		CloseWindowHints()
	}()

	ebiten.SetWindowClosingHandled(true)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowFloating(opts.AlwaysOnTop)
	if opts.Title != "" {
		ebiten.SetWindowTitle(opts.Title)
	}
	if opts.Width > 0 && opts.Height > 0 {
		ebiten.SetWindowSize(opts.Width, opts.Height)
	}

	if opts.Transparent {
		if ok, err := Compositing(); err == nil && !ok {
			g.logger.Warn("no compositing manager running, transparent window drawn opaque")
		}
	}

	err := ebiten.RunGameWithOptions(g, &ebiten.RunGameOptions{
		ScreenTransparent: opts.Transparent,
		SkipTaskbar:       opts.SkipTaskbar,
		X11ClassName:      X11ClassName,
		X11InstanceName:   X11ClassName,
	})
	if err != nil && !errors.Is(err, ebiten.Termination) {
		return err
	}
	return ctx.Err()
}

// Update implements ebiten.Game. It translates window-system state into
// toolkit events and pumps the event loop once.
func (g *Game) Update() error {
	g.mu.Lock()
	ctx, pump, w := g.ctx, g.pump, g.win
	g.mu.Unlock()

	if ctx != nil {
		select {
		case <-ctx.Done():
			return ebiten.Termination
		default:
		}
	}

	if w != nil {
		g.pollWindow(w)
	} else if !g.disp.Minimized() {
		// No window was requested yet.
		g.disp.Minimize()
	}

	if pump != nil {
		if err := pump(); err != nil {
			return err
		}
	}
	return nil
}

func (g *Game) pollWindow(w *Window) {
	w.mu.Lock()
	closed, minimized, sink, opts := w.closed, w.minimized, w.sink, w.opts
	w.mu.Unlock()

	if closed {
		if !g.disp.Minimized() {
			g.disp.Minimize()
		}
		return
	}

	if g.disp.BeingClosed() {
		w.emit(sink, window.Event{Kind: window.EventCloseRequested})
		return
	}

	now := g.disp.Minimized()
	if now != minimized {
		w.mu.Lock()
		w.minimized = now
		w.mu.Unlock()
		kind := window.EventResumed
		if now {
			kind = window.EventSuspended
		}
		w.emit(sink, window.Event{Kind: kind})
	}

	g.mu.Lock()
	apply := !g.hintsApplied
	g.hintsApplied = true
	g.mu.Unlock()
	if apply {
		hints := Hints{SkipTaskbar: opts.SkipTaskbar, SkipPager: opts.SkipPager, Above: opts.AlwaysOnTop}
		if err := ApplyWindowHints(hints); err != nil {
			g.logger.Debug("window hints not applied", "error", err)
		}
	}
}

// Draw implements ebiten.Game.
func (g *Game) Draw(screen *ebiten.Image) {
	g.mu.Lock()
	w := g.win
	g.mu.Unlock()
	if w != nil {
		w.draw(screen)
	}
}

// Layout implements ebiten.Game. The screen uses device pixels; a change
// of the outside size is reported as a resize.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	scale := g.disp.ScaleFactor()
	width := max(int(float64(outsideWidth)*scale), 1)
	height := max(int(float64(outsideHeight)*scale), 1)

	g.mu.Lock()
	w := g.win
	g.mu.Unlock()
	if w != nil {
		w.layout(width, height)
	}
	return width, height
}

// IsRunning reports whether the game loop is running.
func (g *Game) IsRunning() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Window is the single Ebiten window.
type Window struct {
	game *Game

	mu        sync.Mutex
	opts      window.Options
	sink      window.EventSink
	width     int
	height    int
	closed    bool
	minimized bool

	frame   *image.RGBA
	dirty   bool
	texture *ebiten.Image
}

// Options returns the options the window was last created with.
func (w *Window) Options() window.Options {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.opts
}

// InnerSize implements window.Window.
func (w *Window) InnerSize() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

// SetTitle implements window.Window.
func (w *Window) SetTitle(title string) {
	w.mu.Lock()
	w.opts.Title = title
	w.mu.Unlock()
	w.game.disp.SetTitle(title)
}

// Present implements window.Window. The frame is uploaded on the next Draw.
func (w *Window) Present(frame *image.RGBA) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return window.ErrWindowClosed
	}
	w.frame = frame
	w.dirty = true
	return nil
}

// Close implements window.Window. The window is hidden until the next
// CreateWindow.
func (w *Window) Close() error {
	w.mu.Lock()
	w.closed = true
	w.frame = nil
	w.sink = nil
	w.mu.Unlock()
	w.game.disp.Minimize()
	return nil
}

func (w *Window) emit(sink window.EventSink, e window.Event) {
	if sink != nil {
		sink(e)
	}
}

func (w *Window) layout(width, height int) {
	w.mu.Lock()
	changed := !w.closed && (width != w.width || height != w.height)
	if changed {
		w.width, w.height = width, height
	}
	sink := w.sink
	w.mu.Unlock()
	if changed {
		w.emit(sink, window.Event{Kind: window.EventResized, Width: width, Height: height})
	}
}

func (w *Window) draw(screen *ebiten.Image) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.frame == nil {
		return
	}
	b := w.frame.Bounds()
	if w.texture == nil || w.texture.Bounds().Dx() != b.Dx() || w.texture.Bounds().Dy() != b.Dy() {
		if w.texture != nil {
			w.texture.Deallocate()
		}
		w.texture = ebiten.NewImage(b.Dx(), b.Dy())
		w.dirty = true
	}
	if w.dirty {
		w.texture.WritePixels(packed(w.frame))
		w.dirty = false
	}
	screen.DrawImage(w.texture, nil)
}

// packed returns the frame's pixels without row padding.
func packed(img *image.RGBA) []byte {
	b := img.Bounds()
	row := b.Dx() * 4
	if img.Stride == row && len(img.Pix) == row*b.Dy() {
		return img.Pix
	}
	out := make([]byte, 0, row*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		out = append(out, img.Pix[off:off+row]...)
	}
	return out
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

var (
	_ window.Toolkit = (*Game)(nil)
	_ window.Runner  = (*Game)(nil)
	_ window.Window  = (*Window)(nil)
	_ ebiten.Game    = (*Game)(nil)
)
