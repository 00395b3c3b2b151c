package window

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/opd-ai/go-vellogd/internal/engine"
	"github.com/opd-ai/go-vellogd/internal/scene"
)

// ErrNotActive is returned by operations that need an Active window.
var ErrNotActive = errors.New("window not active")

// State is the lifecycle state.
type State int

const (
	Suspended State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "suspended"
}

// Logger is the logging interface used by the manager. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// PresentHook observes every successfully presented frame. The image must
// not be modified.
type PresentHook func(frame *image.RGBA)

// Config wires a Manager.
type Config struct {
	Toolkit Toolkit
	Engine  *engine.Context
	Drawer  *scene.Drawer
	Sink    EventSink
	Logger  Logger
	Options Options
}

// active is the state owned while a window is shown. The surface belongs
// to the window and never outlives it.
type active struct {
	win      Window
	surface  *engine.Surface
	renderer *engine.Renderer
}

// Manager owns the window, its surface and the renderer binding. All
// transitions happen on the event loop goroutine; the mutex only makes
// status queries from other goroutines safe.
type Manager struct {
	toolkit Toolkit
	engine  *engine.Context
	drawer  *scene.Drawer
	sink    EventSink
	logger  Logger

	mu       sync.Mutex
	opts     Options
	state    State
	cached   Window
	act      *active
	degraded error
	hooks    []PresentHook
}

// NewManager returns a manager in the Suspended state with no window.
func NewManager(cfg Config) *Manager {
	if cfg.Engine == nil {
		cfg.Engine = engine.NewContext()
	}
	if cfg.Drawer == nil {
		w, h := uint32(max(cfg.Options.Width, 1)), uint32(max(cfg.Options.Height, 1))
		cfg.Drawer = scene.NewDrawer(scene.NewCanvas(w, h), nil, nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}
	return &Manager{
		toolkit: cfg.Toolkit,
		engine:  cfg.Engine,
		drawer:  cfg.Drawer,
		sink:    cfg.Sink,
		logger:  cfg.Logger,
		opts:    cfg.Options,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Drawer returns the scene drawer.
func (m *Manager) Drawer() *scene.Drawer {
	return m.drawer
}

// Toolkit returns the windowing toolkit.
func (m *Manager) Toolkit() Toolkit {
	return m.toolkit
}

// Engine returns the render context.
func (m *Manager) Engine() *engine.Context {
	return m.engine
}

// OnPresent registers a hook called after every successful present.
func (m *Manager) OnPresent(h PresentHook) {
	m.mu.Lock()
	m.hooks = append(m.hooks, h)
	m.mu.Unlock()
}

// SetTitle changes the title of the current and future windows.
func (m *Manager) SetTitle(title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts.Title = title
	if m.act != nil {
		m.act.win.SetTitle(title)
	} else if m.cached != nil {
		m.cached.SetTitle(title)
	}
}

// Degraded returns the error that forced headless-only operation, if any.
func (m *Manager) Degraded() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded
}

// NewWindow resets the scene and makes the window Active. An Active
// window is kept as is.
func (m *Manager) NewWindow() error {
	m.drawer.Reset()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Active {
		return nil
	}
	return m.activate()
}

// Resume makes a suspended window Active again, reusing the cached
// window if there is one. The scene is kept and presented again.
func (m *Manager) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Active {
		return nil
	}
	return m.activate()
}

// activate creates the window and surface. Callers hold m.mu.
func (m *Manager) activate() error {
	if m.toolkit == nil {
		return m.degrade(errors.New("no windowing toolkit"))
	}

	win := m.cached
	m.cached = nil
	if win == nil {
		w, h := m.drawer.Canvas().Size()
		opts := m.opts
		opts.Width, opts.Height = int(w), int(h)
		created, err := m.toolkit.CreateWindow(opts, m.sink)
		if err != nil {
			return m.degrade(fmt.Errorf("create window: %w", err))
		}
		win = created
	}

	width, height := win.InnerSize()
	surface, err := m.engine.CreateSurface(width, height)
	if err != nil {
		_ = win.Close()
		return m.degrade(fmt.Errorf("create surface: %w", err))
	}
	renderer, err := m.engine.Renderer(surface.Device())
	if err != nil {
		_ = win.Close()
		return m.degrade(fmt.Errorf("create renderer: %w", err))
	}

	m.drawer.Canvas().SetSize(uint32(width), uint32(height))
	m.act = &active{win: win, surface: surface, renderer: renderer}
	m.state = Active
	m.degraded = nil
	m.drawer.Invalidate()
	m.logger.Info("window active", "width", width, "height", height)
	return nil
}

// degrade records err and leaves the manager Suspended. Callers hold m.mu.
func (m *Manager) degrade(err error) error {
	m.degraded = err
	m.state = Suspended
	m.act = nil
	m.logger.Error("window unavailable, continuing headless", "error", err)
	return err
}

// Suspend drops the surface but keeps the window for a later Resume.
func (m *Manager) Suspend() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.act == nil {
		return
	}
	m.cached = m.act.win
	m.act = nil
	m.state = Suspended
	m.logger.Debug("window suspended")
}

// Close drops the window and surface unconditionally.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	var win Window
	switch {
	case m.act != nil:
		win = m.act.win
	case m.cached != nil:
		win = m.cached
	}
	m.act = nil
	m.cached = nil
	m.state = Suspended
	if win != nil {
		if err := win.Close(); err != nil {
			m.logger.Warn("close window", "error", err)
		}
		m.logger.Info("window closed")
	}
}

// Resize records a new inner size, recomputes the coordinate transform and
// resizes the surface in place. It is a no-op unless Active.
func (m *Manager) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.act == nil {
		return nil
	}
	m.drawer.Canvas().SetSize(uint32(width), uint32(height))
	if err := m.act.surface.Resize(width, height); err != nil {
		return fmt.Errorf("resize surface: %w", err)
	}
	m.drawer.Invalidate()
	return nil
}

// HandleEvent applies a toolkit event.
func (m *Manager) HandleEvent(e Event) error {
	switch e.Kind {
	case EventResized:
		return m.Resize(e.Width, e.Height)
	case EventCloseRequested:
		m.Close()
	case EventSuspended:
		m.Suspend()
	case EventResumed:
		return m.Resume()
	}
	return nil
}

// Sizes returns the window's inner size. Suspended windows report zero.
// After a degradation the recorded error is returned once.
func (m *Manager) Sizes() (width, height uint32, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.act == nil {
		if m.degraded != nil {
			err = m.degraded
			m.degraded = nil
		}
		return 0, 0, err
	}
	w, h := m.act.win.InnerSize()
	return uint32(w), uint32(h), nil
}

// Redraw presents the scene when it changed since the last present.
// It reports whether a frame was presented.
func (m *Manager) Redraw() (bool, error) {
	if !m.drawer.NeedsRedraw() || m.State() != Active {
		return false, nil
	}
	if err := m.Present(); err != nil {
		return false, err
	}
	return true, nil
}

// Present renders the live scene into the surface and shows it. The redraw
// flag is cleared only when both steps succeed.
func (m *Manager) Present() error {
	m.mu.Lock()
	act := m.act
	hooks := append([]PresentHook(nil), m.hooks...)
	m.mu.Unlock()
	if act == nil {
		return ErrNotActive
	}

	frame := m.drawer.Frame()
	if err := act.renderer.RenderToSurface(frame, act.surface); err != nil {
		return err
	}
	img := act.surface.Frame()
	if err := act.win.Present(img); err != nil {
		return fmt.Errorf("present: %w", err)
	}
	m.drawer.MarkPresented()
	for _, h := range hooks {
		h(img)
	}
	return nil
}

// Renderer returns the renderer bound to the active surface, if any.
func (m *Manager) Renderer() *engine.Renderer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.act == nil {
		return nil
	}
	return m.act.renderer
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
