package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/opd-ai/go-vellogd/internal/protocol"
	"github.com/opd-ai/go-vellogd/internal/window"
)

// Logger is the logging interface used by the server. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Observer receives operational measurements. Implementations must be
// safe for concurrent use and must not block.
type Observer interface {
	RequestHandled(kind protocol.Kind, elapsed time.Duration)
	FramePresented(elapsed time.Duration)
	PatternRegistered()
	CaptureCompleted()
	Failure(err error)
}

type nopObserver struct{}

func (nopObserver) RequestHandled(protocol.Kind, time.Duration) {}
func (nopObserver) FramePresented(time.Duration)                {}
func (nopObserver) PatternRegistered()                          {}
func (nopObserver) CaptureCompleted()                           {}
func (nopObserver) Failure(error)                               {}

// Responder sends RPC replies back to the host.
type Responder interface {
	Respond(protocol.Response) error
}

// App applies loop messages to the runtime. It runs on the loop goroutine
// only.
type App struct {
	rt       *Runtime
	reply    Responder
	logger   Logger
	observer Observer
}

// NewApp returns an application bound to rt. reply may be nil when no host
// is connected; RPCs are then answered nowhere.
func NewApp(rt *Runtime, reply Responder, logger Logger, observer Observer) *App {
	if logger == nil {
		logger = nopLogger{}
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &App{rt: rt, reply: reply, logger: logger, observer: observer}
}

// HandleEvent applies a toolkit event.
func (a *App) HandleEvent(e window.Event) error {
	a.logger.Debug("window event", "kind", e.Kind, "width", e.Width, "height", e.Height)
	if e.Kind == window.EventCloseRequested {
		a.rt.Capture.Abort()
	}
	if err := a.rt.Window.HandleEvent(e); err != nil {
		a.fail(fmt.Errorf("window event %s: %w", e.Kind, err))
		return err
	}
	return nil
}

// HandleRequest applies one protocol request.
func (a *App) HandleRequest(req protocol.Request) error {
	start := time.Now()
	err := a.handle(req)
	a.observer.RequestHandled(req.Kind(), time.Since(start))
	if err != nil {
		a.fail(fmt.Errorf("%s: %w", req.Kind(), err))
	}
	return err
}

func (a *App) handle(req protocol.Request) error {
	rt := a.rt
	switch r := req.(type) {
	case protocol.ConnectionReady:
		a.logger.Warn("duplicate connection acknowledgment ignored")
		return nil
	case protocol.NewWindow:
		return rt.Window.NewWindow()
	case protocol.RedrawWindow:
		start := time.Now()
		presented, err := rt.Window.Redraw()
		if presented {
			a.observer.FramePresented(time.Since(start))
		}
		return err
	case protocol.CloseWindow:
		rt.Capture.Abort()
		rt.Window.Close()
		return nil
	case protocol.NewPage:
		rt.Drawer.Reset()
		return nil
	case protocol.SetBaseColor:
		rt.Drawer.SetBaseColor(protocol.ColorFromUint32(r.Color))
		return nil
	case protocol.SuspendRendering:
		rt.Scheduler.SetSuspended(r.Suspended)
		return nil
	case protocol.GetWindowSizes:
		w, h, err := rt.Window.Sizes()
		if err != nil {
			return a.respondFailure(err)
		}
		return a.respond(protocol.WindowSizes{Width: w, Height: h})
	case protocol.SaveAsPng:
		return rt.Raster.SavePNG(r.Filename, rt.Drawer.Frame(), r.Width, r.Height)
	case protocol.PrepareForSaveAsTile:
		return rt.Capture.Prepare(r.Height)
	case protocol.SaveAsTile:
		idx, err := rt.Capture.SaveAsTile(r)
		if err != nil {
			return a.respondFailure(err)
		}
		a.observer.CaptureCompleted()
		a.observer.PatternRegistered()
		return a.respond(protocol.PatternRegistered{Index: idx})
	case protocol.RegisterGradient:
		idx := rt.Capture.RegisterGradient(r.Gradient)
		a.observer.PatternRegistered()
		return a.respond(protocol.PatternRegistered{Index: idx})
	case protocol.ReleasePattern:
		return rt.Capture.Release(r.Index)
	}

	if !req.Kind().IsDraw() {
		return fmt.Errorf("unhandled request %T", req)
	}
	// Draws while suspended are dropped unless a capture collects them.
	if rt.Window.State() != window.Active && !rt.Capture.Active() {
		return nil
	}
	_, err := rt.Drawer.Apply(req)
	return err
}

func (a *App) respond(resp protocol.Response) error {
	if a.reply == nil {
		return nil
	}
	if err := a.reply.Respond(resp); err != nil {
		return fmt.Errorf("respond: %w", err)
	}
	return nil
}

// respondFailure answers an RPC with Failure. The cause is returned so it
// is logged, unless the reply itself failed.
func (a *App) respondFailure(cause error) error {
	if err := a.respond(protocol.Failure{Message: cause.Error()}); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func (a *App) fail(err error) {
	a.observer.Failure(err)
	if protocol.IsDisconnected(err) {
		a.logger.Warn("host disconnected", "error", err)
		return
	}
	a.logger.Error("request failed", "error", err)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
