// Package server runs the render server: it wires the window manager,
// scene drawer, capture coordinator and refresh scheduler around one
// event loop fed by a protocol channel.
package server

import (
	"time"

	"github.com/opd-ai/go-vellogd/internal/capture"
	"github.com/opd-ai/go-vellogd/internal/engine"
	"github.com/opd-ai/go-vellogd/internal/headless"
	"github.com/opd-ai/go-vellogd/internal/scene"
	"github.com/opd-ai/go-vellogd/internal/scheduler"
	"github.com/opd-ai/go-vellogd/internal/text"
	"github.com/opd-ai/go-vellogd/internal/window"
)

// Options configure a Runtime.
type Options struct {
	Window    window.Options
	Toolkit   window.Toolkit
	Interval  time.Duration
	QueueSize int
	Logger    Logger
}

// Runtime is the set of components owned by one server instance.
type Runtime struct {
	Loop      *Loop
	Canvas    *scene.Canvas
	Patterns  *scene.Registry
	Layouter  *text.Layouter
	Drawer    *scene.Drawer
	Engine    *engine.Context
	Window    *window.Manager
	Scheduler *scheduler.Scheduler
	Capture   *capture.Coordinator
	Raster    *headless.Rasterizer
}

// NewRuntime builds the components. The window starts Suspended; nothing
// runs until the runtime is served.
func NewRuntime(opts Options) *Runtime {
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	if opts.Toolkit == nil {
		opts.Toolkit = window.NewHeadlessToolkit()
	}
	if opts.Window.Width <= 0 {
		opts.Window.Width = 800
	}
	if opts.Window.Height <= 0 {
		opts.Window.Height = 600
	}

	rt := &Runtime{Loop: NewLoop(opts.QueueSize)}
	rt.Canvas = scene.NewCanvas(uint32(opts.Window.Width), uint32(opts.Window.Height))
	rt.Patterns = scene.NewRegistry()
	rt.Layouter = text.NewLayouter()
	rt.Drawer = scene.NewDrawer(rt.Canvas, rt.Patterns, rt.Layouter)
	rt.Engine = engine.NewContext()

	logger := opts.Logger
	loop := rt.Loop
	rt.Window = window.NewManager(window.Config{
		Toolkit: opts.Toolkit,
		Engine:  rt.Engine,
		Drawer:  rt.Drawer,
		Sink: func(e window.Event) {
			if err := loop.PostEvent(e); err != nil {
				logger.Debug("window event dropped", "kind", e.Kind, "error", err)
			}
		},
		Logger:  logger,
		Options: opts.Window,
	})

	// Redraws coalesce: a tick that finds the queue full is skipped.
	rt.Scheduler = scheduler.New(opts.Interval, func() error {
		_, err := loop.TryPost(redrawRequest)
		return err
	})
	rt.Raster = headless.New(rt.Window.Renderer)
	rt.Capture = capture.New(rt.Drawer, rt.Scheduler, rt.Raster)
	return rt
}

// Close releases the window and render context.
func (rt *Runtime) Close() error {
	rt.Scheduler.Stop()
	rt.Loop.Close()
	rt.Capture.Abort()
	rt.Window.Close()
	return rt.Engine.Close()
}
