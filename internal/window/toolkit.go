// Package window manages the lifetime of the presentation window and its
// surface. The Manager is a two-state machine, Suspended or Active, driven
// by protocol requests and toolkit events on the event loop goroutine.
package window

import (
	"context"
	"image"
)

// EventKind identifies a toolkit event.
type EventKind int

const (
	EventResized EventKind = iota
	EventCloseRequested
	EventSuspended
	EventResumed
)

func (k EventKind) String() string {
	switch k {
	case EventResized:
		return "resized"
	case EventCloseRequested:
		return "close-requested"
	case EventSuspended:
		return "suspended"
	case EventResumed:
		return "resumed"
	default:
		return "unknown"
	}
}

// Event is a notification from the windowing toolkit.
type Event struct {
	Kind          EventKind
	Width, Height int
}

// EventSink receives toolkit events. Toolkits may call it from any
// goroutine; the server forwards events into its loop.
type EventSink func(Event)

// Options describe a window to create.
type Options struct {
	Title         string
	Width, Height int
	SkipTaskbar   bool
	SkipPager     bool
	AlwaysOnTop   bool
	// Transparent asks for a window whose alpha reaches the desktop.
	Transparent bool
}

// Window is an OS window created by a Toolkit.
type Window interface {
	// InnerSize returns the drawable size actually materialized.
	InnerSize() (width, height int)
	SetTitle(title string)
	// Present shows a fully rendered frame.
	Present(frame *image.RGBA) error
	Close() error
}

// Toolkit creates windows.
type Toolkit interface {
	CreateWindow(opts Options, sink EventSink) (Window, error)
}

// Runner is implemented by toolkits that must own the calling goroutine
// for their event loop. Run calls pump on that goroutine until ctx is done
// or the toolkit exits.
type Runner interface {
	Run(ctx context.Context, pump func() error) error
}
