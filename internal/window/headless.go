package window

import (
	"errors"
	"image"
	"sync"
)

// ErrWindowClosed is returned by operations on a closed headless window.
var ErrWindowClosed = errors.New("window closed")

// HeadlessToolkit creates in-memory windows. It backs servers that run
// without a display and serves as the toolkit in tests.
type HeadlessToolkit struct {
	mu      sync.Mutex
	windows []*HeadlessWindow
	// Fail, when set, is returned by CreateWindow.
	Fail error
	// Scale multiplies requested sizes, mimicking a HiDPI display whose
	// inner size differs from the logical size.
	Scale int
}

// NewHeadlessToolkit returns a toolkit creating windows at their requested
// size.
func NewHeadlessToolkit() *HeadlessToolkit {
	return &HeadlessToolkit{Scale: 1}
}

// CreateWindow implements Toolkit.
func (t *HeadlessToolkit) CreateWindow(opts Options, sink EventSink) (Window, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Fail != nil {
		return nil, t.Fail
	}
	scale := max(t.Scale, 1)
	w := &HeadlessWindow{
		title:  opts.Title,
		width:  max(opts.Width, 1) * scale,
		height: max(opts.Height, 1) * scale,
		sink:   sink,
	}
	t.windows = append(t.windows, w)
	return w, nil
}

// Created returns the number of windows created so far.
func (t *HeadlessToolkit) Created() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.windows)
}

// Last returns the most recently created window, or nil.
func (t *HeadlessToolkit) Last() *HeadlessWindow {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.windows) == 0 {
		return nil
	}
	return t.windows[len(t.windows)-1]
}

// HeadlessWindow keeps the last presented frame in memory.
type HeadlessWindow struct {
	mu        sync.Mutex
	title     string
	width     int
	height    int
	sink      EventSink
	frame     *image.RGBA
	presents  int
	closed    bool
	FailPaint error
}

// InnerSize implements Window.
func (w *HeadlessWindow) InnerSize() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

// SetTitle implements Window.
func (w *HeadlessWindow) SetTitle(title string) {
	w.mu.Lock()
	w.title = title
	w.mu.Unlock()
}

// Title returns the window title.
func (w *HeadlessWindow) Title() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.title
}

// Present implements Window.
func (w *HeadlessWindow) Present(frame *image.RGBA) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWindowClosed
	}
	if w.FailPaint != nil {
		return w.FailPaint
	}
	w.frame = frame
	w.presents++
	return nil
}

// Frame returns the last presented frame.
func (w *HeadlessWindow) Frame() *image.RGBA {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frame
}

// Presents returns the number of frames presented.
func (w *HeadlessWindow) Presents() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.presents
}

// Close implements Window.
func (w *HeadlessWindow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// Closed reports whether the window was closed.
func (w *HeadlessWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Resize changes the inner size and notifies the sink, as a user dragging
// the window edge would.
func (w *HeadlessWindow) Resize(width, height int) {
	w.mu.Lock()
	w.width, w.height = width, height
	sink := w.sink
	w.mu.Unlock()
	if sink != nil {
		sink(Event{Kind: EventResized, Width: width, Height: height})
	}
}

// Emit sends an arbitrary event to the sink.
func (w *HeadlessWindow) Emit(e Event) {
	w.mu.Lock()
	sink := w.sink
	w.mu.Unlock()
	if sink != nil {
		sink(e)
	}
}
