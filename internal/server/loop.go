package server

import (
	"context"
	"errors"
	"sync"

	"github.com/opd-ai/go-vellogd/internal/protocol"
	"github.com/opd-ai/go-vellogd/internal/window"
)

// ErrLoopClosed is returned when posting to a closed loop.
var ErrLoopClosed = errors.New("event loop closed")

// DefaultQueueSize is the depth of the loop's request queue.
const DefaultQueueSize = 4096

// Handler processes loop messages.
type Handler interface {
	HandleRequest(protocol.Request) error
	HandleEvent(window.Event) error
}

// Loop merges toolkit events and posted requests. Requests are handled in
// posting order; pending events are handled before the next request.
// Events never block the poster, since toolkits emit them from the
// goroutine that drains the loop.
type Loop struct {
	queue     chan protocol.Request
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	events []window.Event
	wake   chan struct{}
}

// NewLoop returns a loop with a request queue of the given depth.
func NewLoop(size int) *Loop {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Loop{
		queue: make(chan protocol.Request, size),
		done:  make(chan struct{}),
		wake:  make(chan struct{}, 1),
	}
}

// Post enqueues a request, blocking while the queue is full.
func (l *Loop) Post(ctx context.Context, req protocol.Request) error {
	select {
	case <-l.done:
		return ErrLoopClosed
	default:
	}
	select {
	case l.queue <- req:
		return nil
	case <-l.done:
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPost enqueues a request unless the queue is full. It reports whether
// the request was queued.
func (l *Loop) TryPost(req protocol.Request) (bool, error) {
	select {
	case <-l.done:
		return false, ErrLoopClosed
	default:
	}
	select {
	case l.queue <- req:
		return true, nil
	default:
		return false, nil
	}
}

// PostEvent records a toolkit event.
func (l *Loop) PostEvent(e window.Event) error {
	select {
	case <-l.done:
		return ErrLoopClosed
	default:
	}
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Close stops the loop. Pending messages are discarded.
func (l *Loop) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}

// Done is closed when the loop is closed.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Run handles messages until ctx is done or the loop is closed.
func (l *Loop) Run(ctx context.Context, h Handler) error {
	for {
		l.handleEvents(h)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return ErrLoopClosed
		case <-l.wake:
		case req := <-l.queue:
			l.handleEvents(h)
			_ = h.HandleRequest(req)
		}
	}
}

// Drain handles every pending message without blocking. Toolkits that own
// the main goroutine call it once per tick.
func (l *Loop) Drain(h Handler) error {
	for {
		select {
		case <-l.done:
			return ErrLoopClosed
		default:
		}
		l.handleEvents(h)
		select {
		case req := <-l.queue:
			_ = h.HandleRequest(req)
		default:
			return nil
		}
	}
}

func (l *Loop) handleEvents(h Handler) {
	l.mu.Lock()
	events := l.events
	l.events = nil
	l.mu.Unlock()
	for _, e := range events {
		_ = h.HandleEvent(e)
	}
}
