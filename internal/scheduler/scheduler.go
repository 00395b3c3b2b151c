// Package scheduler drives periodic redraws.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is roughly one frame at 60 Hz.
const DefaultInterval = 16 * time.Millisecond

// PostFunc posts a redraw request into the event loop. It must not block
// for long; an error stops the scheduler.
type PostFunc func() error

// Scheduler posts a redraw on every tick unless rendering is suspended.
type Scheduler struct {
	post     PostFunc
	interval atomic.Int64

	suspended atomic.Bool
	posted    atomic.Uint64
	skipped   atomic.Uint64

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	reset   chan struct{}
	lastErr error
}

// New returns a stopped scheduler. A non-positive interval selects
// DefaultInterval.
func New(interval time.Duration, post PostFunc) *Scheduler {
	s := &Scheduler{post: post, reset: make(chan struct{}, 1)}
	s.SetInterval(interval)
	return s
}

// SetInterval changes the tick period, taking effect on the next tick.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultInterval
	}
	if time.Duration(s.interval.Swap(int64(d))) == d {
		return
	}
	select {
	case s.reset <- struct{}{}:
	default:
	}
}

// Interval returns the tick period.
func (s *Scheduler) Interval() time.Duration {
	return time.Duration(s.interval.Load())
}

// SetSuspended gates posting. Ticks keep running while suspended.
func (s *Scheduler) SetSuspended(v bool) {
	s.suspended.Store(v)
}

// Suspended reports whether posting is gated.
func (s *Scheduler) Suspended() bool {
	return s.suspended.Load()
}

// Stats returns the number of posted and skipped ticks.
func (s *Scheduler) Stats() (posted, skipped uint64) {
	return s.posted.Load(), s.skipped.Load()
}

// Start launches the timer goroutine. Starting a running scheduler is a
// no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.lastErr = nil
	go s.run(ctx, s.done)
}

// Stop halts the timer goroutine and waits for it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Err returns the post error that stopped the scheduler, if any.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.reset:
			ticker.Reset(s.Interval())
		case <-ticker.C:
			if s.suspended.Load() {
				s.skipped.Add(1)
				continue
			}
			if err := s.post(); err != nil {
				s.fail(err, done)
				return
			}
			s.posted.Add(1)
		}
	}
}

// fail records err and marks the scheduler stopped so a later Start runs
// again. done identifies the run; a Stop that already took it wins.
func (s *Scheduler) fail(err error, done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if s.done == done {
		s.cancel()
		s.cancel, s.done = nil, nil
	}
}
