package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/opd-ai/go-vellogd/internal/protocol"
	"github.com/opd-ai/go-vellogd/internal/window"
)

var redrawRequest protocol.Request = protocol.RedrawWindow{}

// Server serves one host connection against a Runtime.
type Server struct {
	rt       *Runtime
	logger   Logger
	observer Observer

	// ExitOnDisconnect ends Serve when the host goes away. Otherwise the
	// last frame stays on screen until the context is cancelled or the
	// window is closed by the user.
	ExitOnDisconnect bool
}

// New returns a server for rt. observer may be nil.
func New(rt *Runtime, logger Logger, observer Observer) *Server {
	if logger == nil {
		logger = nopLogger{}
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Server{rt: rt, logger: logger, observer: observer, ExitOnDisconnect: true}
}

// Runtime returns the served runtime.
func (s *Server) Runtime() *Runtime {
	return s.rt
}

// Serve runs the event loop until ctx is cancelled, the host disconnects
// (with ExitOnDisconnect) or the loop is closed. Requests are read on a
// separate goroutine and handled in arrival order. When the toolkit must
// own the calling goroutine, Serve hands it over.
func (s *Server) Serve(ctx context.Context, ch protocol.ServerChannel) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app := NewApp(s.rt, ch, s.logger, s.observer)
	s.rt.Scheduler.Start(ctx)
	defer s.rt.Scheduler.Stop()

	recvErr := make(chan error, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		recvErr <- s.receive(ctx, ch)
	}()
	defer func() {
		// The receiver may be blocked posting to a full queue.
		cancel()
		_ = ch.Close()
		wg.Wait()
	}()

	go func() {
		select {
		case err := <-recvErr:
			if protocol.IsDisconnected(err) {
				s.logger.Info("host disconnected")
			} else if err != nil {
				s.logger.Error("receive failed", "error", err)
			}
			if s.ExitOnDisconnect || !protocol.IsDisconnected(err) {
				cancel()
			}
		case <-ctx.Done():
		}
	}()

	var err error
	if runner, ok := s.rt.Window.Toolkit().(window.Runner); ok {
		err = runner.Run(ctx, func() error {
			if err := s.rt.Scheduler.Err(); err != nil {
				return err
			}
			return s.rt.Loop.Drain(app)
		})
	} else {
		err = s.rt.Loop.Run(ctx, app)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrLoopClosed) {
		// Handle whatever arrived before the stop.
		_ = s.rt.Loop.Drain(app)
		return nil
	}
	return err
}

// receive forwards requests from ch into the loop until the channel fails.
func (s *Server) receive(ctx context.Context, ch protocol.ServerChannel) error {
	for {
		req, err := ch.Recv()
		if err != nil {
			if errors.Is(err, protocol.ErrDisconnected) {
				return err
			}
			return fmt.Errorf("receive: %w", err)
		}
		if err := s.rt.Loop.Post(ctx, req); err != nil {
			return err
		}
	}
}
