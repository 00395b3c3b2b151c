package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opd-ai/go-vellogd/internal/protocol"
	"github.com/opd-ai/go-vellogd/internal/window"
)

func TestServeOverPipe(t *testing.T) {
	tk := window.NewHeadlessToolkit()
	rt := NewRuntime(Options{
		Toolkit:  tk,
		Window:   window.Options{Width: 100, Height: 100},
		Interval: 5 * time.Millisecond,
	})
	defer rt.Close()
	srv := New(rt, nil, nil)

	hostEnd, serverEnd := protocol.Pipe(0)
	client := protocol.NewClient(hostEnd)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, serverEnd) }()

	if err := client.Send(protocol.NewWindow{}); err != nil {
		t.Fatal(err)
	}
	if err := client.Send(redCircle()); err != nil {
		t.Fatal(err)
	}
	w, h, err := client.WindowSizes()
	if err != nil {
		t.Fatalf("WindowSizes error = %v", err)
	}
	if w != 100 || h != 100 {
		t.Errorf("WindowSizes = %d,%d, want 100,100", w, h)
	}

	deadline := time.Now().Add(5 * time.Second)
	for tk.Last().Presents() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no frame presented")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if px := tk.Last().Frame().RGBAAt(50, 50); px.R != 255 || px.G != 0 || px.A != 255 {
		t.Errorf("centre pixel = %v, want opaque red", px)
	}

	_ = client.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after disconnect")
	}
}

func TestServeKeepsRunningAfterDisconnect(t *testing.T) {
	rt := NewRuntime(Options{})
	defer rt.Close()
	srv := New(rt, nil, nil)
	srv.ExitOnDisconnect = false

	hostEnd, serverEnd := protocol.Pipe(0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, serverEnd) }()

	_ = hostEnd.Close()
	select {
	case err := <-done:
		t.Fatalf("Serve returned %v after disconnect", err)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

var errToolkitExit = errors.New("toolkit exited")

// exitingToolkit stops its event loop shortly after starting without
// pumping a single message.
type exitingToolkit struct {
	*window.HeadlessToolkit
}

func (exitingToolkit) Run(context.Context, func() error) error {
	time.Sleep(50 * time.Millisecond)
	return errToolkitExit
}

func TestServeReturnsWhenToolkitExitsWithFullQueue(t *testing.T) {
	rt := NewRuntime(Options{
		Toolkit:   exitingToolkit{window.NewHeadlessToolkit()},
		QueueSize: 1,
	})
	defer rt.Close()
	srv := New(rt, nil, nil)

	hostEnd, serverEnd := protocol.Pipe(8)
	for range 4 {
		if err := hostEnd.Send(protocol.NewPage{}); err != nil {
			t.Fatal(err)
		}
	}

	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background(), serverEnd) }()

	select {
	case err := <-done:
		if !errors.Is(err, errToolkitExit) {
			t.Errorf("Serve error = %v, want %v", err, errToolkitExit)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve hung waiting for a blocked receiver")
	}
}

type collect struct {
	reqs   []protocol.Kind
	events []window.EventKind
}

func (c *collect) HandleRequest(r protocol.Request) error {
	c.reqs = append(c.reqs, r.Kind())
	return nil
}

func (c *collect) HandleEvent(e window.Event) error {
	c.events = append(c.events, e.Kind)
	return nil
}

func TestLoopOrder(t *testing.T) {
	l := NewLoop(8)
	ctx := context.Background()
	_ = l.Post(ctx, protocol.NewWindow{})
	_ = l.PostEvent(window.Event{Kind: window.EventResized, Width: 1, Height: 1})
	_ = l.Post(ctx, protocol.NewPage{})

	var c collect
	if err := l.Drain(&c); err != nil {
		t.Fatalf("Drain error = %v", err)
	}
	want := []protocol.Kind{protocol.KindNewWindow, protocol.KindNewPage}
	if len(c.reqs) != 2 || c.reqs[0] != want[0] || c.reqs[1] != want[1] {
		t.Errorf("requests = %v, want %v", c.reqs, want)
	}
	if len(c.events) != 1 || c.events[0] != window.EventResized {
		t.Errorf("events = %v", c.events)
	}
}

func TestLoopTryPostFull(t *testing.T) {
	l := NewLoop(1)
	if ok, err := l.TryPost(protocol.RedrawWindow{}); !ok || err != nil {
		t.Fatalf("first TryPost = %v,%v", ok, err)
	}
	if ok, err := l.TryPost(protocol.RedrawWindow{}); ok || err != nil {
		t.Errorf("TryPost on a full queue = %v,%v, want false,nil", ok, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Post(ctx, protocol.NewPage{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("blocked Post = %v, want deadline exceeded", err)
	}
}

func TestLoopClosed(t *testing.T) {
	l := NewLoop(1)
	l.Close()
	l.Close()

	if err := l.Post(context.Background(), protocol.NewPage{}); !errors.Is(err, ErrLoopClosed) {
		t.Errorf("Post = %v, want ErrLoopClosed", err)
	}
	if _, err := l.TryPost(protocol.NewPage{}); !errors.Is(err, ErrLoopClosed) {
		t.Errorf("TryPost = %v, want ErrLoopClosed", err)
	}
	if err := l.Run(context.Background(), &collect{}); !errors.Is(err, ErrLoopClosed) {
		t.Errorf("Run = %v, want ErrLoopClosed", err)
	}
}
