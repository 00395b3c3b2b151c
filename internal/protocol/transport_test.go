package protocol

import (
	"errors"
	"testing"
	"time"
)

func TestPipePreservesOrder(t *testing.T) {
	client, server := Pipe(8)

	sent := []Request{NewWindow{}, NewPage{}, SetBaseColor{Color: 1}, RedrawWindow{}}
	for _, r := range sent {
		if err := client.Send(r); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	for i, want := range sent {
		got, err := server.Recv()
		if err != nil {
			t.Fatalf("recv %d: %v", i, err)
		}
		if got != want {
			t.Errorf("recv %d = %#v, want %#v", i, got, want)
		}
	}
}

func TestPipeDrainsAfterClose(t *testing.T) {
	client, server := Pipe(4)
	if err := client.Send(NewPage{}); err != nil {
		t.Fatal(err)
	}
	client.Close()

	if _, err := server.Recv(); err != nil {
		t.Fatalf("queued request lost after close: %v", err)
	}
	if _, err := server.Recv(); !errors.Is(err, ErrDisconnected) {
		t.Errorf("expected ErrDisconnected, got %v", err)
	}
	if err := client.Send(NewPage{}); !errors.Is(err, ErrDisconnected) {
		t.Errorf("send after close: expected ErrDisconnected, got %v", err)
	}
}

func TestPipeResponse(t *testing.T) {
	client, server := Pipe(1)
	defer client.Close()

	go func() {
		if _, err := server.Recv(); err != nil {
			return
		}
		_ = server.Respond(WindowSizes{Width: 3, Height: 4})
	}()

	if err := client.Send(GetWindowSizes{}); err != nil {
		t.Fatal(err)
	}

	done := make(chan Response, 1)
	go func() {
		r, _ := client.RecvResponse()
		done <- r
	}()
	select {
	case r := <-done:
		if r != (WindowSizes{Width: 3, Height: 4}) {
			t.Errorf("response = %#v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for response")
	}
}

func TestPipeRecvResponseAfterServerClose(t *testing.T) {
	client, server := Pipe(1)
	server.Close()
	if _, err := client.RecvResponse(); !errors.Is(err, ErrDisconnected) {
		t.Errorf("expected ErrDisconnected, got %v", err)
	}
}
