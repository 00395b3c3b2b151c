package protocol

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in          string
		network     string
		address     string
		expectError bool
	}{
		{in: "unix:/tmp/a.sock", network: "unix", address: "/tmp/a.sock"},
		{in: "tcp:127.0.0.1:9000", network: "tcp", address: "127.0.0.1:9000"},
		{in: "udp:127.0.0.1:9000", expectError: true},
		{in: "unix:", expectError: true},
		{in: "nonsense", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			network, address, err := ParseAddress(tt.in)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if network != tt.network || address != tt.address {
				t.Errorf("got (%q, %q), want (%q, %q)", network, address, tt.network, tt.address)
			}
			if FormatAddress(network, address) != tt.in {
				t.Errorf("FormatAddress does not invert ParseAddress for %q", tt.in)
			}
		})
	}
}

func TestBootstrapHandshake(t *testing.T) {
	for _, network := range []string{NetworkUnix, NetworkTCP} {
		t.Run(network, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			rv, err := NewRendezvous(network)
			if err != nil {
				t.Fatalf("NewRendezvous: %v", err)
			}

			type result struct {
				server *ConnServer
				err    error
			}
			done := make(chan result, 1)
			go func() {
				s, err := Bootstrap(ctx, nil, rv.Address())
				done <- result{s, err}
			}()

			client, err := rv.Accept(ctx, nil)
			if err != nil {
				t.Fatalf("Accept: %v", err)
			}
			defer client.Close()

			r := <-done
			if r.err != nil {
				t.Fatalf("Bootstrap: %v", r.err)
			}
			defer r.server.Close()

			if err := client.Send(NewWindow{}); err != nil {
				t.Fatalf("send: %v", err)
			}
			got, err := r.server.Recv()
			if err != nil {
				t.Fatalf("recv: %v", err)
			}
			if got.Kind() != KindNewWindow {
				t.Errorf("first post-handshake request = %s, want NewWindow", got.Kind())
			}
		})
	}
}

func TestInboundRejectsMissingAcknowledgement(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	in, err := ListenInbound(NetworkTCP, "")
	if err != nil {
		t.Fatal(err)
	}
	defer in.Close()

	go func() {
		_, addr, _ := ParseAddress(in.Address())
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = NewEncoder(conn).EncodeRequest(NewWindow{})
		// Hold the connection until the server hangs up.
		var buf [1]byte
		_, _ = conn.Read(buf[:])
	}()

	_, err = in.Accept(ctx)
	if !errors.Is(err, ErrProtocolViolation) {
		t.Errorf("expected ErrProtocolViolation, got %v", err)
	}
}

func TestRendezvousAcceptCancelled(t *testing.T) {
	rv, err := NewRendezvous(NetworkUnix)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := rv.Accept(ctx, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestDialStandaloneServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	in, err := ListenInbound(NetworkUnix, "")
	if err != nil {
		t.Fatal(err)
	}
	defer in.Close()

	accepted := make(chan error, 1)
	go func() {
		s, err := in.Accept(ctx)
		if err == nil {
			s.Close()
		}
		accepted <- err
	}()

	client, err := Dial(ctx, nil, in.Address())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	if err := <-accepted; err != nil {
		t.Errorf("server side handshake failed: %v", err)
	}
}

func TestNewInboundOverExistingListener(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	in := NewInbound(ln, NetworkTCP)
	defer in.Close()

	if want := FormatAddress(NetworkTCP, ln.Addr().String()); in.Address() != want {
		t.Errorf("Address = %q, want %q", in.Address(), want)
	}

	accepted := make(chan error, 1)
	go func() {
		s, err := in.Accept(ctx)
		if err == nil {
			s.Close()
		}
		accepted <- err
	}()

	client, err := Dial(ctx, nil, in.Address())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()
	if err := <-accepted; err != nil {
		t.Fatalf("Accept: %v", err)
	}
}
