package vellogd

import (
	"context"
	"testing"
	"time"

	"github.com/opd-ai/go-vellogd/internal/protocol"
)

func TestSSHConfigMapping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SSH.Host = "render.example"
	cfg.SSH.User = "plot"
	cfg.SSH.KeyFile = "/home/plot/.ssh/id_ed25519"
	cfg.SSH.UseAgent = true
	cfg.SSH.KeepAlive = 15 * time.Second
	cfg.Transport.HandshakeTimeout = 3 * time.Second

	got := sshConfig(&cfg)
	if got.Host != "render.example" || got.Port != 22 || got.User != "plot" {
		t.Errorf("address fields = %+v", got)
	}
	if got.PrivateKeyPath != cfg.SSH.KeyFile || !got.UseAgent {
		t.Errorf("auth fields = %+v", got)
	}
	if got.Timeout != 3*time.Second || got.KeepAliveInterval != 15*time.Second {
		t.Errorf("timing fields = %+v", got)
	}
}

func TestConnectViaRendezvous(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rv, err := protocol.NewRendezvous(protocol.NetworkTCP)
	if err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	type result struct {
		l   *link
		err error
	}
	done := make(chan result, 1)
	var announced string
	go func() {
		l, err := connect(ctx, &cfg, rv.Address(), NopLogger(), func(addr string) { announced = addr })
		done <- result{l, err}
	}()

	client, err := rv.Accept(ctx, nil)
	if err != nil {
		t.Fatalf("host accept: %v", err)
	}
	defer client.Close()

	res := <-done
	if res.err != nil {
		t.Fatalf("connect: %v", res.err)
	}
	defer res.l.release()
	defer res.l.ch.Close()

	if announced == "" {
		t.Error("inbound address never reported")
	}
	if res.l.peer == "" {
		t.Error("peer not recorded")
	}

	if err := client.Send(protocol.NewPage{}); err != nil {
		t.Fatal(err)
	}
	req, err := res.l.ch.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if req.Kind() != protocol.KindNewPage {
		t.Errorf("request = %s, want NewPage", req.Kind())
	}
}

func TestConnectListening(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := DefaultConfig()
	cfg.Transport.Network = protocol.NetworkTCP
	cfg.Transport.Address = "127.0.0.1:0"

	addrs := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		l, err := connect(ctx, &cfg, "", NopLogger(), func(addr string) { addrs <- addr })
		if err == nil {
			_ = l.ch.Close()
			l.release()
		}
		done <- err
	}()

	var addr string
	select {
	case addr = <-addrs:
	case <-ctx.Done():
		t.Fatal("server never listened")
	}
	client, err := protocol.Dial(ctx, nil, addr)
	if err != nil {
		t.Fatalf("Dial(%s): %v", addr, err)
	}
	defer client.Close()

	if err := <-done; err != nil {
		t.Errorf("connect: %v", err)
	}
}

func TestConnectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := DefaultConfig()
	cfg.Transport.Network = protocol.NetworkTCP
	cfg.Transport.Address = "127.0.0.1:0"

	done := make(chan error, 1)
	go func() {
		_, err := connect(ctx, &cfg, "", NopLogger(), func(string) { cancel() })
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected error after cancellation")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("connect ignored cancellation")
	}
}
