package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
)

// Supported transport networks.
const (
	NetworkUnix = "unix"
	NetworkTCP  = "tcp"
)

// Dialer opens connections. *net.Dialer satisfies it, and so does the SSH
// tunnel returned by NewSSHDialer.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// FormatAddress joins a network and an address into the "network:address"
// form passed between processes.
func FormatAddress(network, address string) string {
	return network + ":" + address
}

// ParseAddress splits a "network:address" string.
func ParseAddress(s string) (network, address string, err error) {
	network, address, ok := strings.Cut(s, ":")
	if !ok || address == "" {
		return "", "", fmt.Errorf("invalid address %q: expected network:address", s)
	}
	switch network {
	case NetworkUnix, NetworkTCP:
		return network, address, nil
	default:
		return "", "", fmt.Errorf("invalid address %q: unsupported network %q", s, network)
	}
}

// listener is a net.Listener that removes its socket directory on close.
type listener struct {
	net.Listener
	network string
	dir     string
}

func (l *listener) Address() string {
	return FormatAddress(l.network, l.Addr().String())
}

func (l *listener) Close() error {
	err := l.Listener.Close()
	if l.dir != "" {
		_ = os.RemoveAll(l.dir)
	}
	return err
}

// listen opens a listener. An empty unix address picks a private socket in a
// fresh temporary directory; an empty tcp address picks a loopback port.
func listen(network, address, name string) (*listener, error) {
	var dir string
	switch network {
	case NetworkUnix:
		if address == "" {
			d, err := os.MkdirTemp("", "vellogd-*")
			if err != nil {
				return nil, fmt.Errorf("create socket directory: %w", err)
			}
			dir = d
			address = filepath.Join(d, name+".sock")
		}
	case NetworkTCP:
		if address == "" {
			address = "127.0.0.1:0"
		}
	default:
		return nil, fmt.Errorf("unsupported network %q", network)
	}

	ln, err := net.Listen(network, address)
	if err != nil {
		if dir != "" {
			_ = os.RemoveAll(dir)
		}
		return nil, fmt.Errorf("listen on %s: %w", FormatAddress(network, address), err)
	}
	return &listener{Listener: ln, network: network, dir: dir}, nil
}

// acceptContext accepts one connection, giving up when ctx is done. The
// listener is closed on cancellation.
func acceptContext(ctx context.Context, ln net.Listener) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := ln.Accept()
		ch <- result{c, err}
	}()

	select {
	case r := <-ch:
		return r.conn, r.err
	case <-ctx.Done():
		_ = ln.Close()
		if r := <-ch; r.conn != nil {
			_ = r.conn.Close()
		}
		return nil, ctx.Err()
	}
}

// guardConn closes conn when ctx is done. The returned function detaches
// the guard and reports whether it fired.
func guardConn(ctx context.Context, conn net.Conn) func() bool {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	return func() bool { return !stop() }
}

// Rendezvous is the one-shot listener a host creates before spawning the
// server. Its address is handed to the server out of band.
type Rendezvous struct {
	ln *listener
}

// NewRendezvous opens a rendezvous listener on network ("unix" or "tcp").
func NewRendezvous(network string) (*Rendezvous, error) {
	ln, err := listen(network, "", "rx")
	if err != nil {
		return nil, fmt.Errorf("rendezvous: %w", err)
	}
	return &Rendezvous{ln: ln}, nil
}

// Address returns the address to pass to the server.
func (r *Rendezvous) Address() string {
	return r.ln.Address()
}

// Close releases the listener. Accept closes it on return as well.
func (r *Rendezvous) Close() error {
	return r.ln.Close()
}

// Accept completes the host side of the bootstrap: it waits for the server
// to announce its inbound address, connects there and acknowledges with
// ConnectionReady. The returned channel is ready for draw commands.
func (r *Rendezvous) Accept(ctx context.Context, d Dialer) (*ConnClient, error) {
	defer r.Close()
	if d == nil {
		d = &net.Dialer{}
	}

	conn, err := acceptContext(ctx, r.ln)
	if err != nil {
		return nil, fmt.Errorf("rendezvous accept: %w", err)
	}
	release := guardConn(ctx, conn)
	resp, err := NewDecoder(conn).DecodeResponse()
	fired := release()
	_ = conn.Close()
	if fired {
		return nil, fmt.Errorf("rendezvous: %w", ctx.Err())
	}
	if err != nil {
		return nil, fmt.Errorf("rendezvous: read server address: %w", err)
	}

	announce, ok := resp.(Connect)
	if !ok {
		return nil, fmt.Errorf("rendezvous: %w: expected Connect, got %T", ErrProtocolViolation, resp)
	}
	return Dial(ctx, d, announce.Address)
}

// Dial connects to a server's inbound address and acknowledges the
// connection. It is also the entry point for servers started standalone.
func Dial(ctx context.Context, d Dialer, address string) (*ConnClient, error) {
	if d == nil {
		d = &net.Dialer{}
	}
	network, addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("connect to server %s: %w", address, err)
	}
	client := NewConnClient(conn)
	if err := client.Send(ConnectionReady{}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("acknowledge connection: %w", err)
	}
	return client, nil
}

// Inbound is the server's listener for host connections.
type Inbound struct {
	ln *listener
}

// ListenInbound opens the server's inbound listener. An empty address picks
// a private one.
func ListenInbound(network, address string) (*Inbound, error) {
	ln, err := listen(network, address, "tx")
	if err != nil {
		return nil, fmt.Errorf("inbound: %w", err)
	}
	return &Inbound{ln: ln}, nil
}

// NewInbound wraps an existing listener, such as one opened on the far
// side of an SSH tunnel. network names the address family hosts dial.
func NewInbound(ln net.Listener, network string) *Inbound {
	return &Inbound{ln: &listener{Listener: ln, network: network}}
}

// Address returns the address hosts connect to.
func (in *Inbound) Address() string {
	return in.ln.Address()
}

// Close releases the listener.
func (in *Inbound) Close() error {
	return in.ln.Close()
}

// Accept blocks until a host connects and acknowledges. The first message
// must be ConnectionReady; anything else aborts with ErrProtocolViolation
// and the connection is closed.
func (in *Inbound) Accept(ctx context.Context) (*ConnServer, error) {
	conn, err := acceptContext(ctx, in.ln)
	if err != nil {
		return nil, fmt.Errorf("accept host: %w", err)
	}

	server := NewConnServer(conn)
	release := guardConn(ctx, conn)
	first, err := server.Recv()
	if release() {
		_ = conn.Close()
		return nil, fmt.Errorf("handshake: %w", ctx.Err())
	}
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("handshake: %w", err)
	}
	if _, ok := first.(ConnectionReady); !ok {
		_ = conn.Close()
		return nil, fmt.Errorf("handshake: %w: expected ConnectionReady, got %s",
			ErrProtocolViolation, first.Kind())
	}
	return server, nil
}

// Announce dials the host's rendezvous address and tells it where to connect.
func (in *Inbound) Announce(ctx context.Context, d Dialer, rendezvous string) error {
	if d == nil {
		d = &net.Dialer{}
	}
	network, addr, err := ParseAddress(rendezvous)
	if err != nil {
		return err
	}
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return fmt.Errorf("dial rendezvous %s: %w", rendezvous, err)
	}
	defer conn.Close()

	if err := NewEncoder(conn).EncodeResponse(Connect{Address: in.Address()}); err != nil {
		return fmt.Errorf("announce inbound address: %w", err)
	}
	return nil
}

// Bootstrap runs the server side of the handshake against a host's
// rendezvous address and returns the acknowledged channel. On failure no
// listener or connection is left behind.
func Bootstrap(ctx context.Context, d Dialer, rendezvous string) (*ConnServer, error) {
	network, _, err := ParseAddress(rendezvous)
	if err != nil {
		return nil, err
	}
	in, err := ListenInbound(network, "")
	if err != nil {
		return nil, err
	}
	defer in.Close()

	if err := in.Announce(ctx, d, rendezvous); err != nil {
		return nil, err
	}
	server, err := in.Accept(ctx)
	if err != nil {
		return nil, err
	}
	return server, nil
}

// IsDisconnected reports whether err means the peer went away.
func IsDisconnected(err error) bool {
	return errors.Is(err, ErrDisconnected)
}
