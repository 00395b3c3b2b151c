package protocol

import (
	"fmt"
	"net"
	"sync"
)

// ServerChannel is the server's end of a duplex channel: it receives
// requests and answers RPCs.
type ServerChannel interface {
	Recv() (Request, error)
	Respond(Response) error
	Close() error
}

// ClientChannel is the host's end of a duplex channel.
type ClientChannel interface {
	Send(Request) error
	RecvResponse() (Response, error)
	Close() error
}

// DefaultPipeBuffer is the request queue depth of an in-process pipe.
const DefaultPipeBuffer = 1024

// Pipe returns the two ends of an in-process channel. Requests are queued
// up to buffer deep; Send blocks when the queue is full.
func Pipe(buffer int) (ClientChannel, ServerChannel) {
	if buffer <= 0 {
		buffer = DefaultPipeBuffer
	}
	p := &pipe{
		requests:  make(chan Request, buffer),
		responses: make(chan Response, 1),
		done:      make(chan struct{}),
	}
	return &pipeClient{p}, &pipeServer{p}
}

type pipe struct {
	requests  chan Request
	responses chan Response
	done      chan struct{}
	closeOnce sync.Once
}

func (p *pipe) close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}

type pipeClient struct{ p *pipe }

func (c *pipeClient) Send(r Request) error {
	select {
	case <-c.p.done:
		return fmt.Errorf("send %s: %w", r.Kind(), ErrDisconnected)
	default:
	}
	select {
	case c.p.requests <- r:
		return nil
	case <-c.p.done:
		return fmt.Errorf("send %s: %w", r.Kind(), ErrDisconnected)
	}
}

func (c *pipeClient) RecvResponse() (Response, error) {
	select {
	case r := <-c.p.responses:
		return r, nil
	case <-c.p.done:
		return nil, fmt.Errorf("receive response: %w", ErrDisconnected)
	}
}

func (c *pipeClient) Close() error { return c.p.close() }

type pipeServer struct{ p *pipe }

func (s *pipeServer) Recv() (Request, error) {
	select {
	case r := <-s.p.requests:
		return r, nil
	case <-s.p.done:
		// Drain anything that was queued before the close.
		select {
		case r := <-s.p.requests:
			return r, nil
		default:
		}
		return nil, fmt.Errorf("receive request: %w", ErrDisconnected)
	}
}

func (s *pipeServer) Respond(r Response) error {
	select {
	case s.p.responses <- r:
		return nil
	case <-s.p.done:
		return fmt.Errorf("respond: %w", ErrDisconnected)
	}
}

func (s *pipeServer) Close() error { return s.p.close() }

// ConnServer serves requests read from a network connection.
type ConnServer struct {
	conn net.Conn
	enc  *Encoder
	dec  *Decoder
}

// NewConnServer wraps conn as the server end of a channel.
func NewConnServer(conn net.Conn) *ConnServer {
	return &ConnServer{conn: conn, enc: NewEncoder(conn), dec: NewDecoder(conn)}
}

// Recv blocks until the next request arrives.
func (s *ConnServer) Recv() (Request, error) { return s.dec.DecodeRequest() }

// Respond writes an RPC reply.
func (s *ConnServer) Respond(r Response) error { return s.enc.EncodeResponse(r) }

// Close closes the underlying connection.
func (s *ConnServer) Close() error { return s.conn.Close() }

// RemoteAddr describes the connected peer.
func (s *ConnServer) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// ConnClient sends requests over a network connection.
type ConnClient struct {
	conn net.Conn
	enc  *Encoder
	dec  *Decoder
}

// NewConnClient wraps conn as the client end of a channel.
func NewConnClient(conn net.Conn) *ConnClient {
	return &ConnClient{conn: conn, enc: NewEncoder(conn), dec: NewDecoder(conn)}
}

// Send writes one request.
func (c *ConnClient) Send(r Request) error { return c.enc.EncodeRequest(r) }

// RecvResponse blocks until the next reply arrives.
func (c *ConnClient) RecvResponse() (Response, error) { return c.dec.DecodeResponse() }

// Close closes the underlying connection.
func (c *ConnClient) Close() error { return c.conn.Close() }

var (
	_ ServerChannel = (*pipeServer)(nil)
	_ ServerChannel = (*ConnServer)(nil)
	_ ClientChannel = (*pipeClient)(nil)
	_ ClientChannel = (*ConnClient)(nil)
)
