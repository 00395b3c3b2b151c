package protocol

import (
	"fmt"
	"sync"
)

// Client is a host-side helper over a ClientChannel. Fire-and-forget
// requests go straight to the channel; RPCs are serialized so each reply
// pairs with its request.
type Client struct {
	ch ClientChannel
	mu sync.Mutex
}

// NewClient wraps ch.
func NewClient(ch ClientChannel) *Client {
	return &Client{ch: ch}
}

// Send enqueues a request that expects no reply.
func (c *Client) Send(r Request) error {
	if r.Kind().ExpectsReply() {
		return fmt.Errorf("send %s: request expects a reply, use Call", r.Kind())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch.Send(r)
}

// Call sends an RPC request and waits for its reply. A Failure reply is
// returned as a *RemoteError.
func (c *Client) Call(r Request) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ch.Send(r); err != nil {
		return nil, err
	}
	if !r.Kind().ExpectsReply() {
		return nil, nil
	}
	resp, err := c.ch.RecvResponse()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.Kind(), err)
	}
	if f, ok := resp.(Failure); ok {
		return nil, &RemoteError{Request: r.Kind(), Message: f.Message}
	}
	return resp, nil
}

// WindowSizes queries the window's inner size.
func (c *Client) WindowSizes() (width, height uint32, err error) {
	resp, err := c.Call(GetWindowSizes{})
	if err != nil {
		return 0, 0, err
	}
	ws, ok := resp.(WindowSizes)
	if !ok {
		return 0, 0, fmt.Errorf("GetWindowSizes: %w: %T", ErrUnexpectedResponse, resp)
	}
	return ws.Width, ws.Height, nil
}

// RegisterGradient stores g and returns its pattern index.
func (c *Client) RegisterGradient(g Gradient) (int, error) {
	return c.patternCall(RegisterGradient{Gradient: g})
}

// SaveAsTile finishes a tile capture and returns its pattern index.
func (c *Client) SaveAsTile(req SaveAsTile) (int, error) {
	return c.patternCall(req)
}

func (c *Client) patternCall(r Request) (int, error) {
	resp, err := c.Call(r)
	if err != nil {
		return 0, err
	}
	pr, ok := resp.(PatternRegistered)
	if !ok {
		return 0, fmt.Errorf("%s: %w: %T", r.Kind(), ErrUnexpectedResponse, resp)
	}
	return pr.Index, nil
}

// Close closes the underlying channel.
func (c *Client) Close() error {
	return c.ch.Close()
}
