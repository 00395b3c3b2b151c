// Package engine adapts the gg vector rasterizer to the render model the
// server expects: a context owning devices, one lazily created renderer per
// device, presentable surfaces and row-padded textures.
package engine

import (
	"errors"
	"fmt"
	"sync"
)

// MaxDimension is the largest surface or texture edge accepted.
const MaxDimension = 16384

var (
	// ErrInvalidSize is returned for zero or oversized dimensions.
	ErrInvalidSize = errors.New("invalid surface size")
	// ErrNoDevice is returned for an unknown device index.
	ErrNoDevice = errors.New("no such render device")
	// ErrClosed is returned once the context is closed.
	ErrClosed = errors.New("render context closed")
)

// Device describes a rendering device.
type Device struct {
	Index int
	Name  string
}

// Context owns the devices and their renderers. It is safe for concurrent
// use, but a Renderer itself is not.
type Context struct {
	mu        sync.Mutex
	devices   []Device
	renderers map[int]*Renderer
	closed    bool
}

// NewContext returns a context with a single software device.
func NewContext() *Context {
	return &Context{
		devices:   []Device{{Index: 0, Name: "gg-software"}},
		renderers: make(map[int]*Renderer),
	}
}

// Devices lists the available devices.
func (c *Context) Devices() []Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Device(nil), c.devices...)
}

// Renderer returns the renderer bound to device index, creating it on
// first use.
func (c *Context) Renderer(index int) (*Renderer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if index < 0 || index >= len(c.devices) {
		return nil, fmt.Errorf("device %d: %w", index, ErrNoDevice)
	}
	if r, ok := c.renderers[index]; ok {
		return r, nil
	}
	r := &Renderer{device: c.devices[index]}
	c.renderers[index] = r
	return r, nil
}

// CreateSurface allocates a presentable surface on the first device.
func (c *Context) CreateSurface(width, height int) (*Surface, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	if err := checkSize(width, height); err != nil {
		return nil, err
	}
	return &Surface{device: 0, width: width, height: height}, nil
}

// Close releases every renderer.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	var errs []error
	for i, r := range c.renderers {
		errs = append(errs, r.Close())
		delete(c.renderers, i)
	}
	return errors.Join(errs...)
}

func checkSize(width, height int) error {
	if width <= 0 || height <= 0 || width > MaxDimension || height > MaxDimension {
		return fmt.Errorf("%dx%d: %w", width, height, ErrInvalidSize)
	}
	return nil
}
