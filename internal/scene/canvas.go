package scene

import (
	"sync"
	"sync/atomic"
)

// Canvas holds the logical canvas size and the logical-to-device transform.
// Size reads never wait on the transform lock. Width and height share one
// word so a reader never pairs a new width with an old height.
type Canvas struct {
	size atomic.Uint64

	mu        sync.Mutex
	transform Affine
}

// NewCanvas returns a canvas of the given size.
func NewCanvas(width, height uint32) *Canvas {
	c := &Canvas{}
	c.SetSize(width, height)
	return c
}

// SetSize stores the size and recomputes the transform.
func (c *Canvas) SetSize(width, height uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.size.Store(uint64(width)<<32 | uint64(height))
	c.transform = FlipY(float64(height))
}

// Size returns the current width and height.
func (c *Canvas) Size() (width, height uint32) {
	v := c.size.Load()
	return uint32(v >> 32), uint32(v)
}

// Transform returns the logical-to-device transform.
func (c *Canvas) Transform() Affine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transform
}
