package scene

import (
	"errors"
	"image"
	"sync"

	"github.com/opd-ai/go-vellogd/internal/protocol"
)

// ErrStalePattern is returned for an index that was never registered or has
// been released.
var ErrStalePattern = errors.New("stale pattern index")

// PatternKind distinguishes registry entries.
type PatternKind uint8

const (
	PatternGradient PatternKind = iota
	PatternTile
)

// Tile is a rasterized scene repeated over a logical rectangle.
type Tile struct {
	// Image holds premultiplied pixels, top row first.
	Image *image.RGBA
	// Bounds is the logical rectangle the image covers.
	Bounds protocol.Rect
	Extend protocol.Extend
}

// Pattern is an immutable registry entry.
type Pattern struct {
	Kind     PatternKind
	Gradient protocol.Gradient
	Tile     *Tile
}

// Registry stores patterns under stable indices. Released slots become
// tombstones so an index never names two different patterns.
type Registry struct {
	mu    sync.RWMutex
	slots []*Pattern
	live  int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register stores p and returns its index.
func (r *Registry) Register(p Pattern) int {
	if p.Kind == PatternGradient {
		p.Gradient = p.Gradient.Clone()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots = append(r.slots, &p)
	r.live++
	return len(r.slots) - 1
}

// Get returns the pattern at index.
func (r *Registry) Get(index int) (*Pattern, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index < 0 || index >= len(r.slots) || r.slots[index] == nil {
		return nil, ErrStalePattern
	}
	return r.slots[index], nil
}

// Release drops the pattern at index.
func (r *Registry) Release(index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.slots) || r.slots[index] == nil {
		return ErrStalePattern
	}
	r.slots[index] = nil
	r.live--
	return nil
}

// Len returns the number of live patterns.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live
}

// Clear releases every pattern. Indices keep counting up.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.slots {
		r.slots[i] = nil
	}
	r.live = 0
}
