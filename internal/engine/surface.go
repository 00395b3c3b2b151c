package engine

import (
	"image"
	"sync"
)

// RowAlignment is the byte alignment of texture rows.
const RowAlignment = 256

// PaddedStride returns the row length in bytes of an RGBA8 texture of the
// given width.
func PaddedStride(width int) int {
	unpadded := width * 4
	return (unpadded + RowAlignment - 1) / RowAlignment * RowAlignment
}

// Texture is an off-screen RGBA8 target. Pixels are premultiplied, rows
// start every Stride bytes and may carry trailing padding.
type Texture struct {
	Width, Height int
	Stride        int
	Pix           []byte
}

// NewTexture allocates a texture.
func NewTexture(width, height int) (*Texture, error) {
	if err := checkSize(width, height); err != nil {
		return nil, err
	}
	stride := PaddedStride(width)
	return &Texture{Width: width, Height: height, Stride: stride, Pix: make([]byte, stride*height)}, nil
}

func (t *Texture) load(img *image.RGBA) {
	row := t.Width * 4
	for y := 0; y < t.Height; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+row]
		copy(t.Pix[y*t.Stride:y*t.Stride+row], src)
	}
}

// Surface is the presentable target of a window. The last presented frame
// is kept for the toolkit to blit.
type Surface struct {
	device int

	mu       sync.RWMutex
	width    int
	height   int
	frame    *image.RGBA
	presents uint64
}

// Size returns the surface dimensions.
func (s *Surface) Size() (width, height int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.width, s.height
}

// Device returns the index of the device the surface belongs to.
func (s *Surface) Device() int {
	return s.device
}

// Resize changes the surface dimensions in place. The previous frame is
// dropped.
func (s *Surface) Resize(width, height int) error {
	if err := checkSize(width, height); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
	s.frame = nil
	return nil
}

// Frame returns the last presented frame, or nil.
func (s *Surface) Frame() *image.RGBA {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}

// Presents returns the number of frames presented.
func (s *Surface) Presents() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.presents
}

func (s *Surface) present(img *image.RGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = img
	s.presents++
}
