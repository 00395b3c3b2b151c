package engine

import (
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gg"

	"github.com/opd-ai/go-vellogd/internal/protocol"
	"github.com/opd-ai/go-vellogd/internal/scene"
)

// Renderer rasterizes frames on one device. It keeps its drawing context
// between frames and reallocates it only when the target size changes.
type Renderer struct {
	device Device

	mu     sync.Mutex
	dc     *gg.Context
	frames uint64
}

// Device returns the device the renderer is bound to.
func (r *Renderer) Device() Device {
	return r.device
}

// Frames returns the number of frames rendered.
func (r *Renderer) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Rasterize paints base and replays cmds into a width x height image.
// extra maps scene device coordinates to the output pixels. The result
// holds premultiplied pixels and is owned by the caller.
func (r *Renderer) Rasterize(cmds []scene.Command, base protocol.Color, width, height int, extra scene.Affine) (*image.RGBA, error) {
	if err := checkSize(width, height); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dc == nil || r.dc.Width() != width || r.dc.Height() != height {
		if r.dc != nil {
			_ = r.dc.Close()
		}
		r.dc = gg.NewContext(width, height)
	}
	r.dc.ResetClip()
	r.dc.Identity()
	r.dc.ClearWithColor(toRGBA(base).Premultiply())
	if err := Replay(r.dc, cmds, extra); err != nil {
		return nil, err
	}
	r.frames++

	img, ok := r.dc.Image().(*image.RGBA)
	if !ok {
		return nil, fmt.Errorf("unexpected image type %T", r.dc.Image())
	}
	return img, nil
}

// RenderToSurface renders frame at the surface's size and presents it.
func (r *Renderer) RenderToSurface(frame scene.Frame, s *Surface) error {
	w, h := s.Size()
	img, err := r.Rasterize(frame.Commands, frame.Base, w, h, scaleBetween(frame, w, h))
	if err != nil {
		return fmt.Errorf("render to surface: %w", err)
	}
	s.present(img)
	return nil
}

// RenderToTexture renders frame at the texture's size. The frame is scaled
// when its canvas size differs from the texture.
func (r *Renderer) RenderToTexture(frame scene.Frame, t *Texture) error {
	img, err := r.Rasterize(frame.Commands, frame.Base, t.Width, t.Height, scaleBetween(frame, t.Width, t.Height))
	if err != nil {
		return fmt.Errorf("render to texture: %w", err)
	}
	t.load(img)
	return nil
}

// Close releases the drawing context.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dc == nil {
		return nil
	}
	err := r.dc.Close()
	r.dc = nil
	return err
}

func scaleBetween(frame scene.Frame, w, h int) scene.Affine {
	if frame.Width == 0 || frame.Height == 0 {
		return scene.Identity
	}
	return scene.Scale(float64(w)/float64(frame.Width), float64(h)/float64(frame.Height))
}
