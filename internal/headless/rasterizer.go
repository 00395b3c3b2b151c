// Package headless renders scenes off screen: PNG export, tile rasters and
// MJPEG recording of presented frames.
package headless

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"

	"github.com/opd-ai/go-vellogd/internal/engine"
	"github.com/opd-ai/go-vellogd/internal/protocol"
	"github.com/opd-ai/go-vellogd/internal/scene"
)

// RendererSource returns the renderer bound to the live window, or nil when
// no window is active.
type RendererSource func() *engine.Renderer

// Rasterizer renders off screen. It borrows the live renderer when there is
// one and otherwise uses a throwaway render context.
type Rasterizer struct {
	live RendererSource
}

// New returns a rasterizer. live may be nil.
func New(live RendererSource) *Rasterizer {
	return &Rasterizer{live: live}
}

// renderer returns a renderer and a release function.
func (r *Rasterizer) renderer() (*engine.Renderer, func(), error) {
	if r.live != nil {
		if rr := r.live(); rr != nil {
			return rr, func() {}, nil
		}
	}
	ctx := engine.NewContext()
	rr, err := ctx.Renderer(0)
	if err != nil {
		_ = ctx.Close()
		return nil, nil, err
	}
	return rr, func() { _ = ctx.Close() }, nil
}

// Rasterize replays cmds over base into a width x height premultiplied
// image owned by the caller.
func (r *Rasterizer) Rasterize(cmds []scene.Command, base protocol.Color, width, height int, extra scene.Affine) (*image.RGBA, error) {
	rr, release, err := r.renderer()
	if err != nil {
		return nil, err
	}
	defer release()
	return rr.Rasterize(cmds, base, width, height, extra)
}

// RenderTexture renders frame into a new texture of the given size. Zero
// dimensions select the frame's canvas size.
func (r *Rasterizer) RenderTexture(frame scene.Frame, width, height int) (*engine.Texture, error) {
	if width <= 0 {
		width = int(frame.Width)
	}
	if height <= 0 {
		height = int(frame.Height)
	}
	tex, err := engine.NewTexture(width, height)
	if err != nil {
		return nil, err
	}
	rr, release, err := r.renderer()
	if err != nil {
		return nil, err
	}
	defer release()
	if err := rr.RenderToTexture(frame, tex); err != nil {
		return nil, err
	}
	return tex, nil
}

// StripPadding copies the texture's rows into a tightly packed buffer.
func StripPadding(t *engine.Texture) []byte {
	row := t.Width * 4
	if t.Stride == row {
		return append([]byte(nil), t.Pix[:row*t.Height]...)
	}
	out := make([]byte, 0, row*t.Height)
	for y := 0; y < t.Height; y++ {
		out = append(out, t.Pix[y*t.Stride:y*t.Stride+row]...)
	}
	return out
}

// Image wraps the texture's unpadded pixels.
func Image(t *engine.Texture) *image.RGBA {
	return &image.RGBA{
		Pix:    StripPadding(t),
		Stride: t.Width * 4,
		Rect:   image.Rect(0, 0, t.Width, t.Height),
	}
}

// EncodePNG writes the texture as a PNG.
func EncodePNG(w io.Writer, t *engine.Texture) error {
	if err := png.Encode(w, Image(t)); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// SavePNG renders frame at the given size and writes it to path. The file
// is replaced only after encoding succeeds.
func (r *Rasterizer) SavePNG(path string, frame scene.Frame, width, height int) error {
	tex, err := r.RenderTexture(frame, width, height)
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	var buf bytes.Buffer
	if err := EncodePNG(&buf, tex); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
