package headless

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/opd-ai/go-vellogd/internal/engine"
	"github.com/opd-ai/go-vellogd/internal/protocol"
	"github.com/opd-ai/go-vellogd/internal/scene"
)

func opaqueFrame(w, h uint32, c protocol.Color) scene.Frame {
	d := scene.NewDrawer(scene.NewCanvas(w, h), nil, nil)
	d.Rect(protocol.DrawRect{
		P0:   protocol.Pt(-1, -1),
		P1:   protocol.Pt(float64(w)+1, float64(h)+1),
		Fill: &protocol.FillParams{Brush: protocol.SolidBrush(c)},
	})
	return d.Frame()
}

func TestStripPadding(t *testing.T) {
	tex, err := engine.NewTexture(3, 2)
	if err != nil {
		t.Fatal(err)
	}
	for y := 0; y < 2; y++ {
		for i := 0; i < tex.Stride; i++ {
			tex.Pix[y*tex.Stride+i] = byte(y + 1)
		}
	}
	got := StripPadding(tex)
	if len(got) != 3*2*4 {
		t.Fatalf("len = %d, want 24", len(got))
	}
	for i, b := range got {
		want := byte(i/12 + 1)
		if b != want {
			t.Fatalf("byte %d = %d, want %d", i, b, want)
		}
	}
}

func TestEncodePNGFullCanvas(t *testing.T) {
	fill := protocol.Color{R: 30, G: 144, B: 255, A: 255}
	sizes := []struct{ w, h int }{
		{1, 1}, {2, 2}, {480, 480}, {4096, 4096},
		{480, 3}, {4096, 1}, {1, 4096},
	}
	r := New(nil)

	for _, sz := range sizes {
		if testing.Short() && sz.w*sz.h > 1<<20 {
			continue
		}
		frame := opaqueFrame(uint32(sz.w), uint32(sz.h), fill)
		tex, err := r.RenderTexture(frame, 0, 0)
		if err != nil {
			t.Fatalf("%dx%d: RenderTexture error = %v", sz.w, sz.h, err)
		}
		var buf bytes.Buffer
		if err := EncodePNG(&buf, tex); err != nil {
			t.Fatal(err)
		}
		img, err := png.Decode(&buf)
		if err != nil {
			t.Fatalf("%dx%d: decode error = %v", sz.w, sz.h, err)
		}
		if img.Bounds() != image.Rect(0, 0, sz.w, sz.h) {
			t.Fatalf("bounds = %v", img.Bounds())
		}
		for y := 0; y < sz.h; y++ {
			for x := 0; x < sz.w; x++ {
				r, g, b, a := img.At(x, y).RGBA()
				if r>>8 != 30 || g>>8 != 144 || b>>8 != 255 || a>>8 != 255 {
					t.Fatalf("%dx%d: pixel (%d,%d) = %d,%d,%d,%d", sz.w, sz.h, x, y, r>>8, g>>8, b>>8, a>>8)
				}
			}
		}
	}
}

func TestSavePNGScalesToRequestedSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.png")
	frame := opaqueFrame(10, 10, protocol.Black)
	if err := New(nil).SavePNG(path, frame, 20, 5); err != nil {
		t.Fatalf("SavePNG error = %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 20 || cfg.Height != 5 {
		t.Errorf("size = %dx%d, want 20x5", cfg.Width, cfg.Height)
	}
}

func TestRasterizerBorrowsLiveRenderer(t *testing.T) {
	ctx := engine.NewContext()
	defer ctx.Close()
	live, err := ctx.Renderer(0)
	if err != nil {
		t.Fatal(err)
	}
	r := New(func() *engine.Renderer { return live })
	if _, err := r.RenderTexture(opaqueFrame(4, 4, protocol.White), 0, 0); err != nil {
		t.Fatal(err)
	}
	if live.Frames() != 1 {
		t.Errorf("live renderer frames = %d, want 1", live.Frames())
	}
}

func TestRenderTextureRejectsEmptyFrame(t *testing.T) {
	if _, err := New(nil).RenderTexture(scene.Frame{}, 0, 0); err == nil {
		t.Error("RenderTexture of a zero-size frame succeeded")
	}
}
