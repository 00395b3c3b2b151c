package engine

import (
	"math"

	"github.com/gogpu/gg"

	"github.com/opd-ai/go-vellogd/internal/protocol"
	"github.com/opd-ai/go-vellogd/internal/scene"
)

func toRGBA(c protocol.Color) gg.RGBA {
	return gg.RGBA{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
		A: float64(c.A) / 255,
	}
}

func toMatrix(a scene.Affine) gg.Matrix {
	return gg.Matrix{A: a.A, B: a.B, C: a.C, D: a.D, E: a.E, F: a.F}
}

func toExtendMode(e protocol.Extend) gg.ExtendMode {
	switch e {
	case protocol.ExtendRepeat:
		return gg.ExtendRepeat
	case protocol.ExtendReflect:
		return gg.ExtendReflect
	default:
		return gg.ExtendPad
	}
}

// brushFor converts a resolved paint into a gg brush sampling device
// coordinates. extra is applied after the paint's own transform.
func brushFor(p scene.Paint, extra scene.Affine) gg.Brush {
	if p.Kind != scene.PaintPattern || p.Pattern == nil {
		return gg.Solid(toRGBA(p.Color))
	}
	tr := p.Transform.Then(extra)
	switch p.Pattern.Kind {
	case scene.PatternTile:
		return tileBrush(p.Pattern.Tile, tr)
	default:
		return GradientBrush(p.Pattern.Gradient, tr)
	}
}

// GradientBrush maps a logical gradient through tr into a device-space
// brush.
func GradientBrush(g protocol.Gradient, tr scene.Affine) gg.Brush {
	p0 := tr.Apply(protocol.Pt(g.X0, g.Y0))
	p1 := tr.Apply(protocol.Pt(g.X1, g.Y1))

	var (
		brush gg.Brush
		param func(x, y float64) float64
	)
	switch g.Kind {
	case protocol.GradientRadial:
		s := tr.ScaleFactor()
		r0, r1 := g.R0*s, g.R1*s
		b := gg.NewRadialGradientBrush(p1.X, p1.Y, r0, r1).SetFocus(p0.X, p0.Y)
		for _, st := range g.Stops {
			b.AddColorStop(st.Offset, toRGBA(st.Color))
		}
		b.SetExtend(toExtendMode(g.Extend))
		brush = b
		param = func(x, y float64) float64 {
			if r1 == r0 {
				return 0
			}
			return (math.Hypot(x-p1.X, y-p1.Y) - r0) / (r1 - r0)
		}
	default:
		b := gg.NewLinearGradientBrush(p0.X, p0.Y, p1.X, p1.Y)
		for _, st := range g.Stops {
			b.AddColorStop(st.Offset, toRGBA(st.Color))
		}
		b.SetExtend(toExtendMode(g.Extend))
		brush = b
		dx, dy := p1.X-p0.X, p1.Y-p0.Y
		l2 := dx*dx + dy*dy
		param = func(x, y float64) float64 {
			if l2 == 0 {
				return 0
			}
			return ((x-p0.X)*dx + (y-p0.Y)*dy) / l2
		}
	}

	if g.Extend != protocol.ExtendNone {
		return brush
	}
	return gg.NewCustomBrush(func(x, y float64) gg.RGBA {
		if t := param(x, y); t < 0 || t > 1 {
			return gg.Transparent
		}
		return brush.ColorAt(x, y)
	}).WithName("gradient-none")
}

// wrap maps a coordinate into [0,n) according to the extend mode. The
// second result is false when the sample lies outside an ExtendNone tile.
func wrap(v float64, n int, e protocol.Extend) (int, bool) {
	fn := float64(n)
	switch e {
	case protocol.ExtendRepeat:
		v = math.Mod(v, fn)
		if v < 0 {
			v += fn
		}
	case protocol.ExtendReflect:
		period := 2 * fn
		v = math.Mod(v, period)
		if v < 0 {
			v += period
		}
		if v >= fn {
			v = period - v - 1e-9
		}
	case protocol.ExtendNone:
		if v < 0 || v >= fn {
			return 0, false
		}
	}
	i := int(math.Floor(v))
	return min(max(i, 0), n-1), true
}

func tileBrush(t *scene.Tile, tr scene.Affine) gg.Brush {
	inv, ok := tr.Invert()
	if t == nil || t.Image == nil || !ok || t.Bounds.Width() <= 0 || t.Bounds.Height() <= 0 {
		return gg.Solid(gg.Transparent)
	}
	img := t.Image
	iw, ih := img.Rect.Dx(), img.Rect.Dy()
	if iw == 0 || ih == 0 {
		return gg.Solid(gg.Transparent)
	}
	sx := float64(iw) / t.Bounds.Width()
	sy := float64(ih) / t.Bounds.Height()

	return gg.NewCustomBrush(func(x, y float64) gg.RGBA {
		l := inv.Apply(protocol.Pt(x, y))
		u := (l.X - t.Bounds.Min.X) * sx
		v := (t.Bounds.Max.Y - l.Y) * sy
		ix, okx := wrap(u, iw, t.Extend)
		iy, oky := wrap(v, ih, t.Extend)
		if !okx || !oky {
			return gg.Transparent
		}
		i := img.PixOffset(img.Rect.Min.X+ix, img.Rect.Min.Y+iy)
		c := gg.RGBA{
			R: float64(img.Pix[i]) / 255,
			G: float64(img.Pix[i+1]) / 255,
			B: float64(img.Pix[i+2]) / 255,
			A: float64(img.Pix[i+3]) / 255,
		}
		return c.Unpremultiply()
	}).WithName("tile")
}

// imageBrush samples a straight-alpha raster placed by tr, which maps
// image pixel space to device space.
func imageBrush(im *scene.Image, tr scene.Affine) gg.Brush {
	inv, ok := tr.Invert()
	if !ok || im.Stride <= 0 {
		return gg.Solid(gg.Transparent)
	}
	cols := im.Stride / 4
	rows := len(im.Pix) / im.Stride

	px := func(x, y int) gg.RGBA {
		x = min(max(x, 0), cols-1)
		y = min(max(y, 0), rows-1)
		i := y*im.Stride + x*4
		return gg.RGBA{
			R: float64(im.Pix[i]) / 255,
			G: float64(im.Pix[i+1]) / 255,
			B: float64(im.Pix[i+2]) / 255,
			A: float64(im.Pix[i+3]) / 255,
		}.Premultiply()
	}

	return gg.NewCustomBrush(func(x, y float64) gg.RGBA {
		p := inv.Apply(protocol.Pt(x, y))
		if !im.Interpolate {
			return px(int(math.Floor(p.X)), int(math.Floor(p.Y))).Unpremultiply()
		}
		fx := p.X - 0.5 + im.Offset
		fy := p.Y - 0.5 + im.Offset
		x0, y0 := math.Floor(fx), math.Floor(fy)
		tx, ty := fx-x0, fy-y0
		ix, iy := int(x0), int(y0)
		top := px(ix, iy).Lerp(px(ix+1, iy), tx)
		bottom := px(ix, iy+1).Lerp(px(ix+1, iy+1), tx)
		return top.Lerp(bottom, ty).Unpremultiply()
	}).WithName("image")
}
