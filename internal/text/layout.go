package text

import (
	"errors"
	"math"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/opd-ai/go-vellogd/internal/protocol"
)

// maxCachedOutlines bounds the outline cache; it is dropped wholesale when
// full.
const maxCachedOutlines = 4096

// Glyph is a positioned glyph. X and Y are the pen position in a y-down
// layout space whose origin is the top-left of the first line.
type Glyph struct {
	ID   uint32
	X, Y float64
}

// Line is one laid-out line of text.
type Line struct {
	Glyphs   []Glyph
	Width    float64
	Baseline float64
}

// Layout is the result of laying out a string.
type Layout struct {
	Font    FontRef
	Size    float64
	Lines   []Line
	Width   float64
	Ascent  float64
	Descent float64
}

// Metric describes a single character.
type Metric struct {
	Ascent, Descent, Width float64
}

type outlineKey struct {
	font FontRef
	id   uint32
	ppem fixed.Int26_6
}

// Layouter lays out text and extracts glyph outlines. It is safe for
// concurrent use.
type Layouter struct {
	mu       sync.Mutex
	buf      sfnt.Buffer
	fonts    map[FontRef]*sfnt.Font
	outlines map[outlineKey]protocol.Path
}

// NewLayouter returns a Layouter. Fonts are parsed on first use.
func NewLayouter() *Layouter {
	return &Layouter{
		fonts:    make(map[FontRef]*sfnt.Font),
		outlines: make(map[outlineKey]protocol.Path),
	}
}

func (l *Layouter) font(ref FontRef) (*sfnt.Font, error) {
	if f, ok := l.fonts[ref]; ok {
		return f, nil
	}
	f, err := parseFont(ref)
	if err != nil {
		return nil, err
	}
	l.fonts[ref] = f
	return f, nil
}

func toPPEM(size float64) fixed.Int26_6 {
	return fixed.Int26_6(size*64 + 0.5)
}

func fromFixed(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

// Layout lays s out at size, one line per '\n'. lineHeight is a multiple of
// size; zero uses the font's own line spacing.
func (l *Layouter) Layout(s string, size, lineHeight float64, family string, face int) (Layout, error) {
	ref := Resolve(family, face)
	out := Layout{Font: ref, Size: size}
	if size <= 0 {
		return out, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.font(ref)
	if err != nil {
		return out, err
	}
	ppem := toPPEM(size)
	m, err := f.Metrics(&l.buf, ppem, font.HintingNone)
	if err != nil {
		return out, err
	}
	out.Ascent = fromFixed(m.Ascent)
	out.Descent = fromFixed(m.Descent)

	advance := fromFixed(m.Height)
	if lineHeight > 0 {
		advance = size * lineHeight
	}

	for i, text := range strings.Split(s, "\n") {
		line := Line{Baseline: out.Ascent + float64(i)*advance}
		var pen fixed.Int26_6
		var prev sfnt.GlyphIndex
		for j, r := range text {
			idx, err := f.GlyphIndex(&l.buf, r)
			if err != nil {
				return out, err
			}
			if j > 0 {
				if k, err := f.Kern(&l.buf, prev, idx, ppem, font.HintingNone); err == nil {
					pen += k
				} else if !errors.Is(err, sfnt.ErrNotFound) {
					return out, err
				}
			}
			line.Glyphs = append(line.Glyphs, Glyph{ID: uint32(idx), X: fromFixed(pen), Y: line.Baseline})
			adv, err := f.GlyphAdvance(&l.buf, idx, ppem, font.HintingNone)
			if err != nil {
				return out, err
			}
			pen += adv
			prev = idx
		}
		line.Width = fromFixed(pen)
		out.Width = max(out.Width, line.Width)
		out.Lines = append(out.Lines, line)
	}
	return out, nil
}

// TextWidth returns the width of the widest line of s.
func (l *Layouter) TextWidth(s string, size float64, family string, face int) (float64, error) {
	lay, err := l.Layout(s, size, 0, family, face)
	if err != nil {
		return 0, err
	}
	return lay.Width, nil
}

// CharMetric returns the ascent, descent and advance of r.
func (l *Layouter) CharMetric(r rune, size float64, family string, face int) (Metric, error) {
	lay, err := l.Layout(string(r), size, 0, family, face)
	if err != nil {
		return Metric{}, err
	}
	return Metric{Ascent: lay.Ascent, Descent: lay.Descent, Width: lay.Width}, nil
}

// Outline returns the outline of glyph id at size. The path is in y-down
// coordinates relative to the pen position on the baseline. Glyphs without
// an outline yield an empty path.
func (l *Layouter) Outline(ref FontRef, id uint32, size float64) (protocol.Path, error) {
	ppem := toPPEM(size)
	key := outlineKey{font: ref, id: id, ppem: ppem}

	l.mu.Lock()
	defer l.mu.Unlock()

	if p, ok := l.outlines[key]; ok {
		return p, nil
	}
	f, err := l.font(ref)
	if err != nil {
		return protocol.Path{}, err
	}
	if int(id) >= f.NumGlyphs() {
		return protocol.Path{}, nil
	}

	segs, err := f.LoadGlyph(&l.buf, sfnt.GlyphIndex(id), ppem, nil)
	if err != nil {
		return protocol.Path{}, err
	}
	p := pathFromSegments(segs)

	if len(l.outlines) >= maxCachedOutlines {
		clear(l.outlines)
	}
	l.outlines[key] = p
	return p, nil
}

func pt(p fixed.Point26_6) protocol.Point {
	return protocol.Pt(fromFixed(p.X), fromFixed(p.Y))
}

func pathFromSegments(segs sfnt.Segments) protocol.Path {
	var p protocol.Path
	open := false
	for _, s := range segs {
		switch s.Op {
		case sfnt.SegmentOpMoveTo:
			if open {
				p.Close()
			}
			p.MoveTo(pt(s.Args[0]))
			open = true
		case sfnt.SegmentOpLineTo:
			p.LineTo(pt(s.Args[0]))
		case sfnt.SegmentOpQuadTo:
			p.QuadTo(pt(s.Args[0]), pt(s.Args[1]))
		case sfnt.SegmentOpCubeTo:
			p.CubicTo(pt(s.Args[0]), pt(s.Args[1]), pt(s.Args[2]))
		}
	}
	if open {
		p.Close()
	}
	return p
}

// Run returns the outlines of a whole layout as a single path, each glyph
// moved to its layout position shifted down by yOffset.
func (l *Layouter) Run(lay Layout, yOffset float64) (protocol.Path, error) {
	var run protocol.Path
	for _, line := range lay.Lines {
		for _, g := range line.Glyphs {
			o, err := l.Outline(lay.Font, g.ID, lay.Size)
			if err != nil {
				return protocol.Path{}, err
			}
			appendShifted(&run, o, g.X, g.Y+yOffset)
		}
	}
	return run, nil
}

// Glyphs returns the outlines of glyph IDs placed at the given pen
// positions, which are already in y-down device space. Each glyph is
// rotated counter-clockwise by angle radians about its own pen position.
func (l *Layouter) Glyphs(ref FontRef, ids []uint32, xs, ys []float64, size, angle float64) (protocol.Path, error) {
	var run protocol.Path
	sin, cos := math.Sincos(angle)
	n := min(len(ids), len(xs), len(ys))
	for i := 0; i < n; i++ {
		o, err := l.Outline(ref, ids[i], size)
		if err != nil {
			return protocol.Path{}, err
		}
		if angle == 0 {
			appendShifted(&run, o, xs[i], ys[i])
			continue
		}
		x0, y0 := xs[i], ys[i]
		appendMapped(&run, o, func(p protocol.Point) protocol.Point {
			return protocol.Pt(x0+cos*p.X+sin*p.Y, y0-sin*p.X+cos*p.Y)
		})
	}
	return run, nil
}

func appendShifted(dst *protocol.Path, src protocol.Path, dx, dy float64) {
	appendMapped(dst, src, func(p protocol.Point) protocol.Point {
		return protocol.Pt(p.X+dx, p.Y+dy)
	})
}

func appendMapped(dst *protocol.Path, src protocol.Path, f func(protocol.Point) protocol.Point) {
	for _, s := range src.Segments {
		if s.Op != protocol.OpClose {
			for i := range s.Points {
				s.Points[i] = f(s.Points[i])
			}
		}
		dst.Segments = append(dst.Segments, s)
	}
}
