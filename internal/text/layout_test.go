package text

import (
	"math"
	"testing"

	"github.com/opd-ai/go-vellogd/internal/protocol"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		family string
		face   int
		want   FontRef
	}{
		{"", FacePlain, FontRef{Family: FamilySans}},
		{"Arial", FaceBold, FontRef{Family: FamilySans, Bold: true}},
		{"mono", FaceItalic, FontRef{Family: FamilyMono, Italic: true}},
		{"Courier", FaceBoldItalic, FontRef{Family: FamilyMono, Bold: true, Italic: true}},
		{"smallcaps", FaceBold, FontRef{Family: FamilySmallCaps}},
		{"serif", FaceSymbol, FontRef{Family: FamilySans}},
	}

	for _, tt := range tests {
		t.Run(tt.family, func(t *testing.T) {
			if got := Resolve(tt.family, tt.face); got != tt.want {
				t.Errorf("Resolve(%q, %d) = %+v, want %+v", tt.family, tt.face, got, tt.want)
			}
		})
	}
}

func TestEveryFontParses(t *testing.T) {
	for _, fam := range []Family{FamilySans, FamilyMono, FamilySmallCaps} {
		for _, bold := range []bool{false, true} {
			for _, italic := range []bool{false, true} {
				ref := FontRef{Family: fam, Bold: bold, Italic: italic}
				if _, err := parseFont(ref); err != nil {
					t.Errorf("parseFont(%+v): %v", ref, err)
				}
			}
		}
	}
}

func TestLayoutLines(t *testing.T) {
	l := NewLayouter()

	lay, err := l.Layout("Hello\nWorld!", 20, 1.5, "", FacePlain)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if len(lay.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lay.Lines))
	}
	if lay.Ascent <= 0 {
		t.Errorf("ascent = %v, want positive", lay.Ascent)
	}
	if got := lay.Lines[1].Baseline - lay.Lines[0].Baseline; math.Abs(got-30) > 1e-9 {
		t.Errorf("line advance = %v, want 30", got)
	}
	if lay.Width < lay.Lines[0].Width || lay.Width < lay.Lines[1].Width {
		t.Errorf("layout width %v narrower than a line", lay.Width)
	}
	if n := len(lay.Lines[0].Glyphs); n != 5 {
		t.Errorf("first line glyphs = %d, want 5", n)
	}

	prev := -1.0
	for _, g := range lay.Lines[0].Glyphs {
		if g.X <= prev {
			t.Errorf("pen positions not increasing: %v after %v", g.X, prev)
		}
		prev = g.X
	}
}

func TestLayoutZeroSize(t *testing.T) {
	lay, err := NewLayouter().Layout("abc", 0, 1, "", FacePlain)
	if err != nil {
		t.Fatal(err)
	}
	if len(lay.Lines) != 0 || lay.Width != 0 {
		t.Errorf("zero size should produce an empty layout, got %+v", lay)
	}
}

func TestTextWidthScalesWithSize(t *testing.T) {
	l := NewLayouter()
	w10, err := l.TextWidth("mmmm", 10, "mono", FacePlain)
	if err != nil {
		t.Fatal(err)
	}
	w20, err := l.TextWidth("mmmm", 20, "mono", FacePlain)
	if err != nil {
		t.Fatal(err)
	}
	if w10 <= 0 || math.Abs(w20-2*w10) > 1 {
		t.Errorf("widths %v and %v do not scale linearly", w10, w20)
	}
}

func TestCharMetric(t *testing.T) {
	m, err := NewLayouter().CharMetric('M', 12, "", FacePlain)
	if err != nil {
		t.Fatal(err)
	}
	if m.Width <= 0 || m.Ascent <= 0 || m.Descent <= 0 {
		t.Errorf("unexpected metric %+v", m)
	}
}

func TestOutline(t *testing.T) {
	l := NewLayouter()
	lay, err := l.Layout("O ", 32, 0, "", FacePlain)
	if err != nil {
		t.Fatal(err)
	}
	glyphs := lay.Lines[0].Glyphs

	o, err := l.Outline(lay.Font, glyphs[0].ID, 32)
	if err != nil {
		t.Fatal(err)
	}
	if o.IsEmpty() {
		t.Fatal("outline of 'O' is empty")
	}
	// Glyph outlines sit above the baseline, which is negative y when y
	// points down.
	minY := 0.0
	for _, s := range o.Segments {
		if s.Op == protocol.OpMoveTo || s.Op == protocol.OpLineTo {
			minY = math.Min(minY, s.Points[0].Y)
		}
	}
	if minY >= 0 {
		t.Errorf("outline does not rise above the baseline (min y %v)", minY)
	}

	space, err := l.Outline(lay.Font, glyphs[1].ID, 32)
	if err != nil {
		t.Fatal(err)
	}
	if !space.IsEmpty() {
		t.Errorf("space should have no outline, got %d segments", len(space.Segments))
	}

	if p, err := l.Outline(lay.Font, 1<<30, 32); err != nil || !p.IsEmpty() {
		t.Errorf("out of range glyph = (%v, %v), want empty path", p, err)
	}
}

func TestGlyphsRotation(t *testing.T) {
	l := NewLayouter()
	lay, err := l.Layout("I", 40, 0, "", FacePlain)
	if err != nil {
		t.Fatal(err)
	}
	id := lay.Lines[0].Glyphs[0].ID

	upright, err := l.Glyphs(lay.Font, []uint32{id}, []float64{100}, []float64{100}, 40, 0)
	if err != nil {
		t.Fatal(err)
	}
	turned, err := l.Glyphs(lay.Font, []uint32{id}, []float64{100}, []float64{100}, 40, math.Pi/2)
	if err != nil {
		t.Fatal(err)
	}

	extent := func(p protocol.Path) (w, h float64) {
		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)
		for _, s := range p.Segments {
			if s.Op == protocol.OpClose {
				continue
			}
			pt := s.Points[0]
			minX, maxX = math.Min(minX, pt.X), math.Max(maxX, pt.X)
			minY, maxY = math.Min(minY, pt.Y), math.Max(maxY, pt.Y)
		}
		return maxX - minX, maxY - minY
	}

	uw, uh := extent(upright)
	tw, th := extent(turned)
	if uh <= uw {
		t.Fatalf("upright I should be taller than wide: %vx%v", uw, uh)
	}
	if tw <= th {
		t.Errorf("rotated I should be wider than tall: %vx%v", tw, th)
	}
}
