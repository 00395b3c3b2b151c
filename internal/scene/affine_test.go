package scene

import (
	"math"
	"sync"
	"testing"

	"github.com/opd-ai/go-vellogd/internal/protocol"
)

func near(a, b protocol.Point) bool {
	return math.Abs(a.X-b.X) < 1e-9 && math.Abs(a.Y-b.Y) < 1e-9
}

func TestFlipYMapsCanvasEdges(t *testing.T) {
	for _, h := range []float64{1, 2, 480, 4096} {
		f := FlipY(h)
		if got := f.Apply(protocol.Pt(7, 0)); !near(got, protocol.Pt(7, h)) {
			t.Errorf("H=%v: (7,0) -> %v, want (7,%v)", h, got, h)
		}
		if got := f.Apply(protocol.Pt(7, h)); !near(got, protocol.Pt(7, 0)) {
			t.Errorf("H=%v: (7,H) -> %v, want (7,0)", h, got)
		}
	}
}

func TestAffineThenOrder(t *testing.T) {
	// Scale first, then translate.
	a := Scale(2, 3).Then(Translate(10, 20))
	if got := a.Apply(protocol.Pt(1, 1)); !near(got, protocol.Pt(12, 23)) {
		t.Errorf("scale then translate = %v, want (12,23)", got)
	}

	// Translate first, then scale.
	b := Translate(10, 20).Then(Scale(2, 3))
	if got := b.Apply(protocol.Pt(1, 1)); !near(got, protocol.Pt(22, 63)) {
		t.Errorf("translate then scale = %v, want (22,63)", got)
	}
}

func TestRotateQuarterTurn(t *testing.T) {
	got := Rotate(math.Pi / 2).Apply(protocol.Pt(1, 0))
	if !near(got, protocol.Pt(0, 1)) {
		t.Errorf("rotate (1,0) by pi/2 = %v, want (0,1)", got)
	}
}

func TestAffineInvert(t *testing.T) {
	a := Scale(2, -1).Then(Rotate(0.3)).Then(Translate(5, -7))
	inv, ok := a.Invert()
	if !ok {
		t.Fatal("transform should be invertible")
	}
	p := protocol.Pt(3, 4)
	if got := inv.Apply(a.Apply(p)); !near(got, p) {
		t.Errorf("inverse round trip = %v, want %v", got, p)
	}

	if _, ok := Scale(0, 1).Invert(); ok {
		t.Error("singular transform reported invertible")
	}
}

func TestScaleFactor(t *testing.T) {
	if got := FlipY(100).ScaleFactor(); got != 1 {
		t.Errorf("flip scale factor = %v, want 1", got)
	}
	if got := Scale(2, 2).Then(Rotate(1)).ScaleFactor(); math.Abs(got-2) > 1e-9 {
		t.Errorf("scale factor = %v, want 2", got)
	}
}

func TestCanvasSizeIsConsistent(t *testing.T) {
	c := NewCanvas(10, 20)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range 10000 {
			if i%2 == 0 {
				c.SetSize(30, 60)
			} else {
				c.SetSize(10, 20)
			}
		}
	}()
	for range 10000 {
		if w, h := c.Size(); h != 2*w {
			t.Fatalf("Size() = %d,%d: width and height from different updates", w, h)
		}
	}
	wg.Wait()

	c.SetSize(math.MaxUint32, 7)
	if w, h := c.Size(); w != math.MaxUint32 || h != 7 {
		t.Errorf("Size() = %d,%d, want %d,7", w, h, uint32(math.MaxUint32))
	}
}
