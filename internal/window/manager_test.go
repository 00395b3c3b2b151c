package window

import (
	"errors"
	"image"
	"testing"

	"github.com/opd-ai/go-vellogd/internal/protocol"
	"github.com/opd-ai/go-vellogd/internal/scene"
)

func newTestManager(t *testing.T, tk *HeadlessToolkit) (*Manager, *scene.Drawer) {
	t.Helper()
	d := scene.NewDrawer(scene.NewCanvas(64, 48), nil, nil)
	m := NewManager(Config{
		Toolkit: tk,
		Drawer:  d,
		Options: Options{Title: "test", Width: 64, Height: 48},
	})
	t.Cleanup(func() { _ = m.Engine().Close() })
	return m, d
}

func redCircle() protocol.DrawCircle {
	return protocol.DrawCircle{
		Center: protocol.Pt(10, 10),
		Radius: 5,
		Fill:   &protocol.FillParams{Brush: protocol.SolidBrush(protocol.Color{R: 255, A: 255})},
	}
}

func TestNewWindowActivates(t *testing.T) {
	tk := NewHeadlessToolkit()
	tk.Scale = 2
	m, d := newTestManager(t, tk)

	if m.State() != Suspended {
		t.Fatalf("initial state = %v, want suspended", m.State())
	}
	if err := m.NewWindow(); err != nil {
		t.Fatalf("NewWindow() error = %v", err)
	}
	if m.State() != Active {
		t.Fatalf("state = %v, want active", m.State())
	}
	w, h, err := m.Sizes()
	if err != nil || w != 128 || h != 96 {
		t.Errorf("Sizes() = %d,%d,%v, want 128,96,nil", w, h, err)
	}
	if cw, ch := d.Canvas().Size(); cw != 128 || ch != 96 {
		t.Errorf("canvas size = %d,%d, want materialized 128,96", cw, ch)
	}
	if tk.Last().Title() != "test" {
		t.Errorf("title = %q", tk.Last().Title())
	}
}

func TestNewWindowWhileActiveOnlyResetsScene(t *testing.T) {
	tk := NewHeadlessToolkit()
	m, d := newTestManager(t, tk)
	if err := m.NewWindow(); err != nil {
		t.Fatal(err)
	}
	d.Circle(redCircle())
	if d.Len() == 0 {
		t.Fatal("circle not recorded")
	}
	if err := m.NewWindow(); err != nil {
		t.Fatal(err)
	}
	if d.Len() != 0 {
		t.Errorf("scene len = %d after NewWindow, want 0", d.Len())
	}
	if tk.Created() != 1 {
		t.Errorf("windows created = %d, want 1", tk.Created())
	}
}

func TestSuspendResumeReusesWindow(t *testing.T) {
	tk := NewHeadlessToolkit()
	m, _ := newTestManager(t, tk)
	if err := m.NewWindow(); err != nil {
		t.Fatal(err)
	}
	first := tk.Last()

	m.Suspend()
	if m.State() != Suspended {
		t.Fatalf("state after Suspend = %v", m.State())
	}
	if w, h, err := m.Sizes(); w != 0 || h != 0 || err != nil {
		t.Errorf("suspended Sizes() = %d,%d,%v, want zero", w, h, err)
	}
	if err := m.HandleEvent(Event{Kind: EventResumed}); err != nil {
		t.Fatal(err)
	}
	if tk.Created() != 1 || tk.Last() != first {
		t.Error("resume created a new window instead of reusing the cached one")
	}
}

func TestSuspendResumeKeepsScene(t *testing.T) {
	tk := NewHeadlessToolkit()
	m, d := newTestManager(t, tk)
	if err := m.NewWindow(); err != nil {
		t.Fatal(err)
	}
	d.Circle(redCircle())
	before := d.Len()
	if before == 0 {
		t.Fatal("circle not recorded")
	}

	if err := m.HandleEvent(Event{Kind: EventSuspended}); err != nil {
		t.Fatal(err)
	}
	if err := m.HandleEvent(Event{Kind: EventResumed}); err != nil {
		t.Fatal(err)
	}
	if m.State() != Active {
		t.Fatalf("state after resume = %v, want Active", m.State())
	}
	if got := d.Len(); got != before {
		t.Errorf("scene len = %d after resume, want %d", got, before)
	}
	if !d.NeedsRedraw() {
		t.Error("resumed window should present the kept scene")
	}
}

func TestCloseDropsWindow(t *testing.T) {
	tk := NewHeadlessToolkit()
	m, _ := newTestManager(t, tk)
	if err := m.NewWindow(); err != nil {
		t.Fatal(err)
	}
	win := tk.Last()
	if err := m.HandleEvent(Event{Kind: EventCloseRequested}); err != nil {
		t.Fatal(err)
	}
	if !win.Closed() {
		t.Error("window not closed")
	}
	if err := m.NewWindow(); err != nil {
		t.Fatal(err)
	}
	if tk.Created() != 2 {
		t.Errorf("windows created = %d, want 2 after close", tk.Created())
	}
}

func TestRedrawClearsFlagOnlyOnSuccess(t *testing.T) {
	tk := NewHeadlessToolkit()
	m, d := newTestManager(t, tk)
	if err := m.NewWindow(); err != nil {
		t.Fatal(err)
	}
	d.Circle(redCircle())

	win := tk.Last()
	win.FailPaint = errors.New("lost surface")
	if ok, err := m.Redraw(); ok || err == nil {
		t.Fatalf("Redraw() = %v,%v, want failure", ok, err)
	}
	if !d.NeedsRedraw() {
		t.Fatal("failed present cleared the redraw flag")
	}

	win.FailPaint = nil
	ok, err := m.Redraw()
	if !ok || err != nil {
		t.Fatalf("Redraw() = %v,%v, want success", ok, err)
	}
	if d.NeedsRedraw() {
		t.Error("redraw flag still set after present")
	}
	if ok, _ := m.Redraw(); ok {
		t.Error("Redraw presented an unchanged scene")
	}
	if win.Presents() != 1 {
		t.Errorf("presents = %d, want 1", win.Presents())
	}
	if win.Frame() == nil {
		t.Error("no frame presented")
	}
}

func TestPresentHook(t *testing.T) {
	tk := NewHeadlessToolkit()
	m, _ := newTestManager(t, tk)
	calls := 0
	m.OnPresent(func(*image.RGBA) { calls++ })
	if err := m.Present(); !errors.Is(err, ErrNotActive) {
		t.Errorf("Present() while suspended = %v, want ErrNotActive", err)
	}
	if err := m.NewWindow(); err != nil {
		t.Fatal(err)
	}
	if err := m.Present(); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("hook calls = %d, want 1", calls)
	}
}

func TestResizeRecomputesTransform(t *testing.T) {
	tk := NewHeadlessToolkit()
	m, d := newTestManager(t, tk)

	// Resizing while suspended is ignored.
	if err := m.Resize(10, 10); err != nil {
		t.Fatal(err)
	}
	if _, h := d.Canvas().Size(); h != 48 {
		t.Errorf("suspended resize changed height to %d", h)
	}

	if err := m.NewWindow(); err != nil {
		t.Fatal(err)
	}
	tk.Last().Resize(200, 100)
	// The sink is nil in this test, so apply the event directly.
	if err := m.HandleEvent(Event{Kind: EventResized, Width: 200, Height: 100}); err != nil {
		t.Fatal(err)
	}
	if got := d.Canvas().Transform().Apply(protocol.Pt(0, 0)); got.Y != 100 {
		t.Errorf("transform maps y=0 to %v, want 100", got.Y)
	}
	if w, h, _ := m.Sizes(); w != 200 || h != 100 {
		t.Errorf("Sizes() = %d,%d, want 200,100", w, h)
	}
}

func TestDegradeOnToolkitFailure(t *testing.T) {
	tk := NewHeadlessToolkit()
	tk.Fail = errors.New("no display")
	m, _ := newTestManager(t, tk)

	if err := m.NewWindow(); err == nil {
		t.Fatal("NewWindow() succeeded without a display")
	}
	if m.State() != Suspended {
		t.Errorf("state = %v, want suspended", m.State())
	}
	if m.Degraded() == nil {
		t.Error("Degraded() = nil")
	}
	if _, _, err := m.Sizes(); err == nil {
		t.Error("first query after degradation did not fail")
	}
	if _, _, err := m.Sizes(); err != nil {
		t.Errorf("second query error = %v, want nil", err)
	}
}

func TestSetTitle(t *testing.T) {
	tk := NewHeadlessToolkit()
	m, _ := newTestManager(t, tk)
	if err := m.NewWindow(); err != nil {
		t.Fatal(err)
	}
	m.SetTitle("renamed")
	if tk.Last().Title() != "renamed" {
		t.Errorf("title = %q, want renamed", tk.Last().Title())
	}
}
