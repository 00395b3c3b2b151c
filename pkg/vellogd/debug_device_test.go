package vellogd

import (
	"testing"
)

func TestDebugDevice_ClipDepth(t *testing.T) {
	d := NewDebugDevice(100, 50, NopLogger())

	steps := []struct {
		from, to Point
		want     int
	}{
		{Pt(10, 10), Pt(20, 20), 1},
		{Pt(5, 5), Pt(15, 15), 2},
		{Pt(0, 0), Pt(100, 50), 1},
		// reversed corners still cover the canvas
		{Pt(100, 50), Pt(-1, -1), 0},
		{Pt(0, 0), Pt(100, 50), 0},
	}
	for i, s := range steps {
		if err := d.Clip(s.from, s.to); err != nil {
			t.Fatal(err)
		}
		if got := d.ClipDepth(); got != s.want {
			t.Errorf("step %d: depth = %d, want %d", i, got, s.want)
		}
	}
}

func TestDebugDevice_LogsCallbacks(t *testing.T) {
	rec := newRecordingLogger()
	d := NewDebugDevice(640, 480, rec)

	_ = d.Activate()
	_ = d.Polygon([]float64{1, 2, 3, 4, 5}, []float64{1, 2, 3, 4, 5}, GC{})
	_ = d.Circle(Pt(1, 1), 2, GC{})
	_ = d.Circle(Pt(2, 2), 2, GC{})

	if got := d.Calls("circle"); got != 2 {
		t.Errorf("Calls(circle) = %d, want 2", got)
	}

	entries := rec.drain()
	if len(entries) != 4 {
		t.Fatalf("got %d log entries, want 4", len(entries))
	}
	poly := entries[1]
	if poly.msg != "polygon" || poly.args[1] != "[1 2 3 ...]" {
		t.Errorf("polygon entry = %+v", poly)
	}
}

func TestDebugDevice_Queries(t *testing.T) {
	d := NewDebugDevice(640, 480, NopLogger())

	left, right, bottom, top, err := d.Size()
	if err != nil || left != 0 || right != 640 || bottom != 0 || top != 480 {
		t.Errorf("Size = %v %v %v %v %v", left, right, bottom, top, err)
	}

	w, err := d.TextWidth("anything", GC{})
	if err != nil || w != 0 {
		t.Errorf("TextWidth = %v, %v", w, err)
	}

	a, _ := d.SetPattern(Gradient{})
	b, _ := d.EndTile(0, 0, 1, 1, 0)
	if a == b {
		t.Errorf("pattern indices not unique: %d, %d", a, b)
	}

	if hold, _ := d.HoldFlush(-3); hold != 0 {
		t.Errorf("hold level = %d, want 0", hold)
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		in   []float64
		want string
	}{
		{nil, "[]"},
		{[]float64{1, 2}, "[1 2]"},
		{[]float64{1, 2, 3}, "[1 2 3]"},
		{[]float64{1.5, 2, 3, 4}, "[1.5 2 3 ...]"},
	}
	for _, tt := range tests {
		if got := preview(tt.in); got != tt.want {
			t.Errorf("preview(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
