package headless

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.avi")
	rec, err := NewRecorder(path, 8, 8, 10)
	if err != nil {
		t.Fatalf("NewRecorder error = %v", err)
	}
	clock := time.Unix(0, 0)
	rec.now = func() time.Time { return clock }

	frame := image.NewRGBA(image.Rect(0, 0, 8, 8))
	if err := rec.AddFrame(frame); err != nil {
		t.Fatal(err)
	}
	// Too soon after the previous frame.
	clock = clock.Add(10 * time.Millisecond)
	if err := rec.AddFrame(frame); err != nil {
		t.Fatal(err)
	}
	// Wrong size.
	clock = clock.Add(time.Second)
	if err := rec.AddFrame(image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	if err := rec.AddFrame(frame); err != nil {
		t.Fatal(err)
	}

	frames, dropped := rec.Stats()
	if frames != 2 || dropped != 2 {
		t.Errorf("Stats() = %d,%d, want 2,2", frames, dropped)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}
	if err := rec.AddFrame(frame); !errors.Is(err, ErrRecorderClosed) {
		t.Errorf("AddFrame after Close = %v, want ErrRecorderClosed", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Errorf("recording missing or empty: %v", err)
	}
}
