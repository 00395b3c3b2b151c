package headless

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"github.com/icza/mjpeg"
)

// ErrRecorderClosed is returned when adding frames to a closed recorder.
var ErrRecorderClosed = errors.New("recorder closed")

// Recorder appends presented frames to a Motion-JPEG AVI file. Frames
// arriving faster than the configured rate are dropped; frames whose size
// differs from the first one are dropped as well.
type Recorder struct {
	mu       sync.Mutex
	w        mjpeg.AviWriter
	width    int
	height   int
	interval time.Duration
	last     time.Time
	quality  int
	frames   int
	dropped  int
	closed   bool
	now      func() time.Time
}

// NewRecorder creates path and records width x height frames at fps.
func NewRecorder(path string, width, height, fps int) (*Recorder, error) {
	if fps <= 0 {
		fps = 30
	}
	w, err := mjpeg.New(path, int32(width), int32(height), int32(fps))
	if err != nil {
		return nil, fmt.Errorf("create recording %s: %w", path, err)
	}
	return &Recorder{
		w:        w,
		width:    width,
		height:   height,
		interval: time.Second / time.Duration(fps),
		quality:  85,
		now:      time.Now,
	}, nil
}

// AddFrame encodes img as JPEG and appends it.
func (r *Recorder) AddFrame(img *image.RGBA) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRecorderClosed
	}
	now := r.now()
	if img.Rect.Dx() != r.width || img.Rect.Dy() != r.height ||
		(!r.last.IsZero() && now.Sub(r.last) < r.interval) {
		r.dropped++
		return nil
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if err := r.w.AddFrame(buf.Bytes()); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	r.last = now
	r.frames++
	return nil
}

// Stats returns the number of recorded and dropped frames.
func (r *Recorder) Stats() (frames, dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames, r.dropped
}

// Close finalizes the AVI file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.w.Close()
}
