package profiling

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestProfilerWritesProfiles(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		CPUProfilePath: filepath.Join(dir, "cpu.prof"),
		MemProfilePath: filepath.Join(dir, "mem.prof"),
	}
	if !cfg.Enabled() {
		t.Fatal("Enabled() = false")
	}
	p := New(cfg)

	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := p.Start(); !errors.Is(err, ErrRunning) {
		t.Errorf("second Start() = %v, want ErrRunning", err)
	}
	if !p.Running() {
		t.Error("Running() = false")
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := p.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("second Stop() = %v, want ErrNotRunning", err)
	}

	for _, path := range []string{cfg.CPUProfilePath, cfg.MemProfilePath} {
		if info, err := os.Stat(path); err != nil || info.Size() == 0 {
			t.Errorf("profile %s: %v", path, err)
		}
	}
}

func TestProfilerBadPath(t *testing.T) {
	p := New(Config{CPUProfilePath: filepath.Join(t.TempDir(), "missing", "cpu.prof")})
	if err := p.Start(); err == nil {
		t.Error("Start() with an unwritable path succeeded")
	}
	if p.Running() {
		t.Error("profiler running after failed Start")
	}
}

func TestMemoryWatchGrowth(t *testing.T) {
	w := NewMemoryWatch(WatchConfig{Window: 3, MaxBytesPerSecond: 100, MaxGoroutineGrowth: 5})
	base := time.Unix(1000, 0)
	samples := []Sample{
		{Time: base, HeapAlloc: 1000, Goroutines: 4},
		{Time: base.Add(time.Second), HeapAlloc: 1050, Goroutines: 4},
		{Time: base.Add(2 * time.Second), HeapAlloc: 1100, Goroutines: 4},
		{Time: base.Add(3 * time.Second), HeapAlloc: 1900, Goroutines: 4},
	}
	i := 0
	w.read = func() Sample { s := samples[i]; i++; return s }

	w.Record()
	if _, ok := w.Growth(); ok {
		t.Fatal("Growth() ok with one sample")
	}
	w.Record()
	w.Record()
	g, ok := w.Growth()
	if !ok || g.Suspect || g.HeapDelta != 100 || g.BytesPerSecond != 50 {
		t.Errorf("Growth() = %+v, %v", g, ok)
	}

	// The window drops the first sample.
	w.Record()
	g, _ = w.Growth()
	if g.HeapDelta != 850 || !g.Suspect {
		t.Errorf("Growth() = %+v, want suspect 850 B", g)
	}
}

func TestMemoryWatchGoroutines(t *testing.T) {
	w := NewMemoryWatch(WatchConfig{MaxGoroutineGrowth: 2})
	base := time.Unix(0, 0)
	samples := []Sample{{Time: base, Goroutines: 3}, {Time: base.Add(time.Second), Goroutines: 9}}
	i := 0
	w.read = func() Sample { s := samples[i]; i++; return s }
	w.Record()
	w.Record()
	if g, _ := w.Growth(); !g.Suspect || g.GoroutineDelta != 6 {
		t.Errorf("Growth() = %+v", g)
	}
}

func TestMemoryWatchStartStop(t *testing.T) {
	w := NewMemoryWatch(WatchConfig{Interval: time.Millisecond})
	w.Start()
	w.Start()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := w.Growth(); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no samples recorded")
		}
		time.Sleep(time.Millisecond)
	}
	w.Stop()
	w.Stop()
}
