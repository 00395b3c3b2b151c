package profiling

import (
	"fmt"
	"runtime"
	"sync"
	"time"
)

// Sample is one reading of the Go heap.
type Sample struct {
	Time       time.Time
	HeapAlloc  uint64
	HeapInuse  uint64
	Goroutines int
	NumGC      uint32
}

// ReadSample reads the current heap statistics.
func ReadSample() Sample {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return Sample{
		Time:       time.Now(),
		HeapAlloc:  ms.HeapAlloc,
		HeapInuse:  ms.HeapInuse,
		Goroutines: runtime.NumGoroutine(),
		NumGC:      ms.NumGC,
	}
}

// Growth compares two samples.
type Growth struct {
	Elapsed        time.Duration
	HeapDelta      int64
	GoroutineDelta int
	// BytesPerSecond is the heap growth rate over Elapsed.
	BytesPerSecond float64
	Suspect        bool
	Reason         string
}

// String formats g for logs.
func (g Growth) String() string {
	s := fmt.Sprintf("heap %+d B over %s (%.0f B/s), goroutines %+d",
		g.HeapDelta, g.Elapsed.Round(time.Millisecond), g.BytesPerSecond, g.GoroutineDelta)
	if g.Suspect {
		s += ": " + g.Reason
	}
	return s
}

// WatchConfig tunes a MemoryWatch.
type WatchConfig struct {
	Interval time.Duration
	// Window is the number of samples kept; growth is measured across it.
	Window int
	// MaxBytesPerSecond is the sustained heap growth considered a leak.
	MaxBytesPerSecond float64
	// MaxGoroutineGrowth is the goroutine increase considered a leak.
	MaxGoroutineGrowth int
}

// DefaultWatchConfig samples every 10 seconds over a ten minute window.
func DefaultWatchConfig() WatchConfig {
	return WatchConfig{
		Interval:           10 * time.Second,
		Window:             60,
		MaxBytesPerSecond:  1 << 20,
		MaxGoroutineGrowth: 16,
	}
}

// MemoryWatch samples the heap periodically. Textures and tile patterns
// that are never released show up as steady growth.
type MemoryWatch struct {
	cfg  WatchConfig
	read func() Sample

	mu      sync.Mutex
	samples []Sample
	stop    chan struct{}
	done    chan struct{}
}

// NewMemoryWatch returns a stopped watch. Zero config fields take their
// defaults.
func NewMemoryWatch(cfg WatchConfig) *MemoryWatch {
	def := DefaultWatchConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Window < 2 {
		cfg.Window = def.Window
	}
	if cfg.MaxBytesPerSecond <= 0 {
		cfg.MaxBytesPerSecond = def.MaxBytesPerSecond
	}
	if cfg.MaxGoroutineGrowth <= 0 {
		cfg.MaxGoroutineGrowth = def.MaxGoroutineGrowth
	}
	return &MemoryWatch{cfg: cfg, read: ReadSample}
}

// Record takes one sample.
func (w *MemoryWatch) Record() Sample {
	s := w.read()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples = append(w.samples, s)
	if n := len(w.samples) - w.cfg.Window; n > 0 {
		w.samples = append(w.samples[:0], w.samples[n:]...)
	}
	return s
}

// Growth compares the oldest and newest samples. ok is false until two
// samples exist.
func (w *MemoryWatch) Growth() (g Growth, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.samples) < 2 {
		return Growth{}, false
	}
	first, last := w.samples[0], w.samples[len(w.samples)-1]
	g = Growth{
		Elapsed:        last.Time.Sub(first.Time),
		HeapDelta:      int64(last.HeapAlloc) - int64(first.HeapAlloc),
		GoroutineDelta: last.Goroutines - first.Goroutines,
	}
	if secs := g.Elapsed.Seconds(); secs > 0 {
		g.BytesPerSecond = float64(g.HeapDelta) / secs
	}
	switch {
	case g.BytesPerSecond > w.cfg.MaxBytesPerSecond:
		g.Suspect = true
		g.Reason = fmt.Sprintf("heap growing faster than %.0f B/s", w.cfg.MaxBytesPerSecond)
	case g.GoroutineDelta > w.cfg.MaxGoroutineGrowth:
		g.Suspect = true
		g.Reason = fmt.Sprintf("goroutines grew by more than %d", w.cfg.MaxGoroutineGrowth)
	}
	return g, true
}

// Start samples on the configured interval until Stop.
func (w *MemoryWatch) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stop != nil {
		return
	}
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go w.loop(w.stop, w.done)
}

// Stop halts sampling and waits for the sampler.
func (w *MemoryWatch) Stop() {
	w.mu.Lock()
	stop, done := w.stop, w.done
	w.stop, w.done = nil, nil
	w.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (w *MemoryWatch) loop(stop, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(w.cfg.Interval)
	defer t.Stop()
	w.Record()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			w.Record()
		}
	}
}
