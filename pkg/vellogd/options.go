package vellogd

import (
	"context"
	"time"
)

// DefaultShutdownTimeout is the default timeout for graceful shutdown.
const DefaultShutdownTimeout = 5 * time.Second

// AcceptFunc produces the channel a server serves. It blocks until a host
// is connected or ctx is done.
type AcceptFunc func(ctx context.Context) (ServerChannel, error)

// Options configures a Server.
type Options struct {
	// RefreshInterval overrides render.refresh_interval. Zero means use
	// the configuration file's value.
	RefreshInterval time.Duration

	// WindowTitle overrides window.title.
	WindowTitle string

	// Headless renders without opening a window.
	Headless bool

	// Rendezvous is a host's bootstrap address ("unix:/path" or
	// "tcp:host:port"). When set the server announces itself there;
	// otherwise it listens on the configured transport address.
	Rendezvous string

	// Accept replaces the transport entirely. Tests and in-process
	// embedders use it with protocol pipes.
	Accept AcceptFunc

	// KeepAfterDisconnect keeps the window and its last frame when the
	// host goes away. The server then runs until stopped.
	KeepAfterDisconnect bool

	// Logger receives diagnostics. Nil disables logging.
	Logger Logger

	// ShutdownTimeout bounds Stop. Zero means DefaultShutdownTimeout.
	ShutdownTimeout time.Duration

	// Metrics collects counters for this server. Nil means DefaultMetrics().
	Metrics *Metrics

	// Errors tracks categorized errors. Nil creates a private tracker.
	Errors *ErrorTracker

	// WatchConfig reloads the configuration file whenever it changes.
	// It only applies to servers created with New.
	WatchConfig bool

	// WatchDebounce delays reloads until edits settle. Zero means
	// DefaultWatchDebounce.
	WatchDebounce time.Duration

	// MemoryWatch samples heap growth for the health report. Zero values
	// take the defaults of the profiling package.
	MemoryWatch MemoryWatchOptions
}

// MemoryWatchOptions configures the memory component of Health.
type MemoryWatchOptions struct {
	Interval           time.Duration
	Window             int
	MaxBytesPerSecond  float64
	MaxGoroutineGrowth int
}

// DefaultOptions returns options with default values.
func DefaultOptions() Options {
	return Options{
		ShutdownTimeout: DefaultShutdownTimeout,
		WatchDebounce:   DefaultWatchDebounce,
	}
}
