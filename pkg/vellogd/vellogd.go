package vellogd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"

	"github.com/opd-ai/go-vellogd/internal/config"
)

// Server is an embedded render server with full lifecycle control. It is
// safe for concurrent use from multiple goroutines.
type Server interface {
	// Start brings the server up in background goroutines and returns.
	// It fails if the server is already running.
	Start() error

	// Run is Start on the calling goroutine: it blocks until ctx is
	// cancelled, Stop is called or the host disconnects. Windowing
	// toolkits that need the main thread should be driven through Run.
	Run(ctx context.Context) error

	// Stop shuts the server down and waits for its goroutines. Safe to
	// call multiple times.
	Stop() error

	// Restart stops the server, reloads the configuration from its
	// original source and starts again.
	Restart() error

	// ReloadConfig applies a freshly loaded configuration without
	// stopping. Only the title, base colour and refresh interval take
	// effect in place; the previous configuration stays active on error.
	ReloadConfig() error

	IsRunning() bool
	Status() Status

	// SetErrorHandler registers a callback for runtime errors. Handlers
	// run asynchronously and panics in them are recovered.
	SetErrorHandler(handler ErrorHandler)

	// SetEventHandler registers a callback for lifecycle events.
	SetEventHandler(handler EventHandler)

	Health() HealthCheck
	Metrics() *Metrics

	// Errors returns the tracker that records categorized runtime errors.
	Errors() *ErrorTracker
}

// New creates a server from a configuration file on disk. An empty path
// uses the defaults. The server is not started.
func New(configPath string, opts *Options) (Server, error) {
	cfg, _, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	loader := func() (*config.Config, error) {
		cfg, _, err := config.Load(configPath)
		return cfg, err
	}
	s := newServer(cfg, opts, configPath, loader)
	s.configPath = configPath
	return s, nil
}

// NewFromFS creates a server from a configuration file in fsys, which
// allows the configuration to be embedded in the binary.
func NewFromFS(fsys fs.FS, configPath string, opts *Options) (Server, error) {
	loader := func() (*config.Config, error) {
		p := config.NewParser()
		defer p.Close()
		cfg, err := p.ParseFromFS(fsys, configPath)
		if err != nil {
			return nil, err
		}
		return cfg, cfg.Validate()
	}
	cfg, err := loader()
	if err != nil {
		return nil, fmt.Errorf("parse config from FS: %w", err)
	}
	return newServer(cfg, opts, "embedded:"+configPath, loader), nil
}

// NewFromReader creates a server from configuration content read from r.
func NewFromReader(r io.Reader, opts *Options) (Server, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	loader := func() (*config.Config, error) {
		p := config.NewParser()
		defer p.Close()
		cfg, err := p.ParseReader(bytes.NewReader(content))
		if err != nil {
			return nil, err
		}
		return cfg, cfg.Validate()
	}
	cfg, err := loader()
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return newServer(cfg, opts, "reader", loader), nil
}

// NewWithConfig creates a server from an already built configuration.
// Restart and ReloadConfig keep using cfg.
func NewWithConfig(cfg config.Config, opts *Options) (Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	loader := func() (*config.Config, error) {
		c := cfg
		return &c, nil
	}
	c := cfg
	return newServer(&c, opts, "inline", loader), nil
}
