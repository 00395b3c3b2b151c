// Package config loads the render server configuration from Lua files.
package config

import (
	"time"

	"github.com/opd-ai/go-vellogd/internal/protocol"
)

// Config is the complete server configuration.
type Config struct {
	Window    WindowConfig
	Render    RenderConfig
	Transport TransportConfig
	SSH       SSHConfig
	Log       LogConfig
	Record    RecordConfig
}

// WindowConfig describes the presentation window.
type WindowConfig struct {
	Title         string
	Width, Height int
	SkipTaskbar   bool
	SkipPager     bool
	AlwaysOnTop   bool
	// Transparent lets the base colour's alpha reach the desktop.
	Transparent bool
}

// RenderConfig controls scene presentation.
type RenderConfig struct {
	// RefreshInterval is the period of the redraw timer.
	RefreshInterval time.Duration
	// BaseColor is painted under every scene.
	BaseColor protocol.Color
	// Headless renders without opening a window.
	Headless bool
}

// TransportConfig controls how hosts reach the server.
type TransportConfig struct {
	// Network is "unix" or "tcp".
	Network string
	// Address is the inbound listen address; empty picks a private one.
	Address          string
	HandshakeTimeout time.Duration
	// QueueSize is the depth of the event loop queue.
	QueueSize int
}

// SSHConfig reaches a host through an SSH tunnel. The tunnel is used only
// when Host is set.
type SSHConfig struct {
	Host                  string
	Port                  int
	User                  string
	KeyFile               string
	Passphrase            string
	Password              string
	UseAgent              bool
	KnownHosts            string
	InsecureIgnoreHostKey bool
	KeepAlive             time.Duration
}

// Enabled reports whether an SSH tunnel is configured.
func (c SSHConfig) Enabled() bool {
	return c.Host != ""
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string
	// Format is text or json.
	Format string
}

// RecordConfig enables MJPEG recording of presented frames.
type RecordConfig struct {
	Path string
	FPS  int
}

// Enabled reports whether recording is configured.
func (c RecordConfig) Enabled() bool {
	return c.Path != ""
}

// Validate checks the configuration and returns the combined error, if any.
func (c *Config) Validate() error {
	return NewValidator().Validate(c).Error()
}
