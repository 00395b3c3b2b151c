package config

import (
	"time"

	"github.com/opd-ai/go-vellogd/internal/protocol"
)

// Default values for configuration options.
const (
	DefaultTitle            = "vellogd"
	DefaultWidth            = 800
	DefaultHeight           = 600
	DefaultRefreshInterval  = 16 * time.Millisecond
	DefaultNetwork          = protocol.NetworkUnix
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultQueueSize        = 4096
	DefaultSSHPort          = 22
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultRecordFPS        = 30
)

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Window: WindowConfig{
			Title:  DefaultTitle,
			Width:  DefaultWidth,
			Height: DefaultHeight,
		},
		Render: RenderConfig{
			RefreshInterval: DefaultRefreshInterval,
			BaseColor:       protocol.WhiteSmoke,
		},
		Transport: TransportConfig{
			Network:          DefaultNetwork,
			HandshakeTimeout: DefaultHandshakeTimeout,
			QueueSize:        DefaultQueueSize,
		},
		SSH: SSHConfig{
			Port: DefaultSSHPort,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Record: RecordConfig{
			FPS: DefaultRecordFPS,
		},
	}
}
