package vellogd

import (
	"github.com/opd-ai/go-vellogd/internal/config"
	"github.com/opd-ai/go-vellogd/internal/protocol"
)

// Protocol types shared with hosts.
type (
	GC            = protocol.GC
	Point         = protocol.Point
	Color         = protocol.Color
	Gradient      = protocol.Gradient
	ColorStop     = protocol.ColorStop
	Extend        = protocol.Extend
	Request       = protocol.Request
	Response      = protocol.Response
	ServerChannel = protocol.ServerChannel
	ClientChannel = protocol.ClientChannel
)

// Config is the server configuration.
type Config = config.Config

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return config.DefaultConfig()
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return protocol.Pt(x, y)
}

// Pipe returns the two ends of an in-process channel, for hosts that run
// the server in the same process.
func Pipe(buffer int) (ClientChannel, ServerChannel) {
	return protocol.Pipe(buffer)
}
