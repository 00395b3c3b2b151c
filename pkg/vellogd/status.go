package vellogd

import "time"

// Status is a point-in-time view of a Server.
type Status struct {
	Running   bool
	StartTime time.Time
	// Session identifies the current run in log output.
	Session SessionID
	// Window is the lifecycle state of the window, "active" or
	// "suspended".
	Window string
	// Address is the inbound address hosts connect to, once listening.
	Address string
	// Peer describes the connected host, empty before the handshake.
	Peer string
	// Requests is the number of requests handled since the last start.
	Requests uint64
	// Frames is the number of frames presented since the last start.
	Frames uint64
	// LastError is the most recent error encountered (nil if none).
	LastError error
	// ConfigSource describes the configuration source (file path,
	// "embedded:...", "reader" or "inline").
	ConfigSource string
}

// ErrorHandler is a callback for runtime errors. It is called
// asynchronously; do not block in the handler.
type ErrorHandler func(err error)

// EventHandler is a callback for lifecycle events.
type EventHandler func(event Event)

// Event is a lifecycle event.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Message   string
}

// EventType enumerates lifecycle event types.
type EventType int

const (
	EventStarted EventType = iota
	EventStopped
	EventRestarted
	EventConfigReloaded
	// EventConnected is emitted once a host completed the handshake.
	EventConnected
	// EventDisconnected is emitted when the host goes away.
	EventDisconnected
	EventError
)

// String returns a human-readable representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventStarted:
		return "started"
	case EventStopped:
		return "stopped"
	case EventRestarted:
		return "restarted"
	case EventConfigReloaded:
		return "config_reloaded"
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}
