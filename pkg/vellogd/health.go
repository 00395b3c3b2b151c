package vellogd

import (
	"time"

	"github.com/opd-ai/go-vellogd/internal/window"
)

// HealthStatus is the health state of a component.
type HealthStatus string

const (
	HealthOK        HealthStatus = "ok"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck is the health of a server and its components: instance,
// window, transport, errors and memory.
type HealthCheck struct {
	Status    HealthStatus
	Timestamp time.Time
	// Uptime is zero when the server is not running.
	Uptime     time.Duration
	Components map[string]ComponentHealth
	Message    string
}

// ComponentHealth is the health of one component.
type ComponentHealth struct {
	Status      HealthStatus
	Message     string
	LastUpdated time.Time
}

func (h HealthCheck) IsHealthy() bool   { return h.Status == HealthOK }
func (h HealthCheck) IsDegraded() bool  { return h.Status == HealthDegraded }
func (h HealthCheck) IsUnhealthy() bool { return h.Status == HealthUnhealthy }

// worst folds component states into an overall state.
func worst(components map[string]ComponentHealth) HealthStatus {
	status := HealthOK
	for _, c := range components {
		switch c.Status {
		case HealthUnhealthy:
			return HealthUnhealthy
		case HealthDegraded:
			status = HealthDegraded
		}
	}
	return status
}

// Health reports the state of the server and its components.
func (s *serverImpl) Health() HealthCheck {
	now := time.Now()
	running := s.running.Load()

	s.mu.RLock()
	rt, mem := s.rt, s.memory
	address, peer, disconnected := s.address, s.peer, s.disconnected
	lastErr := s.lastErr
	start := s.startTime
	s.mu.RUnlock()

	comp := func(status HealthStatus, msg string) ComponentHealth {
		return ComponentHealth{Status: status, Message: msg, LastUpdated: now}
	}
	components := make(map[string]ComponentHealth, 5)

	if !running {
		components["instance"] = comp(HealthUnhealthy, "Server is not running")
		return HealthCheck{
			Status:     HealthUnhealthy,
			Timestamp:  now,
			Components: components,
			Message:    "Server is not running",
		}
	}
	components["instance"] = comp(HealthOK, "Server is running")

	switch degraded := rt.Window.Degraded(); {
	case degraded != nil:
		components["window"] = comp(HealthDegraded, "Rendering headless: "+degraded.Error())
	case rt.Window.State() == window.Active:
		components["window"] = comp(HealthOK, "Window active")
	default:
		components["window"] = comp(HealthOK, "Window suspended")
	}

	switch {
	case disconnected:
		components["transport"] = comp(HealthDegraded, "Host disconnected, keeping last frame")
	case peer != "":
		components["transport"] = comp(HealthOK, "Connected to "+peer)
	case address != "":
		components["transport"] = comp(HealthDegraded, "Waiting for host on "+address)
	default:
		components["transport"] = comp(HealthDegraded, "Waiting for host")
	}

	if lastErr != nil {
		components["errors"] = comp(HealthDegraded, lastErr.Error())
	} else {
		components["errors"] = comp(HealthOK, "No recent errors")
	}

	if g, ok := mem.Growth(); !ok {
		components["memory"] = comp(HealthOK, "Collecting samples")
	} else if g.Suspect {
		components["memory"] = comp(HealthDegraded, g.String())
	} else {
		components["memory"] = comp(HealthOK, g.String())
	}

	status := worst(components)
	message := "All components healthy"
	if status != HealthOK {
		message = "Running with degraded components"
	}
	return HealthCheck{
		Status:     status,
		Timestamp:  now,
		Uptime:     now.Sub(start),
		Components: components,
		Message:    message,
	}
}
