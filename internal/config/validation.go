package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/opd-ai/go-vellogd/internal/engine"
	"github.com/opd-ai/go-vellogd/internal/protocol"
)

// ValidationError is one problem with a configuration field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the errors and warnings of a validation pass.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid reports whether there are no errors.
func (vr *ValidationResult) IsValid() bool {
	return len(vr.Errors) == 0
}

// Error returns the combined errors, or nil.
func (vr *ValidationResult) Error() error {
	if len(vr.Errors) == 0 {
		return nil
	}
	messages := make([]string, 0, len(vr.Errors))
	for _, e := range vr.Errors {
		messages = append(messages, e.Error())
	}
	return fmt.Errorf("validation failed: %s", strings.Join(messages, "; "))
}

// AddError records an error.
func (vr *ValidationResult) AddError(field, message string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning records a warning.
func (vr *ValidationResult) AddWarning(field, message string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Message: message})
}

// Validator checks configurations.
type Validator struct {
	// strict turns warnings into errors.
	strict bool
}

// NewValidator returns a validator.
func NewValidator() *Validator {
	return &Validator{}
}

// WithStrictMode makes every warning an error.
func (v *Validator) WithStrictMode(strict bool) *Validator {
	v.strict = strict
	return v
}

// Validate checks cfg.
func (v *Validator) Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}
	v.validateWindow(&cfg.Window, result)
	v.validateRender(&cfg.Render, cfg.Window.Transparent, result)
	v.validateTransport(&cfg.Transport, result)
	v.validateSSH(&cfg.SSH, result)
	v.validateLog(&cfg.Log, result)
	v.validateRecord(&cfg.Record, result)

	if v.strict {
		result.Errors = append(result.Errors, result.Warnings...)
		result.Warnings = nil
	}
	return result
}

func (v *Validator) validateWindow(wc *WindowConfig, result *ValidationResult) {
	if wc.Width <= 0 {
		result.AddError("window.width", fmt.Sprintf("must be positive, got %d", wc.Width))
	}
	if wc.Height <= 0 {
		result.AddError("window.height", fmt.Sprintf("must be positive, got %d", wc.Height))
	}
	if wc.Width > engine.MaxDimension || wc.Height > engine.MaxDimension {
		result.AddError("window", fmt.Sprintf("size %dx%d exceeds %d", wc.Width, wc.Height, engine.MaxDimension))
	}
}

func (v *Validator) validateRender(rc *RenderConfig, transparent bool, result *ValidationResult) {
	switch {
	case rc.RefreshInterval <= 0:
		result.AddError("render.refresh_interval", fmt.Sprintf("must be positive, got %v", rc.RefreshInterval))
	case rc.RefreshInterval < 4*time.Millisecond:
		result.AddWarning("render.refresh_interval",
			fmt.Sprintf("interval %v is faster than any display refreshes", rc.RefreshInterval))
	case rc.RefreshInterval > time.Second:
		result.AddWarning("render.refresh_interval",
			fmt.Sprintf("slow interval %v delays every frame", rc.RefreshInterval))
	}
	if rc.BaseColor.A < 255 && !transparent && !rc.Headless {
		result.AddWarning("render.base_color", "alpha has no effect unless window.transparent is set")
	}
}

func (v *Validator) validateTransport(tc *TransportConfig, result *ValidationResult) {
	switch tc.Network {
	case protocol.NetworkUnix, protocol.NetworkTCP:
	default:
		result.AddError("transport.network", fmt.Sprintf("must be unix or tcp, got %q", tc.Network))
	}
	if tc.HandshakeTimeout <= 0 {
		result.AddError("transport.handshake_timeout", fmt.Sprintf("must be positive, got %v", tc.HandshakeTimeout))
	}
	if tc.QueueSize <= 0 {
		result.AddError("transport.queue_size", fmt.Sprintf("must be positive, got %d", tc.QueueSize))
	}
	if tc.Network == protocol.NetworkTCP && tc.Address != "" && !strings.HasPrefix(tc.Address, "127.") &&
		!strings.HasPrefix(tc.Address, "localhost:") && !strings.HasPrefix(tc.Address, "[::1]:") {
		result.AddWarning("transport.address", "listening beyond loopback exposes the server unauthenticated")
	}
}

func (v *Validator) validateSSH(sc *SSHConfig, result *ValidationResult) {
	if !sc.Enabled() {
		return
	}
	if sc.User == "" {
		result.AddError("ssh.user", "required when ssh.host is set")
	}
	if sc.Port <= 0 || sc.Port > 65535 {
		result.AddError("ssh.port", fmt.Sprintf("out of range: %d", sc.Port))
	}
	if sc.Password == "" && sc.KeyFile == "" && !sc.UseAgent {
		result.AddError("ssh", "no authentication method: set password, key_file or agent")
	}
	if sc.KnownHosts == "" {
		if sc.InsecureIgnoreHostKey {
			result.AddWarning("ssh.known_hosts", "host keys are not verified")
		} else {
			result.AddError("ssh.known_hosts", "required unless insecure_ignore_host_key is set")
		}
	}
	if sc.Password != "" {
		result.AddWarning("ssh.password", "prefer key or agent authentication over a stored password")
	}
}

func (v *Validator) validateLog(lc *LogConfig, result *ValidationResult) {
	switch strings.ToLower(lc.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		result.AddError("log.level", fmt.Sprintf("unknown level %q", lc.Level))
	}
	switch strings.ToLower(lc.Format) {
	case "text", "json":
	default:
		result.AddError("log.format", fmt.Sprintf("must be text or json, got %q", lc.Format))
	}
}

func (v *Validator) validateRecord(rc *RecordConfig, result *ValidationResult) {
	if !rc.Enabled() {
		return
	}
	if rc.FPS <= 0 || rc.FPS > 120 {
		result.AddError("record.fps", fmt.Sprintf("must be in 1..120, got %d", rc.FPS))
	}
	if !strings.HasSuffix(strings.ToLower(rc.Path), ".avi") {
		result.AddWarning("record.path", "MJPEG recordings are AVI files; consider an .avi extension")
	}
}

// ValidateConfig validates cfg and returns the combined error.
func ValidateConfig(cfg *Config) error {
	return NewValidator().Validate(cfg).Error()
}

// ValidateConfigStrict validates cfg treating warnings as errors.
func ValidateConfigStrict(cfg *Config) error {
	return NewValidator().WithStrictMode(true).Validate(cfg).Error()
}
