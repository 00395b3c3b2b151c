package vellogd

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/go-vellogd/internal/capture"
	"github.com/opd-ai/go-vellogd/internal/config"
	"github.com/opd-ai/go-vellogd/internal/engine"
	"github.com/opd-ai/go-vellogd/internal/headless"
	"github.com/opd-ai/go-vellogd/internal/protocol"
	"github.com/opd-ai/go-vellogd/internal/scene"
	"github.com/opd-ai/go-vellogd/internal/window"
)

// ErrorCategory classifies errors for alerting and monitoring.
type ErrorCategory int

const (
	ErrorCategoryUnknown ErrorCategory = iota
	ErrorCategoryConfig
	// ErrorCategoryProtocol is for malformed or out-of-order messages.
	ErrorCategoryProtocol
	// ErrorCategoryRender is for rasterization and surface errors.
	ErrorCategoryRender
	// ErrorCategoryWindow is for window lifecycle errors.
	ErrorCategoryWindow
	// ErrorCategoryCapture is for gradient and tile pattern errors.
	ErrorCategoryCapture
	ErrorCategoryIO
	ErrorCategoryNetwork

	categoryCount
)

// String returns a human-readable name for the error category.
func (c ErrorCategory) String() string {
	switch c {
	case ErrorCategoryConfig:
		return "config"
	case ErrorCategoryProtocol:
		return "protocol"
	case ErrorCategoryRender:
		return "render"
	case ErrorCategoryWindow:
		return "window"
	case ErrorCategoryCapture:
		return "capture"
	case ErrorCategoryIO:
		return "io"
	case ErrorCategoryNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// ErrorSeverity indicates the severity level of an error.
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	// SeverityError affects functionality but allows continued operation.
	SeverityError
	// SeverityCritical requires immediate attention.
	SeverityCritical
)

// String returns a human-readable name for the severity level.
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with metadata for tracking and alerting.
type CategorizedError struct {
	Err       error
	Category  ErrorCategory
	Severity  ErrorSeverity
	Timestamp time.Time
	// Context provides additional key-value metadata.
	Context map[string]string
}

func (e *CategorizedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s/%s] (no error)", e.Severity, e.Category)
	}
	return fmt.Sprintf("[%s/%s] %s", e.Severity, e.Category, e.Err.Error())
}

func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// NewCategorizedError creates a CategorizedError stamped with the current
// time.
func NewCategorizedError(err error, category ErrorCategory, severity ErrorSeverity) *CategorizedError {
	return &CategorizedError{
		Err:       err,
		Category:  category,
		Severity:  severity,
		Timestamp: time.Now(),
		Context:   make(map[string]string),
	}
}

// WithContext adds a key-value pair to the error context and returns the
// error.
func (e *CategorizedError) WithContext(key, value string) *CategorizedError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// Categorize classifies err by the sentinel errors it wraps. An error
// that is already categorized is returned unchanged.
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}
	var ce *CategorizedError
	if errors.As(err, &ce) {
		return ce
	}

	var (
		netErr  net.Error
		pathErr *fs.PathError
		valErr  config.ValidationError
	)
	switch {
	case errors.Is(err, protocol.ErrDisconnected),
		errors.Is(err, protocol.ErrTunnelClosed),
		errors.As(err, &netErr):
		return NewCategorizedError(err, ErrorCategoryNetwork, SeverityWarning)
	case errors.Is(err, protocol.ErrProtocolViolation),
		errors.Is(err, protocol.ErrUnexpectedResponse):
		return NewCategorizedError(err, ErrorCategoryProtocol, SeverityError)
	case errors.Is(err, scene.ErrCaptureActive),
		errors.Is(err, scene.ErrNoCapture),
		errors.Is(err, scene.ErrStalePattern),
		errors.Is(err, capture.ErrInvalidTile):
		return NewCategorizedError(err, ErrorCategoryCapture, SeverityWarning)
	case errors.Is(err, window.ErrNotActive),
		errors.Is(err, window.ErrWindowClosed):
		return NewCategorizedError(err, ErrorCategoryWindow, SeverityWarning)
	case errors.Is(err, engine.ErrInvalidSize),
		errors.Is(err, engine.ErrNoDevice),
		errors.Is(err, engine.ErrClosed):
		return NewCategorizedError(err, ErrorCategoryRender, SeverityError)
	case errors.Is(err, config.ErrLimitExceeded),
		errors.As(err, &valErr):
		return NewCategorizedError(err, ErrorCategoryConfig, SeverityError)
	case errors.Is(err, headless.ErrRecorderClosed),
		errors.As(err, &pathErr):
		return NewCategorizedError(err, ErrorCategoryIO, SeverityError)
	default:
		return NewCategorizedError(err, ErrorCategoryUnknown, SeverityError)
	}
}

// AlertCondition defines when an alert should be triggered.
type AlertCondition struct {
	// Category filters alerts to one category; ErrorCategoryUnknown
	// matches all of them.
	Category    ErrorCategory
	MinSeverity ErrorSeverity
	// Threshold is the number of errors within Window that triggers.
	Threshold int
	Window    time.Duration
}

// AlertHandler is called when an alert condition is met. Implementations
// must not block.
type AlertHandler func(condition AlertCondition, errorCount int, recentErrors []CategorizedError)

// ErrorTracker keeps a sliding window of recent errors and checks alert
// conditions against it. Safe for concurrent use.
type ErrorTracker struct {
	mu            sync.RWMutex
	errors        []CategorizedError
	maxErrors     int
	retentionTime time.Duration
	conditions    []AlertCondition
	handlers      []AlertHandler
	lastAlert     map[int]time.Time // index = condition index
	alertCooldown time.Duration

	categoryCounters [categoryCount]atomic.Int64
}

// ErrorTrackerConfig configures an ErrorTracker.
type ErrorTrackerConfig struct {
	// MaxErrors is the number of errors retained (default: 1000).
	MaxErrors int
	// RetentionTime is how long errors are retained (default: 1 hour).
	RetentionTime time.Duration
	// AlertCooldown is the minimum time between repeated alerts for the
	// same condition (default: 5 minutes).
	AlertCooldown time.Duration
}

// DefaultErrorTrackerConfig returns the default tracker configuration.
func DefaultErrorTrackerConfig() ErrorTrackerConfig {
	return ErrorTrackerConfig{
		MaxErrors:     1000,
		RetentionTime: time.Hour,
		AlertCooldown: 5 * time.Minute,
	}
}

// NewErrorTracker creates an ErrorTracker. Zero fields take the defaults.
func NewErrorTracker(cfg ErrorTrackerConfig) *ErrorTracker {
	def := DefaultErrorTrackerConfig()
	if cfg.MaxErrors <= 0 {
		cfg.MaxErrors = def.MaxErrors
	}
	if cfg.RetentionTime <= 0 {
		cfg.RetentionTime = def.RetentionTime
	}
	if cfg.AlertCooldown <= 0 {
		cfg.AlertCooldown = def.AlertCooldown
	}
	return &ErrorTracker{
		errors:        make([]CategorizedError, 0, min(cfg.MaxErrors, 64)),
		maxErrors:     cfg.MaxErrors,
		retentionTime: cfg.RetentionTime,
		lastAlert:     make(map[int]time.Time),
		alertCooldown: cfg.AlertCooldown,
	}
}

// AddCondition registers an alert condition to monitor.
func (t *ErrorTracker) AddCondition(cond AlertCondition) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conditions = append(t.conditions, cond)
}

// SetAlertHandler adds a handler for all alert conditions.
func (t *ErrorTracker) SetAlertHandler(handler AlertHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers = append(t.handlers, handler)
}

// Record adds an error and checks the alert conditions.
func (t *ErrorTracker) Record(err *CategorizedError) {
	if err == nil {
		return
	}
	if err.Category >= 0 && err.Category < categoryCount {
		t.categoryCounters[err.Category].Add(1)
	}

	t.mu.Lock()
	t.errors = append(t.errors, *err)
	if len(t.errors) > t.maxErrors {
		t.errors = t.errors[len(t.errors)-t.maxErrors:]
	}
	t.pruneExpired()
	conditions := append([]AlertCondition(nil), t.conditions...)
	handlers := append([]AlertHandler(nil), t.handlers...)
	t.mu.Unlock()

	for i, cond := range conditions {
		t.checkCondition(i, cond, handlers)
	}
}

// pruneExpired drops errors older than the retention time. Must be called
// with mu held.
func (t *ErrorTracker) pruneExpired() {
	cutoff := time.Now().Add(-t.retentionTime)
	start := 0
	for start < len(t.errors) && !t.errors[start].Timestamp.After(cutoff) {
		start++
	}
	if start > 0 {
		t.errors = t.errors[start:]
	}
}

func (t *ErrorTracker) checkCondition(index int, cond AlertCondition, handlers []AlertHandler) {
	t.mu.Lock()
	if last, ok := t.lastAlert[index]; ok && time.Since(last) < t.alertCooldown {
		t.mu.Unlock()
		return
	}

	cutoff := time.Now().Add(-cond.Window)
	var count int
	var matching []CategorizedError
	for _, err := range t.errors {
		if err.Timestamp.Before(cutoff) {
			continue
		}
		if cond.Category != ErrorCategoryUnknown && err.Category != cond.Category {
			continue
		}
		if err.Severity < cond.MinSeverity {
			continue
		}
		count++
		if len(matching) < 10 {
			matching = append(matching, err)
		}
	}
	if count < cond.Threshold {
		t.mu.Unlock()
		return
	}
	t.lastAlert[index] = time.Now()
	t.mu.Unlock()

	for _, h := range handlers {
		go func(h AlertHandler) {
			defer func() { _ = recover() }()
			h(cond, count, matching)
		}(h)
	}
}

// ErrorRate returns errors per second within window.
func (t *ErrorTracker) ErrorRate(window time.Duration) float64 {
	return t.rate(window, func(CategorizedError) bool { return true })
}

// ErrorRateByCategory returns errors per second of one category within
// window.
func (t *ErrorTracker) ErrorRateByCategory(category ErrorCategory, window time.Duration) float64 {
	return t.rate(window, func(e CategorizedError) bool { return e.Category == category })
}

func (t *ErrorTracker) rate(window time.Duration, match func(CategorizedError) bool) float64 {
	if window <= 0 {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := time.Now().Add(-window)
	count := 0
	for _, err := range t.errors {
		if err.Timestamp.After(cutoff) && match(err) {
			count++
		}
	}
	return float64(count) / window.Seconds()
}

// ErrorStats summarizes the tracked errors.
type ErrorStats struct {
	// TotalErrors is the number of errors currently retained.
	TotalErrors      int
	ErrorsByCategory map[ErrorCategory]int
	ErrorsBySeverity map[ErrorSeverity]int
	// TotalByCategory holds lifetime totals per category.
	TotalByCategory []CategoryCount
}

// CategoryCount pairs a category with its count.
type CategoryCount struct {
	Category ErrorCategory
	Count    int64
}

// Stats returns a snapshot of error statistics.
func (t *ErrorTracker) Stats() ErrorStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := ErrorStats{
		TotalErrors:      len(t.errors),
		ErrorsByCategory: make(map[ErrorCategory]int),
		ErrorsBySeverity: make(map[ErrorSeverity]int),
	}
	for _, err := range t.errors {
		stats.ErrorsByCategory[err.Category]++
		stats.ErrorsBySeverity[err.Severity]++
	}
	for i := range t.categoryCounters {
		stats.TotalByCategory = append(stats.TotalByCategory, CategoryCount{
			Category: ErrorCategory(i),
			Count:    t.categoryCounters[i].Load(),
		})
	}
	return stats
}

// RecentErrors returns up to limit of the most recent errors, oldest
// first.
func (t *ErrorTracker) RecentErrors(limit int) []CategorizedError {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if limit <= 0 || len(t.errors) == 0 {
		return nil
	}
	start := max(len(t.errors)-limit, 0)
	return append([]CategorizedError(nil), t.errors[start:]...)
}

// Clear removes all tracked errors. Lifetime counters are kept.
func (t *ErrorTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errors = t.errors[:0]
	t.lastAlert = make(map[int]time.Time)
}
