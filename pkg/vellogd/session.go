package vellogd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type sessionKey struct{}

// SessionID tags every log record of one server run, from handshake to
// shutdown, so interleaved output of restarted servers stays separable.
type SessionID string

func (s SessionID) String() string {
	return string(s)
}

// NewSessionID returns a random 16-character hex identifier.
func NewSessionID() SessionID {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return SessionID("0000000000000000")
	}
	return SessionID(hex.EncodeToString(b))
}

// WithSession returns a context carrying id. An empty id is replaced by a
// new one.
func WithSession(ctx context.Context, id SessionID) context.Context {
	if id == "" {
		id = NewSessionID()
	}
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionFromContext returns the session carried by ctx, or "".
func SessionFromContext(ctx context.Context) SessionID {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(sessionKey{}).(SessionID); ok {
		return id
	}
	return ""
}

// sessionLogger prefixes every record with the session id.
type sessionLogger struct {
	logger Logger
	id     SessionID
}

// NewSessionLogger wraps logger so records carry the session of ctx.
func NewSessionLogger(ctx context.Context, logger Logger) Logger {
	if logger == nil {
		logger = NopLogger()
	}
	id := SessionFromContext(ctx)
	if id == "" {
		return logger
	}
	return &sessionLogger{logger: logger, id: id}
}

func (l *sessionLogger) with(args []any) []any {
	return append([]any{"session", string(l.id)}, args...)
}

func (l *sessionLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, l.with(args)...) }
func (l *sessionLogger) Info(msg string, args ...any)  { l.logger.Info(msg, l.with(args)...) }
func (l *sessionLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, l.with(args)...) }
func (l *sessionLogger) Error(msg string, args ...any) { l.logger.Error(msg, l.with(args)...) }
