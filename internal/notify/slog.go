package notify

import (
	"context"
	"log/slog"
)

// Logger writes notices to a structured logger. Blocking notices log at
// error level so they stand out in the serve log.
type Logger struct {
	L *slog.Logger
}

// NewLogger returns a notifier writing to l, or slog.Default() when l is nil.
func NewLogger(l *slog.Logger) *Logger {
	if l == nil {
		l = slog.Default()
	}
	return &Logger{L: l}
}

// Notify logs n.
func (l *Logger) Notify(ctx context.Context, n Notice) error {
	level := slog.LevelInfo
	switch n.Level {
	case Warning:
		level = slog.LevelWarn
	case Blocking:
		level = slog.LevelError
	}

	attrs := []any{"code", n.Code, "message", n.Message}
	if n.Fee > 0 {
		attrs = append(attrs, "fee", n.Fee, "currency", n.Currency)
	}
	if n.Subject != "" {
		attrs = append(attrs, "subject", n.Subject)
	}
	l.L.Log(ctx, level, "notice", attrs...)
	return nil
}
