// Package logger provides the logging abstraction used by daokit.
// Records are structured key-value pairs; log/slog is supported out of the box.
package logger

import "log/slog"

// Category keys attached to records by the data-access layer.
const (
	CategoryCommand     = "daokit.command"
	CategoryConnection  = "daokit.connection"
	CategorySchema      = "daokit.schema"
	CategoryTransaction = "daokit.transaction"
	CategoryCache       = "daokit.cache"
	CategoryAudit       = "daokit.audit"
)

// Logger defines the logging interface for daokit.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NoopLogger is a logger that does nothing. It is the default.
type NoopLogger struct{}

// Debug does nothing.
func (n *NoopLogger) Debug(_ string, _ ...any) {}

// Info does nothing.
func (n *NoopLogger) Info(_ string, _ ...any) {}

// Warn does nothing.
func (n *NoopLogger) Warn(_ string, _ ...any) {}

// Error does nothing.
func (n *NoopLogger) Error(_ string, _ ...any) {}

// SlogAdapter wraps log/slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new logger adapter wrapping an slog.Logger.
// A nil logger falls back to slog.Default().
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAdapter{logger: logger}
}

// Debug logs a debug-level message with structured key-value pairs.
func (a *SlogAdapter) Debug(msg string, args ...any) {
	a.logger.Debug(msg, args...)
}

// Info logs an info-level message with structured key-value pairs.
func (a *SlogAdapter) Info(msg string, args ...any) {
	a.logger.Info(msg, args...)
}

// Warn logs a warning-level message with structured key-value pairs.
func (a *SlogAdapter) Warn(msg string, args ...any) {
	a.logger.Warn(msg, args...)
}

// Error logs an error-level message with structured key-value pairs.
func (a *SlogAdapter) Error(msg string, args ...any) {
	a.logger.Error(msg, args...)
}

// categorized prefixes every record with a category pair.
type categorized struct {
	next     Logger
	category string
}

// WithCategory returns a Logger that tags every record with category.
func WithCategory(l Logger, category string) Logger {
	if l == nil {
		l = &NoopLogger{}
	}
	if _, ok := l.(*NoopLogger); ok {
		return l
	}
	return &categorized{next: l, category: category}
}

func (c *categorized) with(args []any) []any {
	return append([]any{"category", c.category}, args...)
}

func (c *categorized) Debug(msg string, args ...any) { c.next.Debug(msg, c.with(args)...) }
func (c *categorized) Info(msg string, args ...any)  { c.next.Info(msg, c.with(args)...) }
func (c *categorized) Warn(msg string, args ...any)  { c.next.Warn(msg, c.with(args)...) }
func (c *categorized) Error(msg string, args ...any) { c.next.Error(msg, c.with(args)...) }
