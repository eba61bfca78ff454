// Package obs provides structured logging for the storage engine. It
// wraps zap with module-scoped child loggers, mirroring the teacher's
// slog-based log package (module child loggers via With) but backed by
// zap, the pack's dominant ambient-logging choice. Logging here is
// strictly diagnostic: layout-freelist misses, unsafe field migrations
// during rescheme and storage disposal, never the hot read/write path.
package obs

import "go.uber.org/zap"

// Logger wraps zap.Logger with module-scoped child-logger convenience.
type Logger struct {
	inner *zap.Logger
}

var defaultLogger *Logger

func init() {
	z, err := zap.NewProduction()
	if err != nil {
		z = zap.NewNop()
	}
	defaultLogger = &Logger{inner: z}
}

// New wraps an existing *zap.Logger. Passing nil yields a no-op logger.
func New(z *zap.Logger) *Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &Logger{inner: z}
}

// SetDefault replaces the package-level default logger.
func SetDefault(l *Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// Default returns the current package-level default logger.
func Default() *Logger {
	return defaultLogger
}

// Module returns a child logger tagged with the given subsystem name
// (e.g. "registry", "rescheme", "bytepool").
func (l *Logger) Module(name string) *Logger {
	return &Logger{inner: l.inner.With(zap.String("module", name))}
}

// With returns a child logger with additional structured fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{inner: l.inner.With(fields...)}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, fields ...zap.Field) { l.inner.Debug(msg, fields...) }

// Info logs at info level.
func (l *Logger) Info(msg string, fields ...zap.Field) { l.inner.Info(msg, fields...) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, fields ...zap.Field) { l.inner.Warn(msg, fields...) }

// Error logs at error level.
func (l *Logger) Error(msg string, fields ...zap.Field) { l.inner.Error(msg, fields...) }

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error { return l.inner.Sync() }
