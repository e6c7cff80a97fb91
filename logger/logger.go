// Package logger decouples the modbus packages from any particular logging
// framework. The Logger interface covers leveled, structured logging with
// key-value pairs; a slog-backed implementation is provided and used by
// default.
package logger

// Level indicates the logging severity level.
type Level int8

const (
	// DebugLevel logs are typically voluminous, and are usually disabled in
	// production.
	DebugLevel Level = iota - 1
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual
	// human review.
	WarnLevel
	// ErrorLevel logs are high-priority. If an application is running
	// smoothly, it shouldn't generate any error-level logs.
	ErrorLevel
)

// Logger defines a common interface for logging. Any logging framework can be
// integrated by implementing it and passing the result to SetLogger or to the
// With* configuration options of the client and server.
type Logger interface {
	// Debug logs a message at DebugLevel.
	Debug(msg string, keysAndValues ...any)
	// Info logs a message at InfoLevel.
	Info(msg string, keysAndValues ...any)
	// Warn logs a message at WarnLevel.
	Warn(msg string, keysAndValues ...any)
	// Error logs a message at ErrorLevel.
	Error(msg string, keysAndValues ...any)
	// With creates a child logger and adds structured context to it.
	// Key-values added to the child don't affect the parent, and vice versa.
	With(keysAndValues ...any) Logger
	// Level returns the minimum enabled level for this logger.
	Level() Level
	// SetLevel sets the minimum enabled level for this logger.
	SetLevel(level Level)
}

var defLogger Logger = NewSlog(InfoLevel, false)

// GetLogger returns the package default logger.
func GetLogger() Logger { return defLogger }

// SetLogger replaces the package default logger. Passing nil is a no-op.
func SetLogger(l Logger) {
	if l != nil {
		defLogger = l
	}
}

// Debug logs a message at DebugLevel using the default logger.
func Debug(msg string, keysAndValues ...any) { defLogger.Debug(msg, keysAndValues...) }

// Info logs a message at InfoLevel using the default logger.
func Info(msg string, keysAndValues ...any) { defLogger.Info(msg, keysAndValues...) }

// Warn logs a message at WarnLevel using the default logger.
func Warn(msg string, keysAndValues ...any) { defLogger.Warn(msg, keysAndValues...) }

// Error logs a message at ErrorLevel using the default logger.
func Error(msg string, keysAndValues ...any) { defLogger.Error(msg, keysAndValues...) }
