// Package logger decouples go-gmc from any particular logging framework.
//
// The protocol packages log retries, short reads and connection failures
// through the Logger interface; applications plug in their own
// implementation or use the slog-based default.
package logger

// Level indicates the logging severity.
type Level = int8

const (
	// DebugLevel logs per-exchange details such as frames and raw replies.
	// Usually disabled in production.
	DebugLevel Level = iota - 1
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs recoverable protocol conditions such as short reads.
	WarnLevel
	// ErrorLevel logs failed operations and invalidated connections.
	ErrorLevel
	// FatalLevel logs a message and then terminates the process.
	FatalLevel
)

// Logger is the common logging interface used throughout go-gmc.
type Logger interface {
	// Debug logs a message at DebugLevel with optional key-value pairs.
	Debug(msg string, keysAndValues ...any)
	// Info logs a message at InfoLevel with optional key-value pairs.
	Info(msg string, keysAndValues ...any)
	// Warn logs a message at WarnLevel with optional key-value pairs.
	Warn(msg string, keysAndValues ...any)
	// Error logs a message at ErrorLevel with optional key-value pairs.
	Error(msg string, keysAndValues ...any)
	// Fatal logs a message at FatalLevel and then calls os.Exit(1),
	// even if logging at FatalLevel is disabled.
	Fatal(msg string, keysAndValues ...any)
	// With returns a child logger with the given structured context attached.
	With(keysAndValues ...any) Logger
	// Level returns the minimum enabled level for this logger.
	Level() Level
	// SetLevel sets the minimum enabled level for this logger.
	SetLevel(level Level)
}
