package logger

// nopLogger discards everything. Handy default for library code paths
// that must not emit output, and for tests.
type nopLogger struct {
	level Level
}

var _ Logger = (*nopLogger)(nil)

// NewNop returns a Logger that discards all messages.
func NewNop() Logger {
	return &nopLogger{level: InfoLevel}
}

func (l *nopLogger) Debug(msg string, keysAndValues ...any) {}
func (l *nopLogger) Info(msg string, keysAndValues ...any)  {}
func (l *nopLogger) Warn(msg string, keysAndValues ...any)  {}
func (l *nopLogger) Error(msg string, keysAndValues ...any) {}
func (l *nopLogger) Fatal(msg string, keysAndValues ...any) {}

func (l *nopLogger) With(keysAndValues ...any) Logger { return l }

func (l *nopLogger) Level() Level { return l.level }

func (l *nopLogger) SetLevel(level Level) { l.level = level }
