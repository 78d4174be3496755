package logging

// Logger is a deliberately small, framework-agnostic logging interface.
// Components depend on it rather than on a concrete logger so tests can
// inject recording doubles.
type Logger interface {
	// Debug logs a debug-level message.
	Debug(msg string, fields ...Field)

	// Info logs an informational message.
	Info(msg string, fields ...Field)

	// Warn logs a warning.
	Warn(msg string, fields ...Field)

	// Error logs an error.
	Error(msg string, fields ...Field)

	// With returns a child logger with persistent fields.
	With(fields ...Field) Logger
}

// Field is a simple key/value pair for structured logging fields.
type Field struct {
	Key   string
	Value any
}

// New returns the logger for the given format. "zap" selects the zap backed
// logger; anything else falls back to JSON lines on stdout.
func New(format, component string) (Logger, error) {
	switch format {
	case "zap":
		return NewZapLogger(component)
	default:
		return NewStdoutLogger(component), nil
	}
}
