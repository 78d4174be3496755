package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// ZapLogger adapts a zap.Logger to the Logger interface.
type ZapLogger struct {
	z *zap.Logger
}

// NewZapLogger builds a production zap logger tagged with component.
func NewZapLogger(component string) (*ZapLogger, error) {
	z, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	if component != "" {
		z = z.With(zap.String("component", component))
	}
	return &ZapLogger{z: z}, nil
}

// NewZapLoggerFrom wraps an existing zap.Logger.
func NewZapLoggerFrom(z *zap.Logger) *ZapLogger {
	return &ZapLogger{z: z}
}

func toZapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			out = append(out, zap.NamedError(f.Key, err))
			continue
		}
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

func (l *ZapLogger) Debug(msg string, fields ...Field) { l.z.Debug(msg, toZapFields(fields)...) }
func (l *ZapLogger) Info(msg string, fields ...Field)  { l.z.Info(msg, toZapFields(fields)...) }
func (l *ZapLogger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, toZapFields(fields)...) }
func (l *ZapLogger) Error(msg string, fields ...Field) { l.z.Error(msg, toZapFields(fields)...) }

func (l *ZapLogger) With(fields ...Field) Logger {
	return &ZapLogger{z: l.z.With(toZapFields(fields)...)}
}

// Sync flushes buffered log entries.
func (l *ZapLogger) Sync() error {
	return l.z.Sync()
}
