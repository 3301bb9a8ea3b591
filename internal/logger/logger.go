// Package logger wraps zap's sugared logger with key/value helpers.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "health-analysis"

// Logger is a structured logger shared by the service components. Methods take a
// message followed by alternating keys and values.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New builds a logger. mode "prod"/"production" emits JSON at info level; anything else
// uses the console development encoder at debug level. Every entry carries the service name.
func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.InitialFields = map[string]interface{}{"service": serviceName}

	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{sugar: base.Sugar()}, nil
}

// NewNop returns a logger that discards everything. Used by tests and as a default.
func NewNop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

func newWithCore(core zapcore.Core) *Logger {
	return &Logger{sugar: zap.New(core).Sugar()}
}

// Sync flushes buffered entries. Errors from syncing a terminal are ignored.
func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// Info logs at info level.
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Error logs at error level.
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// Fatal logs at fatal level and exits the process.
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.sugar.Fatalw(msg, keysAndValues...)
}

// With returns a child logger that adds keysAndValues to every entry.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{sugar: l.sugar.With(keysAndValues...)}
}
