package logger

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap.Logger so packages depend on one logging type.
type Logger struct {
	*zap.Logger
	config Config
}

var (
	globalLogger *Logger
	once         sync.Once
)

// NewLogger builds the process logger from the environment.
// Subsequent calls return the same instance.
func NewLogger() *Logger {
	once.Do(func() {
		globalLogger = New(ConfigFromEnv())
		globalLogger.Info("Logger initialized",
			zap.Stringer("level", globalLogger.config.Level),
			zap.String("encoding", globalLogger.config.Encoding),
			zap.String("file", globalLogger.config.File))
	})
	return globalLogger
}

// New builds a logger for an explicit config.
func New(cfg Config) *Logger {
	zl, err := cfg.zapConfig().Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing zap logger: %v. Falling back to production logger.\n", err)
		zl, _ = zap.NewProduction()
	}
	return &Logger{Logger: zl, config: cfg}
}

// NewNop returns a logger that discards everything. Used by tests.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop(), config: Config{Level: zapcore.InfoLevel, Encoding: EncodingJSON}}
}

// Named adds a new path segment to the logger's name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{Logger: l.Logger.Named(name), config: l.config}
}

// With adds structured context to the logger.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...), config: l.config}
}
