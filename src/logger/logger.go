package logger

import (
	"os"
	"strings"

	"market-relay/src/models"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// -----------------------------------------------------------------------------

// Logger provides structured logging functionality
type Logger struct {
	name  string
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance. A nil config yields an info level
// console logger.
func NewLogger(config *models.MConfig, name string) *Logger {
	levelName, format := "INFO", "console"
	if config != nil {
		if config.LogLevel != "" {
			levelName = config.LogLevel
		}
		if config.LogFormat != "" {
			format = config.LogFormat
		}
	}

	level := zap.NewAtomicLevelAt(parseLevel(levelName))

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	if format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level)
	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	return &Logger{
		name:  name,
		sugar: base.Named(name).Sugar(),
		level: level,
	}
}

// -----------------------------------------------------------------------------

// NewNop returns a logger that discards everything. Used by tests.
func NewNop() *Logger {
	return &Logger{
		name:  "nop",
		sugar: zap.NewNop().Sugar(),
		level: zap.NewAtomicLevel(),
	}
}

// -----------------------------------------------------------------------------

// Named returns a child logger sharing the same output and level.
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		name:  name,
		sugar: l.sugar.Named(name),
		level: l.level,
	}
}

// -----------------------------------------------------------------------------

// SetLevel changes the level of this logger and every child created by Named.
func (l *Logger) SetLevel(levelName string) {
	l.level.SetLevel(parseLevel(levelName))
}

// Level returns the current level name.
func (l *Logger) Level() string {
	return strings.ToUpper(l.level.Level().String())
}

// -----------------------------------------------------------------------------

func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// -----------------------------------------------------------------------------

func (l *Logger) Warning(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.sugar.Fatalf(format, args...)
}

// -----------------------------------------------------------------------------

// Sync flushes buffered entries.
func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}

// -----------------------------------------------------------------------------

func parseLevel(name string) zapcore.Level {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARNING", "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	case "CRITICAL", "FATAL":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
