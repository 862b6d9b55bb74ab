// Package logger holds the process-wide zap logger. Values are passed as
// alternating key/value pairs.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// init builds the default logger. LOG_ENV=production switches to JSON
// output; LOG_LEVEL overrides the level of the chosen profile.
func init() {
	config := zap.NewDevelopmentConfig()
	if os.Getenv("LOG_ENV") == "production" {
		config = zap.NewProductionConfig()
	}

	if lvl := strings.TrimSpace(os.Getenv("LOG_LEVEL")); lvl != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(strings.ToLower(lvl))); err == nil {
			config.Level = zap.NewAtomicLevelAt(level)
		}
	}

	if _, err := NewLogger(config); err != nil {
		panic(err)
	}
}

// SetService tags every later entry with the binary that wrote it.
func SetService(name string) {
	l := GetLogger()
	zapLogger = &ZapLogger{log: l.log.With("service", name)}
}

// With returns a child logger for code that logs many entries about the same
// subject.
func With(values ...any) *ZapLogger {
	return GetLogger().With(values...)
}

func Info(msg string, values ...any) {
	GetLogger().Info(msg, values...)
}

func Warn(msg string, values ...any) {
	GetLogger().Warn(msg, values...)
}

func Error(msg string, values ...any) {
	GetLogger().Error(msg, values...)
}

func Debug(msg string, values ...any) {
	GetLogger().Debug(msg, values...)
}

func Panic(msg string, values ...any) {
	GetLogger().Panic(msg, values...)
}

func Fatal(error error, values ...any) {
	GetLogger().Fatal(error, values...)
}

// Sync flushes buffered entries; call it before the process exits.
func Sync() {
	_ = GetLogger().log.Sync()
}
