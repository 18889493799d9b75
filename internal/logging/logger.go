// Package logging is the process-wide structured logger facade for agora.
//
// It wraps go.uber.org/zap behind a small Level type matching the
// --min-log-level CLI values (disabled, warning, info, pedantic, debug)
// so the rest of the core never imports zap directly.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is one of the five --min-log-level values accepted on the CLI.
type Level string

const (
	LevelDisabled Level = "disabled"
	LevelWarning  Level = "warning"
	LevelInfo     Level = "info"
	LevelPedantic Level = "pedantic"
	LevelDebug    Level = "debug"
)

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelWarning:
		return zapcore.WarnLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelPedantic, LevelDebug:
		return zapcore.DebugLevel
	default:
		return zapcore.WarnLevel
	}
}

// Logger is the process-wide facade; Manager, RemoteHandler and every
// Application Handler are constructed with a reference to one instance.
type Logger struct {
	*zap.SugaredLogger
	level Level
}

// New constructs a Logger. toFile, when non-empty, is a path the sink is
// redirected to instead of stdout (--log-to-file / --log-file).
func New(level Level, toFile string) (*Logger, error) {
	if level == LevelDisabled {
		return &Logger{SugaredLogger: zap.NewNop().Sugar(), level: level}, nil
	}

	sink := zapcore.AddSync(os.Stdout)
	if toFile != "" {
		f, err := os.OpenFile(toFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		sink = zapcore.AddSync(f)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), sink, level.zapLevel())
	opts := []zap.Option{}
	if level == LevelDebug {
		opts = append(opts, zap.AddCaller())
	}

	return &Logger{SugaredLogger: zap.New(core, opts...).Sugar(), level: level}, nil
}

// NewNop returns a safe no-op logger, used as the default before a real
// Logger is constructed by the CLI entry point, mirroring the teacher's
// package-level safe-default discipline without a mutable global.
func NewNop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar(), level: LevelDisabled}
}

// Named returns a child logger for a component, e.g. log.Named("remote").
func (l *Logger) Named(name string) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.Named(name), level: l.level}
}

// Sync flushes any buffered log entries. Safe to call on shutdown.
func (l *Logger) Sync() error {
	if l == nil || l.SugaredLogger == nil {
		return nil
	}
	return l.SugaredLogger.Sync()
}
