// Package logging contains the structured logger used by every motion-control component.
package logging

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// Logger is the logging interface handed to every component at construction.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	// Sublogger returns a child logger named "<parent>.<subname>" sharing the parent's outputs.
	Sublogger(subname string) Logger
	SetLevel(level Level)
	GetLevel() Level
	// Enabled reports whether a message at the given level would be emitted. Callers use it to
	// skip building expensive per-tick diagnostics.
	Enabled(level Level) bool
	AsZap() *zap.SugaredLogger
	Sync() error
}

// Format selects how log entries are encoded.
type Format string

const (
	// ConsoleFormat writes colored, human readable lines.
	ConsoleFormat Format = "console"
	// JSONFormat writes one JSON object per entry.
	JSONFormat Format = "json"
)

// FormatFromString parses "console" or "json", case insensitively.
func FormatFromString(inp string) (Format, error) {
	switch f := Format(strings.ToLower(inp)); f {
	case ConsoleFormat, JSONFormat:
		return f, nil
	}
	return ConsoleFormat, errors.Errorf("unknown log format: %q", inp)
}

// NewLoggerConfig derives a stdout logger config from zap's production preset. Sampling and
// stacktraces are disabled; console output colors the level.
func NewLoggerConfig(level Level, format Format) zap.Config {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level.AsZap())
	config.Encoding = string(format)
	config.Sampling = nil
	config.DisableStacktrace = true
	config.OutputPaths = []string{"stdout"}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	if format == ConsoleFormat {
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return config
}

// NewLogger returns a console logger that outputs Info+ logs to stdout.
func NewLogger(name string) Logger {
	return NewLoggerWithFormat(name, INFO, ConsoleFormat)
}

// NewDebugLogger returns a console logger that outputs Debug+ logs to stdout.
func NewDebugLogger(name string) Logger {
	return NewLoggerWithFormat(name, DEBUG, ConsoleFormat)
}

// NewLoggerWithFormat returns a stdout logger at level encoded as format.
func NewLoggerWithFormat(name string, level Level, format Format) Logger {
	config := NewLoggerConfig(level, format)
	return &impl{
		name:  name,
		level: config.Level,
		base:  zap.Must(config.Build(zap.AddCallerSkip(1))),
	}
}

// NewBlankLogger returns a logger that discards everything.
func NewBlankLogger(name string) Logger {
	return &impl{name: name, level: zap.NewAtomicLevelAt(zapcore.DebugLevel), base: zap.NewNop()}
}

// NewTestLogger returns a new logger that outputs Debug+ logs through the test's `Log` method.
func NewTestLogger(tb testing.TB) Logger {
	logger, _ := NewObservedTestLogger(tb)
	return logger
}

// NewObservedTestLogger is like NewTestLogger but also saves logs to an in memory observer.
func NewObservedTestLogger(tb testing.TB) (Logger, *observer.ObservedLogs) {
	atomicLevel := zap.NewAtomicLevelAt(zapcore.DebugLevel)
	observerCore, observedLogs := observer.New(atomicLevel)
	base := zaptest.NewLogger(tb,
		zaptest.Level(atomicLevel),
		zaptest.WrapOptions(
			zap.AddCaller(),
			zap.AddCallerSkip(1),
			zap.WrapCore(func(c zapcore.Core) zapcore.Core {
				return zapcore.NewTee(c, observerCore)
			}),
		),
	)
	return &impl{level: atomicLevel, base: base}, observedLogs
}
