// Package logging builds the process-wide zap logger and a logr.Logger
// bridge for any component (model clients, store drivers) that expects the
// generic logr interface rather than zap's concrete one.
package logging

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls logger construction. Development enables human-readable,
// colorized console output with stack traces on Warn+; production emits
// JSON at the configured level.
type Config struct {
	Development bool
	Level       string // debug, info, warn, error; defaults to info
}

// New builds a *zap.Logger per cfg.
func New(cfg Config) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	if cfg.Development {
		zcfg := zap.NewDevelopmentConfig()
		zcfg.Level = zap.NewAtomicLevelAt(level)
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zcfg.Build()
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zcfg.Build()
}

// Must is New, panicking on construction failure. Intended for process
// startup where a broken logging config is fatal anyway.
func Must(cfg Config) *zap.Logger {
	log, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return log
}

// Logr bridges a *zap.Logger to the generic logr.Logger interface.
func Logr(z *zap.Logger) logr.Logger {
	return zapr.NewLogger(z)
}

func parseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("parse log level %q: %w", s, err)
	}
	return level, nil
}
