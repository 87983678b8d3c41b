package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapAdapter wraps a sugared zap logger to implement Logger. Key/value
// arguments map directly onto zap's *w methods.
type ZapAdapter struct {
	s *zap.SugaredLogger
}

// NewZapAdapter creates a Logger from *zap.Logger.
func NewZapAdapter(l *zap.Logger) *ZapAdapter {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapAdapter{s: l.Sugar()}
}

// NewZapLogger builds a production (json) or development (console) zap logger
// at the given level.
func NewZapLogger(level LogLevel, format string) (*ZapAdapter, error) {
	cfg := zap.NewProductionConfig()
	if format == "text" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel(level))
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return NewZapAdapter(l), nil
}

func zapLevel(l LogLevel) zapcore.Level {
	switch l {
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Debug logs a debug message.
func (z *ZapAdapter) Debug(msg string, args ...any) { z.s.Debugw(msg, args...) }

// Info logs an informational message.
func (z *ZapAdapter) Info(msg string, args ...any) { z.s.Infow(msg, args...) }

// Warn logs a warning message.
func (z *ZapAdapter) Warn(msg string, args ...any) { z.s.Warnw(msg, args...) }

// Error logs an error message.
func (z *ZapAdapter) Error(msg string, args ...any) { z.s.Errorw(msg, args...) }

// Sync flushes buffered entries.
func (z *ZapAdapter) Sync() error { return z.s.Sync() }
