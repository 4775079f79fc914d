// Package logger builds the process-wide zap logger. Everything goes to
// stderr so stdout stays a clean single-line feed for the status bar.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Accepted --log-level values.
const (
	OffLevel   = "off"
	ErrorLevel = "error"
	WarnLevel  = "warn"
	InfoLevel  = "info"
	DebugLevel = "debug"
	TraceLevel = "trace"
)

// ParseLevel converts a textual level to a zapcore.Level. "trace" maps to
// debug (zap has nothing finer) and "off" maps to a level above fatal so
// nothing short of a panic is written.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case OffLevel:
		return zapcore.FatalLevel + 1, nil
	case ErrorLevel:
		return zapcore.ErrorLevel, nil
	case WarnLevel, "warning":
		return zapcore.WarnLevel, nil
	case InfoLevel, "":
		return zapcore.InfoLevel, nil
	case DebugLevel, TraceLevel:
		return zapcore.DebugLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// New returns a sugared logger writing to stderr at the given level.
func New(level string) (*zap.SugaredLogger, error) {
	return NewWithWriter(level, os.Stderr)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(level string, w io.Writer) (*zap.SugaredLogger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return zap.New(newConsoleCore(lvl, w)).Sugar(), nil
}

func newConsoleCore(level zapcore.Level, w io.Writer) zapcore.Core {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder

	encoder := zapcore.NewConsoleEncoder(cfg)
	ws := zapcore.Lock(zapcore.AddSync(w))
	return zapcore.NewCore(encoder, ws, zap.NewAtomicLevelAt(level))
}
