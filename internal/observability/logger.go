// Package observability owns the process-wide CLI logger.
package observability

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu sync.Mutex

	// CLILogger is the logger commands narrate through. It is a no-op
	// logger until InitCLILogger runs.
	CLILogger = zap.NewNop()
)

// InitCLILogger replaces CLILogger with a console logger writing to stderr.
// Verbose enables debug output.
func InitCLILogger(name string, verbose bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	return SetCLILogger(NewCLILogger(zapcore.Lock(os.Stderr), name, level))
}

// SetCLILogger installs logger as CLILogger and returns it.
func SetCLILogger(logger *zap.Logger) *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = zap.NewNop()
	}
	CLILogger = logger
	return logger
}

// NewCLILogger builds a console-encoded logger named name at level.
//
// Lines carry the level and message followed by structured fields, with no
// timestamp or caller.
func NewCLILogger(w zapcore.WriteSyncer, name string, level zapcore.Level) *zap.Logger {
	encCfg := zapcore.EncoderConfig{
		LevelKey:         "level",
		NameKey:          "logger",
		MessageKey:       "msg",
		StacktraceKey:    "",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), w, zap.NewAtomicLevelAt(level))
	return zap.New(core).Named(name)
}

// ParseLevel converts a config level name (debug, info, warn, error).
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}
