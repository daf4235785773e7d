// Package logging configures the process-wide zap logger. The CLI is silent
// by default; --verbose (or PACX_DEBUG=1) switches to a console encoder at
// debug level writing to stderr.
package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.Mutex
	logger = zap.NewNop()
)

// Init installs the global logger. Call once from the root command's
// PersistentPreRun after flags are parsed.
func Init(verbose bool) {
	mu.Lock()
	defer mu.Unlock()

	if !verbose && os.Getenv("PACX_DEBUG") == "" {
		logger = zap.NewNop()
		return
	}

	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		zapcore.Lock(os.Stderr),
		zap.DebugLevel,
	)
	logger = zap.New(core)
}

// L returns the current global logger.
func L() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}
