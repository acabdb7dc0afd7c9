// Package logging sets up the debug logger for the tianji CLI.
// Logs go to a rotated file in the config directory, never to the
// terminal, so they cannot interleave with streamed chat output.
package logging

import (
	"io"
	"log/slog"
	"path/filepath"

	"github.com/suyan/tianji-cli/internal/config"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const logFile = "debug.log"

// New returns a logger writing JSON lines to ~/.tianji/debug.log with
// rotation. When debug is off it discards everything.
func New(debug bool) *slog.Logger {
	if !debug {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	out := &lumberjack.Logger{
		Filename:   filepath.Join(config.Dir(), logFile),
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}

	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}
