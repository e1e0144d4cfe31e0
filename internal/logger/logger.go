// Package logger provides a zerolog wrapper with CLI-friendly defaults.
// Logs go to stderr so stdout stays free for artifacts and JSON output.
package logger

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the logger
type Options struct {
	Level     string
	Format    string // "console" or "json"
	Component string
	Writer    io.Writer
}

// Logger is the project-wide logging type
type Logger = zerolog.Logger

var root atomic.Pointer[zerolog.Logger]

// New builds a logger from opt without touching the process-wide root.
func New(opt Options) *Logger {
	var w io.Writer = os.Stderr
	if opt.Writer != nil {
		w = opt.Writer
	}
	if strings.ToLower(opt.Format) != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	ctx := zerolog.New(w).Level(parseLevel(opt.Level)).With().Timestamp()
	if opt.Component != "" {
		ctx = ctx.Str("component", opt.Component)
	}
	log := ctx.Logger()
	return &log
}

// Init builds the root logger. Later calls replace it.
func Init(opt Options) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log := New(opt)
	root.Store(log)
	return log
}

// Get returns the root logger, or a disabled one before Init.
func Get() *Logger {
	if l := root.Load(); l != nil {
		return l
	}
	return Nop()
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	l := zerolog.Nop()
	return &l
}

// OrNop returns l, or a disabled logger when l is nil.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// parseLevel supports string-only levels
func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "off", "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
