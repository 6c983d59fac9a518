// Package logging holds the process-wide zerolog logger. Events are JSON on
// stderr by default; Pretty switches to console output for interactive runs.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level is the minimum severity a logged event needs to be emitted.
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
)

// Config selects the level and output shape of the process logger.
type Config struct {
	Level Level
	// Output defaults to os.Stderr.
	Output io.Writer
	// Pretty renders human-readable console lines instead of JSON.
	Pretty bool
}

var logger zerolog.Logger

// Init replaces the process logger. It is called at startup and again when
// the configured log level changes at runtime.
func Init(cfg Config) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	logger = zerolog.New(out).Level(cfg.Level).With().Timestamp().Logger()
}

// ParseLevel maps a configured level name (DEBUG, INFO, WARN, ERROR, any
// case) to its zerolog level. Unrecognized names fall back to InfoLevel.
func ParseLevel(name string) Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || lvl == zerolog.NoLevel {
		return InfoLevel
	}
	return lvl
}

func Debug() *zerolog.Event { return logger.Debug() }
func Info() *zerolog.Event  { return logger.Info() }
func Warn() *zerolog.Event  { return logger.Warn() }
func Error() *zerolog.Event { return logger.Error() }

func init() {
	Init(Config{Level: InfoLevel})
}
