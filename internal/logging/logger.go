// Package logging builds the zerolog loggers used across cofund.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultLevel is used when no level is configured.
const DefaultLevel = "warn"

// New returns a logger writing to w at the named level. Console mode renders
// human-readable lines; otherwise each line is JSON. An unknown level name is
// returned as an error alongside a logger at DefaultLevel.
func New(w io.Writer, level string, console bool) (zerolog.Logger, error) {
	lvl, err := ParseLevel(level)

	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	logger := zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Logger()
	return logger, err
}

// NewAuto returns a logger on w, in console mode when w is a terminal.
func NewAuto(w io.Writer, level string) (zerolog.Logger, error) {
	f, ok := w.(*os.File)
	return New(w, level, ok && isTerminal(f))
}

// ParseLevel maps a level name to a zerolog level. The empty string means
// DefaultLevel.
func ParseLevel(level string) (zerolog.Level, error) {
	if strings.TrimSpace(level) == "" {
		level = DefaultLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		fallback, _ := zerolog.ParseLevel(DefaultLevel)
		return fallback, err
	}
	return lvl, nil
}

// Component returns a child logger tagged with component.
func Component(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
