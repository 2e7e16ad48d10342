// Package logging wires the core and its front ends to a single
// zerolog.Logger, replacing the teacher's os.Getenv-gated fmt.Printf/
// log.Printf debug prints with structured, leveled logging.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a console-friendly zerolog.Logger at the given level name
// ("debug", "info", "warn", "error"; anything else falls back to "info").
func New(levelName string, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		level = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: out, TimeFormat: time.Stamp}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// Nop returns a logger that discards everything, used as the Machine's
// zero-value default so SetLogger is optional.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
