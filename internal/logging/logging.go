package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns the process logger. Human-readable console output goes to
// stderr unless json is set; verbose lowers the level to debug. Extra
// writers, such as a log file, receive JSON lines.
func New(verbose, json bool, extra ...io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	var out io.Writer = os.Stderr
	if !json {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}
	return NewWriter(append([]io.Writer{out}, extra...)...).Level(level)
}

// NewWriter builds a logger over the given writers, fanning out when more
// than one is passed.
func NewWriter(writers ...io.Writer) zerolog.Logger {
	switch len(writers) {
	case 0:
		return zerolog.Nop()
	case 1:
		return zerolog.New(writers[0]).With().Timestamp().Logger()
	default:
		return zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	}
}

func WithComponent(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}
