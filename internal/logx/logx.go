/*
Package logx wraps zerolog with the process-wide logger used by every component.

Init configures the level and output format once at startup; components derive
child loggers through Component and attach their own context fields.
*/
package logx

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global logger. Console output is human readable and
// intended for development; otherwise logs are JSON lines on stdout.
func Init(level string, console bool) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("logx: parse level %q: %w", level, err)
	}

	var out io.Writer = os.Stdout
	if console {
		out = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return nil
}

// Logger returns the global logger.
func Logger() *zerolog.Logger {
	return &log.Logger
}

// Component returns a child of the global logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}

// Nop returns a logger that discards everything, mainly for tests.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
