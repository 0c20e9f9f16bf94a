// Package logging wires the process-wide zerolog logger.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger. Set pretty for human-readable
// console output (development); otherwise logs are newline-delimited JSON.
func Init(pretty bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
		return
	}

	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// Component returns a sub-logger tagged with the owning component name, the
// way every package in this repo identifies itself in log output.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
