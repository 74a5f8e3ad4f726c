// Package logging configures the process-wide zerolog logger and hands out
// component-scoped sub-loggers.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log is the process-wide base logger, set up by Initialize.
var Log zerolog.Logger

// Initialize configures the global logger. service names the binary
// ("broker" or "gateway") so log lines from both processes can be told
// apart when aggregated.
func Initialize(service, level string, pretty bool) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	Log = log.With().Str("service", service).Logger()

	Log.Info().
		Str("level", logLevel.String()).
		Bool("pretty", pretty).
		Msg("logger initialized")
}

// Broker returns a logger scoped to the websocket accept task.
func Broker() *zerolog.Logger {
	l := Log.With().Str("component", "broker").Logger()
	return &l
}

// Dispatch returns a logger scoped to the dispatch pass.
func Dispatch() *zerolog.Logger {
	l := Log.With().Str("component", "dispatch").Logger()
	return &l
}

// Sync returns a logger scoped to the journal sync task.
func Sync() *zerolog.Logger {
	l := Log.With().Str("component", "sync").Logger()
	return &l
}

// Gateway returns a logger scoped to the request pipeline.
func Gateway() *zerolog.Logger {
	l := Log.With().Str("component", "gateway").Logger()
	return &l
}

// OIDC returns a logger scoped to the OIDC/session subsystem.
func OIDC() *zerolog.Logger {
	l := Log.With().Str("component", "oidc").Logger()
	return &l
}
