package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// Log is the package-level logger instance. It starts disabled so that
// packages importing logger before InitLogger runs (e.g. in tests) don't
// write to stdout by accident.
var Log zerolog.Logger = zerolog.New(nil).Level(zerolog.Disabled)

// InitLogger initializes the global logger. isDevelopment selects a
// human-friendly console writer; production builds should pass false to get
// newline-delimited JSON suitable for log aggregation. level sets the
// global verbosity threshold (see zerolog.ParseLevel); callers that don't
// track a configured level can pass zerolog.DebugLevel/zerolog.InfoLevel to
// match isDevelopment's previous implicit default.
func InitLogger(isDevelopment bool, level zerolog.Level) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	zerolog.SetGlobalLevel(level)

	if isDevelopment {
		Log = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05.000000",
		}).With().Timestamp().Caller().Logger()
		return
	}

	Log = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// Get returns the global logger instance, useful for handing it to
// collaborators that accept a *zerolog.Logger directly.
func Get() *zerolog.Logger {
	return &Log
}

// Component returns a child logger tagged with a component name, the way
// each piece of the ingestion pipeline (decoder, transformer, driver,
// updater) identifies itself in structured log output.
func Component(name string) zerolog.Logger {
	return Log.With().Str("component", name).Logger()
}
