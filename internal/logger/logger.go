// Package logger wraps zerolog with the process-wide Init/Config pattern
// used across the service: one global Logger, configured once at startup,
// with small per-component sub-loggers for attributing log lines to a
// pipeline stage (store, embedding, chat model, rerank, filter) without
// threading a logger through every function signature.
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is the process-wide logger. Init replaces it; until Init is
// called it behaves like zerolog's own default logger.
var Logger = log.Logger

// Config controls the global logger's level, format, and verbosity.
type Config struct {
	Level        string `json:"level" yaml:"level"`
	Format       string `json:"format" yaml:"format"` // "json" or "pretty"
	TimeFormat   string `json:"time_format" yaml:"time_format"`
	ReportCaller bool   `json:"report_caller" yaml:"report_caller"`
}

// Init configures the global Logger from config. It is expected to run
// once, early in cmd/server/main.go.
func Init(config Config) {
	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = os.Stdout
	if config.Format == "pretty" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: config.TimeFormat,
			NoColor:    false,
		}
	}

	if config.TimeFormat == "" {
		zerolog.TimeFieldFormat = time.RFC3339
	} else {
		zerolog.TimeFieldFormat = config.TimeFormat
	}

	contextLogger := zerolog.New(output).
		Level(level).
		With().
		Timestamp()

	if config.ReportCaller {
		contextLogger = contextLogger.Caller()
	}

	Logger = contextLogger.Logger()
	log.Logger = Logger
}

// Component returns a child logger tagged with a "component" field, e.g.
// logger.Component("hybrid-engine") or logger.Component("store.qdrant").
// Handlers and engines hold one of these instead of calling the global
// Logger directly, so every line is attributable to a pipeline stage.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// Debug starts a debug-level log event on the global Logger.
func Debug() *zerolog.Event {
	return Logger.Debug()
}

// Info starts an info-level log event on the global Logger.
func Info() *zerolog.Event {
	return Logger.Info()
}

// Warn starts a warn-level log event on the global Logger.
func Warn() *zerolog.Event {
	return Logger.Warn()
}

// Error starts an error-level log event on the global Logger.
func Error() *zerolog.Event {
	return Logger.Error()
}

// Fatal starts a fatal-level log event on the global Logger; the process
// exits after it is written.
func Fatal() *zerolog.Event {
	return Logger.Fatal()
}

// Ctx retrieves the logger stored in ctx, if any.
func Ctx(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// WithContext returns a copy of ctx carrying the global Logger.
func WithContext(ctx context.Context) context.Context {
	return Logger.WithContext(ctx)
}
