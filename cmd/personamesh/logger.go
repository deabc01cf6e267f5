package main

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"

	"github.com/hupe1980/personamesh/logging"
)

// createLogger builds the process logger: tinted text output by default, or a
// scope-carrying JSON logger when format is "json".
func createLogger(logLevel, logFormat string) logging.Logger {
	if logFormat == "json" {
		return logging.NewLogger(&logging.LoggerConfig{
			Level:     parseHarnessLevel(logLevel),
			Format:    "json",
			Output:    os.Stderr,
			Component: "personamesh",
		})
	}
	return logging.NewSlogAdapter(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: parseLogLevel(logLevel),
	})))
}

func parseHarnessLevel(levelStr string) logging.LogLevel {
	switch levelStr {
	case "debug":
		return logging.LogLevelDebug
	case "warn":
		return logging.LogLevelWarn
	case "error":
		return logging.LogLevelError
	default:
		return logging.LogLevelInfo
	}
}

// parseLogLevel converts string log level to slog.Level
func parseLogLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
