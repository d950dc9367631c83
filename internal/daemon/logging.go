package daemon

import (
	"log/slog"
	"os"

	"git.home.luguber.info/inful/audiohub/internal/config"
)

// logLevel is mutable so a config reload can change verbosity without
// rebuilding the handler.
var logLevel = new(slog.LevelVar)

// SetupLogging installs the default slog handler per the configuration.
func SetupLogging(cfg config.LoggingConfig) {
	logLevel.Set(parseLevel(cfg.Level))

	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// SetLogLevel adjusts verbosity at runtime.
func SetLogLevel(level string) {
	logLevel.Set(parseLevel(level))
}

func parseLevel(level string) slog.Level {
	switch level {
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
