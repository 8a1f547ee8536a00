package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/pbexport/internal/infrastructure/config"
)

// Logger wraps slog.Logger. It satisfies the narrow Logger interfaces of
// the export, mqtt and influxdb packages.
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing to the configured stream.
//
// Parameters:
//   - cfg: Logging configuration
//   - version: Application version for the default field
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	output := io.Writer(os.Stderr)
	if strings.EqualFold(cfg.Output, "stdout") {
		output = os.Stdout
	}
	return NewWithWriter(output, cfg, version)
}

// NewWithWriter creates a Logger writing to w, ignoring cfg.Output.
func NewWithWriter(w io.Writer, cfg config.LoggingConfig, version string) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "pbexport"),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(handler)}
}

// parseLevel converts a string log level to slog.Level. Unknown values
// map to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger with additional default attributes.
//
// Example:
//
//	pvLogger := logger.With("pv", pv)
//	pvLogger.Info("exported") // Includes pv=...
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default creates a logger for use before configuration is loaded: text on
// stderr at info level.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "text", Output: "stderr"}, "dev")
}
