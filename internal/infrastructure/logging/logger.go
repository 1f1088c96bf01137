package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
)

// ServiceName is attached to every record as the "service" attribute.
const ServiceName = "graylogic-node"

// Logger wraps slog.Logger with the node's default attributes.
//
// It satisfies the narrow Logger interfaces declared by the core packages
// (link, session, comm, entity, announce) so one value can be handed to all
// of them.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New creates a Logger from the logging section of config.yaml.
//
// Parameters:
//   - cfg: Logging configuration
//   - version: Build version, attached as "version"
//   - bootID: Identifier of this process run, attached as "boot_id" when non-empty
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version, bootID string) *Logger {
	return newWithWriter(cfg, outputFor(cfg.Output), version, bootID)
}

func newWithWriter(cfg config.LoggingConfig, w io.Writer, version, bootID string) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	attrs := []slog.Attr{
		slog.String("service", ServiceName),
		slog.String("version", version),
	}
	if bootID != "" {
		attrs = append(attrs, slog.String("boot_id", bootID))
	}

	return &Logger{Logger: slog.New(handler.WithAttrs(attrs))}
}

func outputFor(name string) io.Writer {
	if strings.EqualFold(name, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

// parseLevel converts a configured level name to slog.Level.
// Unrecognised names fall back to info.
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

// With returns a Logger carrying additional attributes.
//
// Example:
//
//	linkLog := logger.With("component", "link")
//	linkLog.Warn("attach failed", "attempt", 3) // includes component=link
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}
