package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nerrad567/brickplay-core/internal/infrastructure/config"
)

// ServiceName is attached to every entry as the "service" field.
const ServiceName = "brickplay"

// Logger is a slog.Logger that also owns its output, so a rotating log
// file can be flushed and released on shutdown. Safe for concurrent use.
type Logger struct {
	*slog.Logger

	closer io.Closer // nil unless output is "file"
}

// New builds a logger from the logging section of config.yaml. Every entry
// carries the service name and version.
func New(cfg config.LoggingConfig, version string) *Logger {
	w, closer := openOutput(cfg)
	l := newWithWriter(cfg, version, w)
	l.closer = closer
	return l
}

// openOutput resolves cfg.Output. Anything other than stderr or file
// writes to stdout.
func openOutput(cfg config.LoggingConfig) (io.Writer, io.Closer) {
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		return os.Stderr, nil
	case "file":
		f := &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSize,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAge,
			Compress:   cfg.File.Compress,
		}
		return f, f
	default:
		return os.Stdout, nil
	}
}

func newWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	}
	l := slog.New(h).With("service", ServiceName, "version", version)
	return &Logger{Logger: l}
}

// parseLevel accepts slog's level names in any case, plus "warning".
// Anything unrecognised logs at info.
func parseLevel(name string) slog.Level {
	if strings.EqualFold(name, "warning") {
		return slog.LevelWarn
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// With returns a child logger with extra attributes, e.g.
// log.With("component", "player"). It shares the parent's output.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), closer: l.closer}
}

// Close releases the rotating log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Default logs JSON at info to stdout. It is for code that runs before
// the config is loaded, and for tests.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}
