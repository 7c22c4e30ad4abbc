// Package logger owns the process-wide zerolog logger. Packages log through
// the level helpers below so InitLogger can swap the sink at startup.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"archdiagram/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger writes JSON to stderr until InitLogger runs
var Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

var timeFormats = map[string]string{
	"unix":    zerolog.TimeFormatUnix,
	"iso8601": "2006-01-02T15:04:05.000Z07:00",
	"rfc3339": time.RFC3339,
}

// InitLogger rebuilds Logger from cfg. Close the returned closer on shutdown;
// it only holds a resource when cfg.Output is "file".
func InitLogger(cfg config.LogConfig) (io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level '%s': %w", cfg.Level, err)
	}

	sink, closer, err := openSink(cfg)
	if err != nil {
		return nil, err
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = timeFieldFormat(cfg.TimeFormat)
	if strings.EqualFold(cfg.Format, "console") {
		sink = zerolog.ConsoleWriter{Out: sink, TimeFormat: time.RFC3339}
	}

	Logger = zerolog.New(sink).With().Timestamp().Caller().Logger()
	// libraries that log through zerolog/log land in the same sink
	log.Logger = Logger

	Logger.Info().
		Str("level", level.String()).
		Str("format", cfg.Format).
		Str("output", cfg.Output).
		Msg("Logger ready")
	return closer, nil
}

func timeFieldFormat(name string) string {
	if f, ok := timeFormats[strings.ToLower(name)]; ok {
		return f
	}
	return time.RFC3339
}

// openSink resolves cfg.Output to a writer; anything unrecognised means stdout
func openSink(cfg config.LogConfig) (io.Writer, io.Closer, error) {
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		return os.Stderr, io.NopCloser(nil), nil
	case "file":
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file '%s': %w", cfg.FilePath, err)
		}
		return f, f, nil
	default:
		return os.Stdout, io.NopCloser(nil), nil
	}
}

func Info() *zerolog.Event  { return Logger.Info() }
func Debug() *zerolog.Event { return Logger.Debug() }
func Warn() *zerolog.Event  { return Logger.Warn() }
func Error() *zerolog.Event { return Logger.Error() }

// Fatal logs and exits the process once the event is sent
func Fatal() *zerolog.Event { return Logger.Fatal() }
