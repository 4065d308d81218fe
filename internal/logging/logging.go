// Package logging builds the slog loggers used by the CLI.
//
// The text format renders through charmbracelet/log for humans; logfmt and
// json use the standard slog handlers for machines.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

type (
	// Format selects the log line format.
	Format string
	// Level names a log level.
	Level string

	contextKey struct{}
)

// Formats and levels.
const (
	FormatJSON   Format = "json"
	FormatLogfmt Format = "logfmt"
	FormatText   Format = "text"

	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
)

var (
	ErrUnknownLogLevel  = errors.New("unknown log level")
	ErrUnknownLogFormat = errors.New("unknown log format")

	AllFormats = []string{string(FormatText), string(FormatLogfmt), string(FormatJSON)}
	AllLevels  = []string{string(LevelError), string(LevelWarn), string(LevelInfo), string(LevelDebug)}
)

// New creates a logger writing to w.
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	h, err := NewHandler(w, level, format)
	if err != nil {
		return nil, err
	}
	return slog.New(h), nil
}

// NewHandler creates a [slog.Handler] from level and format names.
func NewHandler(w io.Writer, level, format string) (slog.Handler, error) {
	lvl, err := GetLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%w %q", err, level)
	}
	f, err := GetFormat(format)
	if err != nil {
		return nil, fmt.Errorf("%w %q", err, format)
	}

	switch f {
	case FormatJSON:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}), nil
	case FormatLogfmt:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}), nil
	default:
		return newCharmLogHandler(w, lvl), nil
	}
}

// GetLevel parses a level name.
func GetLevel(level string) (slog.Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(level))) {
	case LevelError:
		return slog.LevelError, nil
	case LevelWarn, "warning":
		return slog.LevelWarn, nil
	case LevelInfo:
		return slog.LevelInfo, nil
	case LevelDebug:
		return slog.LevelDebug, nil
	}
	return 0, ErrUnknownLogLevel
}

// GetFormat parses a format name.
func GetFormat(format string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(format)))
	if slices.Contains([]Format{FormatJSON, FormatLogfmt, FormatText}, f) {
		return f, nil
	}
	return "", ErrUnknownLogFormat
}

func newCharmLogHandler(w io.Writer, level slog.Level) slog.Handler {
	logger := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           charmlog.Level(int32(level)),
		Formatter:       charmlog.TextFormatter,
		ReportTimestamp: true,
		TimeFormat:      time.StampMilli,
	})
	logger.SetColorProfile(termenv.ColorProfile())
	return logger
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext retrieves the logger stored in ctx.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
			return l
		}
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}
