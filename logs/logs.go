// Package logs builds the slog loggers used across the module.
package logs

import (
	"io"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	slogmulti "github.com/samber/slog-multi"
)

type Options struct {
	Level slog.Level
	// JSON receives a machine-readable copy of every record when set.
	JSON io.Writer
}

// New returns a logger writing text records to w and, optionally, JSON
// records to opts.JSON.
func New(w io.Writer, opts Options) *slog.Logger {
	level := new(slog.LevelVar)
	level.Set(opts.Level)

	handlers := []slog.Handler{
		slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}),
	}
	if opts.JSON != nil {
		handlers = append(handlers, slog.NewJSONHandler(opts.JSON, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slogmulti.Fanout(handlers...))
}

// Discard returns a logger with no handlers.
func Discard() *slog.Logger {
	return slog.New(slogmulti.Fanout())
}

func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo, errors.Wrapf(err, "log level '%s'", s)
	}
	return level, nil
}
