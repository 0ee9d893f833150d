// Package config carries the per-invocation settings resolved by the root
// command down to the subcommands.
//
// It lives apart from the cli package so that commands can read the
// settings and logger from the command context without an import cycle.
package config

import (
	"context"
	"io"
	"log/slog"

	intconfig "github.com/leapstack-labs/pgtool/internal/config"
	"github.com/leapstack-labs/pgtool/internal/render"
)

// Settings holds everything the global flags resolve to.
type Settings struct {
	Connection intconfig.ConnectionConfig
	// ConfigFile is the config file that was read, empty when none was.
	ConfigFile string
	Format     render.Format
	Autocommit bool
	Verbose    bool
}

// settingsKey is used to store settings in context.
type settingsKey struct{}

// loggerKey is used to store logger in context.
type loggerKey struct{}

// WithSettings returns a copy of ctx carrying s.
func WithSettings(ctx context.Context, s *Settings) context.Context {
	return context.WithValue(ctx, settingsKey{}, s)
}

// GetSettings retrieves the settings from the command context.
func GetSettings(ctx context.Context) *Settings {
	if s, ok := ctx.Value(settingsKey{}).(*Settings); ok {
		return s
	}
	return &Settings{
		Connection: intconfig.ConnectionConfig{Options: map[string]string{}},
		Format:     render.FormatTable,
	}
}

// LoggerKey returns the context key used for storing the logger.
func LoggerKey() interface{} {
	return loggerKey{}
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// NewLogger builds the CLI logger: a text handler on w at warn level, or
// debug when verbose is set.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
