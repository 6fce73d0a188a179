// Package logging configures the zerolog logger used across toolurls.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // console output for terminals
	Output     io.Writer
	WithCaller bool
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	}
	return zerolog.InfoLevel
}

// New creates a logger from cfg.
func New(cfg Config) zerolog.Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	l := zerolog.New(output).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", "toolurls").
		Logger()
	if cfg.WithCaller {
		l = l.With().Caller().Logger()
	}
	return l
}

// Init builds a logger from cfg and installs it as the global logger.
func Init(cfg Config) zerolog.Logger {
	l := New(cfg)
	log.Logger = l
	return l
}

// ForTool returns a child logger tagged with the tool and edition.
func ForTool(l zerolog.Logger, tool, edition string) zerolog.Logger {
	return l.With().
		Str("component", "updater").
		Str("tool", tool).
		Str("edition", edition).
		Logger()
}

// Nop returns a disabled logger.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
