// internal/logging/logging.go
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel   = "HARP_LOG_LEVEL"
	EnvLogNoColor = "HARP_LOG_NOCOLOR"
	EnvLogJSON    = "HARP_LOG_JSON"
)

// New builds the process logger for app and installs it as the zerolog global.
// level is used unless HARP_LOG_LEVEL overrides it.
func New(app, level string) zerolog.Logger {
	return newLogger(os.Stderr, app, level, os.Getenv)
}

func newLogger(out io.Writer, app, level string, getenv func(string) string) zerolog.Logger {
	lvl, ok := ParseLevel(getenv(EnvLogLevel))
	if !ok {
		lvl, ok = ParseLevel(level)
		if !ok {
			lvl = zerolog.InfoLevel
		}
	}

	w := out
	if json, _ := parseBool(getenv(EnvLogJSON)); !json {
		noColor, _ := parseBool(getenv(EnvLogNoColor))
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    noColor,
		}
	}

	logger := zerolog.New(w).Level(lvl).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}

// ParseLevel accepts the usual level names; ok is false for anything else.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	}
	return zerolog.InfoLevel, false
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
