package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"chronicle/internal/config"
)

const (
	logLevelEnvKey  = "CHRONICLE_LOG_LEVEL"
	logFormatEnvKey = "CHRONICLE_LOG_FORMAT"
)

// logSetting is a raw level string and the layer it came from: flag, env, config or
// default.
type logSetting struct {
	raw    string
	origin string
}

func resolveLogSetting(flagLevel, envLevel, configLevel string) logSetting {
	for _, s := range []logSetting{
		{raw: flagLevel, origin: "flag"},
		{raw: envLevel, origin: "env"},
		{raw: configLevel, origin: "config"},
	} {
		if strings.TrimSpace(s.raw) != "" {
			return s
		}
	}
	return logSetting{origin: "default"}
}

// configureLoggerForCLI installs the process logger. A bad --log-level fails the
// command; a bad env or config level, or an unknown CHRONICLE_LOG_FORMAT, falls back
// and comes back as a warning line.
func configureLoggerForCLI(flagLevel, configLevel string) (string, error) {
	setting := resolveLogSetting(flagLevel, os.Getenv(logLevelEnvKey), configLevel)

	var warnings []string
	level, err := parseLogLevel(setting.raw)
	if err != nil {
		switch setting.origin {
		case "flag":
			return "", fmt.Errorf("invalid --log-level %q", flagLevel)
		case "env":
			warnings = append(warnings, fmt.Sprintf("warning: invalid %s=%q; defaulting to %s", logLevelEnvKey, setting.raw, config.DefaultLogLevel))
		case "config":
			warnings = append(warnings, fmt.Sprintf("warning: invalid log_level=%q; defaulting to %s", setting.raw, config.DefaultLogLevel))
		}
		level = slog.LevelInfo
	}

	format := os.Getenv(logFormatEnvKey)
	handler, err := newLogHandler(os.Stderr, format, level)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("warning: invalid %s=%q; defaulting to text", logFormatEnvKey, format))
		handler, _ = newLogHandler(os.Stderr, "", level)
	}
	slog.SetDefault(slog.New(handler))
	return strings.Join(warnings, "\n"), nil
}

// newLogHandler builds a text or JSON handler. JSON suits `chronicle run` under a
// scheduler whose output goes to a log shipper.
func newLogHandler(w io.Writer, format string, level slog.Level) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// parseLogLevel accepts slog level names, "warning", and numeric levels. Empty is info.
func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.TrimSpace(raw)
	switch {
	case value == "":
		return slog.LevelInfo, nil
	case strings.EqualFold(value, "warning"):
		return slog.LevelWarn, nil
	}
	if numeric, err := strconv.Atoi(value); err == nil {
		return slog.Level(numeric), nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}
