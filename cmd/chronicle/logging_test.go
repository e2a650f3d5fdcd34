package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    slog.Level
		wantErr bool
	}{
		{name: "default info", raw: "", want: slog.LevelInfo},
		{name: "debug", raw: "debug", want: slog.LevelDebug},
		{name: "info", raw: "info", want: slog.LevelInfo},
		{name: "warn", raw: "warn", want: slog.LevelWarn},
		{name: "warning alias", raw: "Warning", want: slog.LevelWarn},
		{name: "error", raw: "error", want: slog.LevelError},
		{name: "numeric", raw: "-4", want: slog.LevelDebug},
		{name: "invalid", raw: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLogLevel(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parse level: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestResolveLogSetting(t *testing.T) {
	tests := []struct {
		name                string
		flag, env, cfgLevel string
		wantRaw, wantOrigin string
	}{
		{name: "flag wins", flag: "debug", env: "error", cfgLevel: "warn", wantRaw: "debug", wantOrigin: "flag"},
		{name: "env fallback", env: "warn", cfgLevel: "info", wantRaw: "warn", wantOrigin: "env"},
		{name: "blank flag skipped", flag: "  ", cfgLevel: "error", wantRaw: "error", wantOrigin: "config"},
		{name: "default", wantOrigin: "default"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveLogSetting(tt.flag, tt.env, tt.cfgLevel)
			if got.raw != tt.wantRaw || got.origin != tt.wantOrigin {
				t.Fatalf("expected %q from %s, got %q from %s", tt.wantRaw, tt.wantOrigin, got.raw, got.origin)
			}
		})
	}
}

func TestNewLogHandler(t *testing.T) {
	var buf bytes.Buffer
	handler, err := newLogHandler(&buf, "JSON", slog.LevelWarn)
	if err != nil {
		t.Fatalf("json handler: %v", err)
	}
	logger := slog.New(handler)
	logger.Info("dropped")
	logger.Warn("source aborted", "source", "site-news")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one json line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "source aborted" || entry["source"] != "site-news" {
		t.Fatalf("unexpected entry %v", entry)
	}

	if _, err := newLogHandler(&buf, "logfmt", slog.LevelInfo); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestConfigureLoggerForCLI(t *testing.T) {
	t.Run("flag overrides invalid env", func(t *testing.T) {
		t.Setenv(logLevelEnvKey, "invalid")
		warning, err := configureLoggerForCLI("debug", "info")
		if err != nil {
			t.Fatalf("configure logger: %v", err)
		}
		if warning != "" {
			t.Fatalf("expected no warning, got %q", warning)
		}
	})

	t.Run("invalid flag returns error", func(t *testing.T) {
		t.Setenv(logLevelEnvKey, "")
		if _, err := configureLoggerForCLI("verbose", "info"); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("invalid env returns warning and fallback", func(t *testing.T) {
		t.Setenv(logLevelEnvKey, "verbose")
		warning, err := configureLoggerForCLI("", "info")
		if err != nil {
			t.Fatalf("configure logger: %v", err)
		}
		if !strings.Contains(warning, "defaulting to info") {
			t.Fatalf("expected fallback warning, got %q", warning)
		}
	})

	t.Run("invalid format returns warning", func(t *testing.T) {
		t.Setenv(logLevelEnvKey, "")
		t.Setenv(logFormatEnvKey, "xml")
		warning, err := configureLoggerForCLI("", "info")
		if err != nil {
			t.Fatalf("configure logger: %v", err)
		}
		if !strings.Contains(warning, "defaulting to text") {
			t.Fatalf("expected format warning, got %q", warning)
		}
	})

	t.Run("invalid config returns warning and fallback", func(t *testing.T) {
		t.Setenv(logLevelEnvKey, "")
		warning, err := configureLoggerForCLI("", "verbose")
		if err != nil {
			t.Fatalf("configure logger: %v", err)
		}
		if !strings.Contains(warning, "invalid log_level") {
			t.Fatalf("expected config warning, got %q", warning)
		}
	})
}
