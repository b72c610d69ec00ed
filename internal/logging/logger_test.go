package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/naveenspark/issuetrack/internal/config"
)

func TestNewWriter_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, config.LogConfig{Level: "info", Format: "json"})
	logger.Info("issue created", "title", "Fix login")

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("JSON handler should produce valid JSON: %v", err)
	}
	if m["msg"] != "issue created" || m["title"] != "Fix login" {
		t.Errorf("record = %v", m)
	}
}

func TestNewWriter_TextFormatAddsSource(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, config.LogConfig{Level: "debug", Format: "text"})
	logger.Debug("token refreshed")

	out := buf.String()
	if !strings.Contains(out, "msg=\"token refreshed\"") {
		t.Errorf("output = %q, want text record", out)
	}
	if !strings.Contains(out, "source=") {
		t.Errorf("output = %q, want source attribute", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewWriter_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, config.LogConfig{Level: "warn", Format: "json"})
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be enabled at warn level")
	}
}

func TestNew_WritesToFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "logs", "issuetrack.log")
	logger, closer, err := New(config.LogConfig{Level: "info", Format: "json", Path: path})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	logger.Info("hello")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("log file = %q", data)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}
