package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoggerWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obsflow.log")
	logger, err := NewLogger(LoggingConfig{Level: "debug", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	logger.Info("server started", "addr", "127.0.0.1:8080", "driver", "sqlite")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log line is not JSON: %v: %s", err, data)
	}
	if entry["message"] != "server started" || entry["addr"] != "127.0.0.1:8080" {
		t.Fatalf("entry = %v", entry)
	}
	if entry["level"] != "info" {
		t.Fatalf("level = %v", entry["level"])
	}
}

func TestNewLoggerLevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obsflow.log")
	logger, err := NewLogger(LoggingConfig{Level: "warn", Output: path})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Warn("kept")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(data), "dropped") {
		t.Fatalf("below-level entries written: %s", data)
	}
	if !strings.Contains(string(data), "kept") {
		t.Fatalf("warn entry missing: %s", data)
	}
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	if _, err := NewLogger(LoggingConfig{Level: "loud"}); err == nil {
		t.Fatalf("expected level parse error")
	}
}

func TestEmitPairsOddArguments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obsflow.log")
	logger, err := NewLogger(LoggingConfig{Output: path})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	// The trailing dangling key is dropped instead of panicking.
	logger.Error("failed", "error", "boom", "dangling")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["error"] != "boom" {
		t.Fatalf("entry = %v", entry)
	}
	if _, ok := entry["dangling"]; ok {
		t.Fatalf("dangling key must be dropped: %v", entry)
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	logger.Info("nowhere")
	logger.Error("nowhere")
}
