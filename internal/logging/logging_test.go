package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "server.log")
	logger, err := newLogger(Config{Level: "debug", File: path, MaxSizeMB: 1}, &console)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Named("world").Debug("crossed")
	_ = logger.Sync()

	if !strings.Contains(console.String(), "crossed") || !strings.Contains(console.String(), "world") {
		t.Fatalf("console output missing entry: %q", console.String())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(raw), &entry); err != nil {
		t.Fatalf("file entry is not json: %v (%q)", err, raw)
	}
	if entry["msg"] != "crossed" || entry["level"] != "DEBUG" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestLevelFilters(t *testing.T) {
	var console bytes.Buffer
	logger, err := newLogger(Config{Level: "warn"}, &console)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(console.String(), "hidden") || !strings.Contains(console.String(), "shown") {
		t.Fatalf("level filter failed: %q", console.String())
	}
}

func TestBadLevel(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
