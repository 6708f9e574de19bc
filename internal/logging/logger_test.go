package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoggerWritesToFile(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelDebug)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.Info("hello", "key", "value")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "quorum.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log entry is not valid JSON: %v", err)
	}
	if entry["msg"] != "hello" {
		t.Errorf("msg = %v, want %q", entry["msg"], "hello")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want %q", entry["key"], "value")
	}
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelWarn)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "quorum.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	content := string(data)
	if strings.Contains(content, "debug message") {
		t.Error("DEBUG message should be filtered at WARN level")
	}
	if strings.Contains(content, "info message") {
		t.Error("INFO message should be filtered at WARN level")
	}
	if !strings.Contains(content, "warn message") {
		t.Error("WARN message should be logged at WARN level")
	}
}

func TestWithAttributes(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelDebug)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	child := logger.WithTask("task-1").WithAgent("verifier").WithDebate("deb-9")
	child.Info("attributed")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "quorum.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log entry is not valid JSON: %v", err)
	}
	if entry["task_id"] != "task-1" {
		t.Errorf("task_id = %v, want %q", entry["task_id"], "task-1")
	}
	if entry["agent_role"] != "verifier" {
		t.Errorf("agent_role = %v, want %q", entry["agent_role"], "verifier")
	}
	if entry["debate_id"] != "deb-9" {
		t.Errorf("debate_id = %v, want %q", entry["debate_id"], "deb-9")
	}
}

func TestWithDoesNotMutateParent(t *testing.T) {
	logger := NopLogger()
	child := logger.With("a", 1)

	if len(logger.attrs) != 0 {
		t.Errorf("parent attrs length = %d, want 0", len(logger.attrs))
	}
	if len(child.attrs) != 1 {
		t.Errorf("child attrs length = %d, want 1", len(child.attrs))
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNopLoggerDoesNotPanic(t *testing.T) {
	logger := NopLogger()
	logger.Debug("d")
	logger.Info("i")
	logger.Warn("w")
	logger.Error("e")
	if err := logger.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
