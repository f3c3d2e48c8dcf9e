package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesConsoleOutputToFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "vidbatch.log")

	logger, err := New(Options{Level: "info", Format: "console", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("batch started",
		String(FieldComponent, "coordinator"),
		Int("total", 3),
	)

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "INFO coordinator: batch started") {
		t.Fatalf("unexpected log line: %q", line)
	}
	if !strings.Contains(line, "total=3") {
		t.Fatalf("missing attribute in log line: %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	for _, value := range []string{"", "info", "bogus"} {
		if got := parseLevel(value); got != slog.LevelInfo {
			t.Fatalf("parseLevel(%q) = %v", value, got)
		}
	}
	if parseLevel("debug") != slog.LevelDebug {
		t.Fatal("debug level not honored")
	}
}

func TestComponentLoggerNilBase(t *testing.T) {
	logger := NewComponentLogger(nil, "pool")
	// Must not panic and must be usable.
	logger.Info("noop")
}
