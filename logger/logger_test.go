package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DEBUG,
		" INFO ":  INFO,
		"":        INFO,
		"warning": WARN,
		"error":   ERROR,
	}
	for name, want := range cases {
		got, ok := ParseLevel(name)
		if !ok || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, true", name, got, ok, want)
		}
	}
	if _, ok := ParseLevel("verbose"); ok {
		t.Error("Expected unknown level to be rejected")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Options{Console: &buf, Level: WARN}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer Init(Options{Console: os.Stdout, Level: DEBUG})

	Infof("dropped %d", 1)
	Warnf("kept %d", 2)

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("INFO line should be filtered at WARN: %q", out)
	}
	if !strings.Contains(out, "kept 2") || !strings.Contains(out, "[WARN]") {
		t.Errorf("Expected WARN line in output, got %q", out)
	}
	if !strings.Contains(out, "logger_test.go") {
		t.Errorf("Expected caller file in output, got %q", out)
	}
}

func TestFileOutputHasNoColor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pixbatch.log")
	if err := Init(Options{Filename: path, Level: DEBUG}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	Errorf("disk %s", "full")
	Close()
	defer Init(Options{Console: os.Stdout, Level: DEBUG})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "[ERROR] ") || !strings.Contains(string(data), "disk full") {
		t.Errorf("Unexpected file contents %q", data)
	}
	if strings.Contains(string(data), "\033[") {
		t.Errorf("File output should not contain ANSI codes: %q", data)
	}
}

func TestInitRequiresDestination(t *testing.T) {
	if err := Init(Options{}); err == nil {
		t.Error("Expected error when no destination is given")
	}
}
