package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, test := range tests {
		result := test.level.String()
		if result != test.expected {
			t.Errorf("LogLevel(%d).String() = %s, expected %s", test.level, result, test.expected)
		}
	}
}

func TestLogLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{LogLevel(999), slog.LevelInfo}, // Default for unknown
	}

	for _, test := range tests {
		result := test.level.SlogLevel()
		if result != test.expected {
			t.Errorf("LogLevel(%d).SlogLevel() = %v, expected %v", test.level, result, test.expected)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		expected LogLevel
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, test := range tests {
		if got := ParseLevel(test.name); got != test.expected {
			t.Errorf("ParseLevel(%q) = %v, expected %v", test.name, got, test.expected)
		}
	}
}

func TestInit(t *testing.T) {
	var buf bytes.Buffer

	Init(LevelInfo, &buf)

	if defaultLogger == nil {
		t.Error("Expected defaultLogger to be set after Init")
	}

	Info("test-subsystem", "test message")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Error("Expected log message to appear in output")
	}

	if !strings.Contains(output, "test-subsystem") {
		t.Error("Expected subsystem to appear in output")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	Init(LevelInfo, &buf)

	// Debug should be filtered out
	Debug("test", "debug message")

	// Info should appear
	Info("test", "info message")

	output := buf.String()
	if strings.Contains(output, "debug message") {
		t.Error("Debug message should be filtered out at INFO level")
	}

	if !strings.Contains(output, "info message") {
		t.Error("Info message should appear at INFO level")
	}
}

func TestErrorAttribute(t *testing.T) {
	var buf bytes.Buffer

	Init(LevelInfo, &buf)

	Error("test", errors.New("boom"), "operation failed")

	output := buf.String()
	if !strings.Contains(output, "operation failed") {
		t.Error("Expected error message to appear in output")
	}
	if !strings.Contains(output, "boom") {
		t.Error("Expected error attribute to appear in output")
	}
}
