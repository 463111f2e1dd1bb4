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

func TestInit(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelInfo, &buf)

	if logger() == nil {
		t.Fatal("Expected defaultLogger to be set after Init")
	}

	Info("TestSubsystem", "hello %s", "world")
	out := buf.String()
	if !strings.Contains(out, "hello world") {
		t.Errorf("Expected log output to contain message, got: %s", out)
	}
	if !strings.Contains(out, "TestSubsystem") {
		t.Errorf("Expected log output to contain subsystem, got: %s", out)
	}
}

func TestInit_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelWarn, &buf)

	Debug("Filter", "debug message")
	Info("Filter", "info message")
	Warn("Filter", "warn message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("Expected debug/info messages to be filtered, got: %s", out)
	}
	if !strings.Contains(out, "warn message") {
		t.Errorf("Expected warn message to be logged, got: %s", out)
	}
}

func TestError_IncludesError(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelError, &buf)

	Error("Errors", errors.New("boom"), "operation failed")
	out := buf.String()
	if !strings.Contains(out, "boom") {
		t.Errorf("Expected log output to contain wrapped error, got: %s", out)
	}
}
