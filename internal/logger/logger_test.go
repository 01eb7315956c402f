package logger

import (
	"errors"
	"os"
	"os/exec"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLogBeforeInitIsNoop(t *testing.T) {
	defaultLogger = nil
	Debug("debug %d", 1)
	Info("info %d", 2)
	Warn("warn %d", 3)
	Error("error %d", 4)
	Sync()
}

func TestInitFormats(t *testing.T) {
	t.Cleanup(func() { defaultLogger = nil })
	for _, format := range []string{"json", "text"} {
		Init("debug", format)
		if defaultLogger == nil {
			t.Fatalf("Init(%q) left logger nil", format)
		}
		if !defaultLogger.Desugar().Core().Enabled(zapcore.DebugLevel) {
			t.Errorf("format %q: debug level not enabled", format)
		}
	}
	Init("error", "json")
	if defaultLogger.Desugar().Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn should be disabled at error level")
	}
}

func TestUse(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Use(zap.New(core))
	t.Cleanup(func() { defaultLogger = nil })

	Debug("hidden")
	Warn("rows dropped: %d", 2)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Message != "rows dropped: 2" || entries[0].Level != zapcore.WarnLevel {
		t.Errorf("unexpected entry: %+v", entries[0].Entry)
	}
}

func TestFatalExitsWithoutInit(t *testing.T) {
	if os.Getenv("LOGGER_FATAL_CHILD") == "1" {
		defaultLogger = nil
		Fatal("config missing: %s", "database.uri")
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestFatalExitsWithoutInit$")
	cmd.Env = append(os.Environ(), "LOGGER_FATAL_CHILD=1")
	err := cmd.Run()

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected process to exit with an error, got %v", err)
	}
	if code := exitErr.ExitCode(); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}
