package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func capture(t *testing.T, verboseMode bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(verboseMode)
	t.Cleanup(func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
	})
	return &buf
}

func TestSetVerbose(t *testing.T) {
	capture(t, false)
	if IsVerbose() {
		t.Error("expected verbose to be false")
	}
	SetVerbose(true)
	if !IsVerbose() {
		t.Error("expected verbose to be true after SetVerbose(true)")
	}
}

func TestLevels_WhenVerbose(t *testing.T) {
	buf := capture(t, true)

	Debug("embed %d texts", 3)
	Info("served by %s", "openai")
	Warn("falling back")
	Section("Ask")

	out := buf.String()
	for _, want := range []string{"[DEBUG] embed 3 texts", "[INFO] served by openai", "[WARN] falling back", "=== Ask ==="} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got %q", want, out)
		}
	}
}

func TestLevels_WhenQuiet(t *testing.T) {
	buf := capture(t, false)

	Debug("hidden")
	Info("hidden")
	Warn("hidden")
	Section("hidden")

	if buf.Len() != 0 {
		t.Errorf("expected no output when not verbose, got %q", buf.String())
	}
}

func TestError_AlwaysWritten(t *testing.T) {
	buf := capture(t, false)

	Error("index corrupt: %s", "count mismatch")

	if !strings.Contains(buf.String(), "[ERROR] index corrupt: count mismatch") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestTimed(t *testing.T) {
	buf := capture(t, true)

	Timed("search")()

	if !strings.Contains(buf.String(), "search took") {
		t.Errorf("unexpected output %q", buf.String())
	}
}
