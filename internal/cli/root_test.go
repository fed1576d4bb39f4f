package cli

import (
	"bytes"
	"fmt"
	"runtime/debug"
	"strings"
	"testing"

	"resumeform/internal/errors"
)

func TestAlreadyReported(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"missing input", errors.NewValidationError(errors.ErrCodeMissingInput, "missing", nil), true},
		{"submission failed", errors.NewSubmissionError(errors.ErrCodeSubmissionFailed, "failed", nil), true},
		{"wrapped", fmt.Errorf("run: %w", errors.NewSubmissionError(errors.ErrCodeSubmissionFailed, "failed", nil)), true},
		{"invalid format", errors.NewValidationError(errors.ErrCodeInvalidFormat, "bad format", nil), false},
		{"plain error", fmt.Errorf("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AlreadyReported(tt.err); got != tt.expected {
				t.Errorf("AlreadyReported() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestWriteVersionFallsBackToBuildInfo(t *testing.T) {
	info := &debug.BuildInfo{Settings: []debug.BuildSetting{
		{Key: "vcs.revision", Value: "abc123"},
		{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
	}}

	var out bytes.Buffer
	writeVersion(&out, info)

	for _, want := range []string{"resumeform version dev", "Git commit: abc123", "Build date: 2026-01-02T03:04:05Z", "Go version: go"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected %q in:\n%s", want, out.String())
		}
	}
}

func TestBindFlagRejectsUnknownFlag(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected bindFlag to panic for an undefined flag")
		}
	}()
	bindFlag(serveCmd.Flags(), "server.nothing", "no-such-flag")
}
