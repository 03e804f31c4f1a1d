package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestCodeOf(t *testing.T) {
	base := New(ConfigError, "bad flag")
	if CodeOf(base) != ConfigError {
		t.Errorf("code = %s", CodeOf(base))
	}

	wrapped := fmt.Errorf("outer: %w", base)
	if CodeOf(wrapped) != ConfigError {
		t.Error("code lost through fmt wrapping")
	}

	if CodeOf(errors.New("plain")) != InternalError {
		t.Error("uncoded errors should report INTERNAL_ERROR")
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("disk on fire")
	err := Wrap(StaleFile, "cannot re-read file", cause)

	if !errors.Is(err, cause) {
		t.Error("cause not reachable via errors.Is")
	}
	msg := err.Error()
	if !strings.Contains(msg, "STALE_FILE") || !strings.Contains(msg, "disk on fire") {
		t.Errorf("message = %q", msg)
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		err   error
		fatal bool
	}{
		{New(ConfigError, "x"), true},
		{New(RuleLoadError, "x"), true},
		{New(ParseError, "x"), false},
		{New(StaleFile, "x"), false},
		{New(SnapshotMismatch, "x"), false},
		{errors.New("plain"), false},
	}
	for _, tt := range tests {
		if got := IsFatal(tt.err); got != tt.fatal {
			t.Errorf("IsFatal(%v) = %v, want %v", tt.err, got, tt.fatal)
		}
	}
}
