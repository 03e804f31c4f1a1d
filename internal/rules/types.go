// Package rules loads rule documents and resolves per-run severity
// overrides. A RuleSet is built once per run and read-only afterwards.
package rules

import (
	"fmt"
	"strings"

	"sift/internal/engine"
	"sift/internal/lang"
)

// Severity is the reporting level assigned to a rule's matches. The order is
// total: Off < Hint < Info < Warning < Error.
type Severity int

const (
	Off Severity = iota
	Hint
	Info
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Off:
		return "off"
	case Hint:
		return "hint"
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return "unknown"
}

// ParseSeverity resolves a severity tag from a rule document.
func ParseSeverity(tag string) (Severity, error) {
	switch tag {
	case "off":
		return Off, nil
	case "hint":
		return Hint, nil
	case "info":
		return Info, nil
	case "warning", "":
		// Rules without a severity default to warning.
		return Warning, nil
	case "error":
		return Error, nil
	}
	return Off, fmt.Errorf("unknown severity: %q", tag)
}

// MarshalJSON renders severities by name in reports.
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON accepts the same names MarshalJSON emits. The scan cache
// round-trips diagnostics through JSON.
func (s *Severity) UnmarshalJSON(data []byte) error {
	tag := strings.Trim(string(data), `"`)
	parsed, err := ParseSeverity(tag)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Rule is one structural pattern rule. Rules are immutable once loaded.
type Rule struct {
	ID       string
	Language lang.Language
	Pattern  *engine.Pattern
	Severity Severity
	// Fix is the optional rewrite template.
	Fix     string
	Message string
	Note    string

	// source is the raw pattern text, kept for hashing and display.
	source string
}

// HasFix reports whether the rule defines a rewrite.
func (r *Rule) HasFix() bool { return r.Fix != "" }
