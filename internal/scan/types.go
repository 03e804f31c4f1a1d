// Package scan applies structural pattern rules to discovered files and
// yields a stream of diagnostics, classified by severity.
package scan

import (
	"sort"

	"sift/internal/engine"
	"sift/internal/rules"
)

// Kind distinguishes rule matches from file-level failures.
type Kind string

const (
	// KindMatch is one occurrence of a rule pattern.
	KindMatch Kind = "match"
	// KindParseError is a file-level parse failure. The run continues.
	KindParseError Kind = "parse-error"
)

// Edit is a pending rewrite: replace the span's current text with NewText.
// Edits in one file never overlap; the dispatcher guarantees it.
type Edit struct {
	Span    engine.Span `json:"span"`
	NewText string      `json:"newText"`
}

// Diagnostic is one reported occurrence of a rule matching a location in a
// file. Diagnostics are immutable once produced.
type Diagnostic struct {
	RuleID   string          `json:"ruleId"`
	Kind     Kind            `json:"kind"`
	File     string          `json:"file"`
	Span     engine.Span     `json:"span"`
	Start    engine.Position `json:"start"`
	End      engine.Position `json:"end"`
	Severity rules.Severity  `json:"severity"`
	Message  string          `json:"message,omitempty"`
	// Text is the matched source text.
	Text string `json:"text,omitempty"`
	// Fix is the computed rewrite edit, when the rule defines one.
	Fix *Edit `json:"fix,omitempty"`
}

// FileResult groups the diagnostics of one scanned file. Within a file,
// diagnostics are in source order.
type FileResult struct {
	Path        string       `json:"path"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// SortResults orders results by path and each file's diagnostics by span
// start, then rule id, for deterministic user-visible output.
func SortResults(results []FileResult) {
	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	for _, r := range results {
		sortDiagnostics(r.Diagnostics)
	}
}

func sortDiagnostics(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		if diags[i].Span.Start != diags[j].Span.Start {
			return diags[i].Span.Start < diags[j].Span.Start
		}
		return diags[i].RuleID < diags[j].RuleID
	})
}

// Summary aggregates a finished scan for exit-status and reporting.
type Summary struct {
	FilesScanned int            `json:"filesScanned"`
	Matches      int            `json:"matches"`
	ParseErrors  int            `json:"parseErrors"`
	BySeverity   map[string]int `json:"bySeverity"`
}

// Summarize folds results into a Summary.
func Summarize(results []FileResult) Summary {
	s := Summary{BySeverity: make(map[string]int)}
	for _, r := range results {
		s.FilesScanned++
		for _, d := range r.Diagnostics {
			switch d.Kind {
			case KindParseError:
				s.ParseErrors++
			default:
				s.Matches++
				s.BySeverity[d.Severity.String()]++
			}
		}
	}
	return s
}

// HasErrors reports whether any Error-severity match remains; the process
// exits nonzero in that case.
func HasErrors(results []FileResult) bool {
	for _, r := range results {
		for _, d := range r.Diagnostics {
			if d.Kind == KindMatch && d.Severity == rules.Error {
				return true
			}
		}
	}
	return false
}
