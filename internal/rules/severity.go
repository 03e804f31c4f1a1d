package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// Overrides holds the per-run severity override lists, one per CLI flag.
// A rule id may appear in several lists by user error; EffectiveSeverity
// resolves that deterministically instead of rejecting it.
type Overrides struct {
	Error   []string
	Warning []string
	Info    []string
	Hint    []string
	Off     []string
}

// Empty reports whether no override is set.
func (o Overrides) Empty() bool {
	return len(o.Error) == 0 && len(o.Warning) == 0 && len(o.Info) == 0 &&
		len(o.Hint) == 0 && len(o.Off) == 0
}

// Merge layers CLI overrides on top of file-level ones. Both layers keep
// their own lists; precedence between categories is decided at resolution
// time, so merging is a plain append.
func (o Overrides) Merge(over Overrides) Overrides {
	return Overrides{
		Error:   append(append([]string{}, o.Error...), over.Error...),
		Warning: append(append([]string{}, o.Warning...), over.Warning...),
		Info:    append(append([]string{}, o.Info...), over.Info...),
		Hint:    append(append([]string{}, o.Hint...), over.Hint...),
		Off:     append(append([]string{}, o.Off...), over.Off...),
	}
}

// Fingerprint hashes the override lists. Cached scan results depend on the
// effective severities, so the scan cache folds this into its key; list
// order does not matter.
func (o Overrides) Fingerprint() string {
	h := sha256.New()
	for _, bucket := range []struct {
		label string
		ids   []string
	}{
		{"error", o.Error},
		{"warning", o.Warning},
		{"info", o.Info},
		{"hint", o.Hint},
		{"off", o.Off},
	} {
		ids := append([]string(nil), bucket.ids...)
		sort.Strings(ids)
		fmt.Fprintf(h, "%s\x00", bucket.label)
		for _, id := range ids {
			fmt.Fprintf(h, "%s\x00", id)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// EffectiveSeverity resolves the severity for a rule under the given
// overrides. The category order is fixed: Off always wins (explicit
// suppression), then Error, Warning, Info, Hint, then the rule's default.
func EffectiveSeverity(r *Rule, o Overrides) Severity {
	if containsID(o.Off, r.ID) {
		return Off
	}
	if containsID(o.Error, r.ID) {
		return Error
	}
	if containsID(o.Warning, r.ID) {
		return Warning
	}
	if containsID(o.Info, r.ID) {
		return Info
	}
	if containsID(o.Hint, r.ID) {
		return Hint
	}
	return r.Severity
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
