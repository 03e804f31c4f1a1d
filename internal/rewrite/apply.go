// Package rewrite applies the edits carried by diagnostics, either all at
// once or through an interactive confirm/skip session.
package rewrite

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"sift/internal/errs"
	"sift/internal/logging"
	"sift/internal/scan"
)

// pendingEdit pairs an edit with the text it expects to replace, so edit
// application can detect files that changed on disk since they were scanned.
type pendingEdit struct {
	span    scan.Edit
	oldText string
}

// FileOutcome records what happened to one file during edit application.
type FileOutcome struct {
	Path    string `json:"path"`
	Applied int    `json:"applied"`
	// Stale is set when the file changed on disk and was skipped.
	Stale bool `json:"stale,omitempty"`
}

// Report aggregates an apply pass.
type Report struct {
	Files      []FileOutcome `json:"files"`
	Applied    int           `json:"applied"`
	StaleFiles int           `json:"staleFiles"`
}

// ApplyAll applies every edit from every diagnostic, grouped by file. Each
// file is rewritten atomically; a file whose content changed since the scan
// is skipped with a stale outcome and the pass continues.
func ApplyAll(results []scan.FileResult, logger *logging.Logger) (*Report, error) {
	report := &Report{}

	for _, result := range results {
		edits := collectEdits(result.Diagnostics)
		if len(edits) == 0 {
			continue
		}
		applied, err := applyToFile(result.Path, edits)
		outcome := FileOutcome{Path: result.Path, Applied: applied}
		if err != nil {
			if errs.CodeOf(err) == errs.StaleFile {
				outcome.Stale = true
				outcome.Applied = 0
				report.StaleFiles++
				logger.Warn("Skipping stale file", map[string]interface{}{
					"file": result.Path,
				})
				report.Files = append(report.Files, outcome)
				continue
			}
			return report, err
		}
		report.Applied += applied
		report.Files = append(report.Files, outcome)
	}

	return report, nil
}

// Unresolved filters results down to what an apply pass left in the tree:
// every diagnostic of a file skipped as stale, plus diagnostics that carry
// no fix. Exit-status decisions look at these, not at the pre-apply set.
func Unresolved(results []scan.FileResult, report *Report) []scan.FileResult {
	rewritten := make(map[string]bool, len(report.Files))
	for _, f := range report.Files {
		if !f.Stale {
			rewritten[f.Path] = true
		}
	}

	out := make([]scan.FileResult, 0, len(results))
	for _, r := range results {
		if !rewritten[r.Path] {
			out = append(out, r)
			continue
		}
		remaining := scan.FileResult{Path: r.Path}
		for _, d := range r.Diagnostics {
			if d.Fix == nil {
				remaining.Diagnostics = append(remaining.Diagnostics, d)
			}
		}
		out = append(out, remaining)
	}
	return out
}

func collectEdits(diags []scan.Diagnostic) []pendingEdit {
	var edits []pendingEdit
	for _, d := range diags {
		if d.Fix == nil {
			continue
		}
		edits = append(edits, pendingEdit{span: *d.Fix, oldText: d.Text})
	}
	return edits
}

// applyToFile rewrites one file. Edits are applied right-to-left by span
// start so earlier offsets stay valid, then the whole file is replaced
// atomically: either every edit lands or the file is untouched.
func applyToFile(path string, edits []pendingEdit) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, errs.Wrap(errs.StaleFile, "cannot re-read "+path, err)
	}

	sort.SliceStable(edits, func(i, j int) bool {
		return edits[i].span.Span.Start < edits[j].span.Span.Start
	})
	for i := 0; i+1 < len(edits); i++ {
		if edits[i].span.Span.End > edits[i+1].span.Span.Start {
			return 0, errs.Newf(errs.InternalError,
				"overlapping edits in %s at byte %d", path, edits[i+1].span.Span.Start)
		}
	}

	rewritten, err := spliceEdits(content, edits)
	if err != nil {
		return 0, errs.Wrap(errs.StaleFile, path+" changed on disk since it was scanned", err)
	}

	if err := writeAtomic(path, rewritten); err != nil {
		return 0, err
	}
	return len(edits), nil
}

// ApplyEdits applies non-overlapping edits to in-memory content and returns
// the rewritten copy. The input slice is not modified.
func ApplyEdits(content []byte, edits []scan.Edit) ([]byte, error) {
	pending := make([]pendingEdit, len(edits))
	for i, e := range edits {
		pending[i] = pendingEdit{span: e}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].span.Span.Start < pending[j].span.Span.Start
	})
	for i := 0; i+1 < len(pending); i++ {
		if pending[i].span.Span.End > pending[i+1].span.Span.Start {
			return nil, errs.Newf(errs.InternalError,
				"overlapping edits at byte %d", pending[i+1].span.Span.Start)
		}
	}
	return spliceEdits(content, pending)
}

// spliceEdits applies sorted edits back to front and verifies each span
// still holds the text the diagnostic matched.
func spliceEdits(content []byte, edits []pendingEdit) ([]byte, error) {
	out := append([]byte(nil), content...)
	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		start, end := int(e.span.Span.Start), int(e.span.Span.End)
		if start < 0 || end > len(out) || start > end {
			return nil, fmt.Errorf("edit span [%d,%d) out of range", start, end)
		}
		if e.oldText != "" && string(out[start:end]) != e.oldText {
			return nil, fmt.Errorf("text at [%d,%d) does not match the scanned content", start, end)
		}
		out = append(out[:start], append([]byte(e.span.NewText), out[end:]...)...)
	}
	return out, nil
}

// writeAtomic replaces a file via a temp file and rename, preserving mode.
// No partial write is ever visible, even on a crash mid-application.
func writeAtomic(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode()
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".sift-rewrite-*")
	if err != nil {
		return fmt.Errorf("cannot create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("cannot write %s: %w", tmpPath, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("cannot chmod %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("cannot replace %s: %w", path, err)
	}
	return nil
}
