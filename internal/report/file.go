package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"sift/internal/scan"
)

// fileDocument is the shape written by WriteFile. RunID ties a report back
// to the run's log lines.
type fileDocument struct {
	RunID       string            `json:"runId"`
	GeneratedAt string            `json:"generatedAt"`
	Results     []scan.FileResult `json:"results"`
	Summary     scan.Summary      `json:"summary"`
}

// WriteFile writes the full scan result to path as a JSON document. A path
// ending in .gz is gzip-compressed.
func WriteFile(path, runID string, results []scan.FileResult, summary scan.Summary) error {
	doc := fileDocument{
		RunID:       runID,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Results:     results,
		Summary:     summary,
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create report file: %w", err)
	}

	var failed error
	if strings.HasSuffix(path, ".gz") {
		zw := gzip.NewWriter(f)
		enc := json.NewEncoder(zw)
		enc.SetIndent("", "  ")
		failed = enc.Encode(doc)
		if err := zw.Close(); failed == nil {
			failed = err
		}
	} else {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		failed = enc.Encode(doc)
	}

	if err := f.Close(); failed == nil {
		failed = err
	}
	if failed != nil {
		return fmt.Errorf("cannot write report file %s: %w", path, failed)
	}
	return nil
}
