package report

import (
	"encoding/json"
	"fmt"
	"io"

	"sift/internal/scan"
)

// Style selects how JSON output is laid out.
type Style string

const (
	// StylePretty is one indented JSON document, emitted at the end.
	StylePretty Style = "pretty"
	// StyleStream is one JSON object per diagnostic per line, emitted as
	// results arrive.
	StyleStream Style = "stream"
	// StyleCompact is one unindented JSON document, emitted at the end.
	StyleCompact Style = "compact"
)

// ParseStyle resolves the --json flag value. An empty value means pretty.
func ParseStyle(tag string) (Style, error) {
	switch tag {
	case "", "pretty":
		return StylePretty, nil
	case "stream":
		return StyleStream, nil
	case "compact":
		return StyleCompact, nil
	}
	return "", fmt.Errorf("unknown json style: %q (expected pretty, stream, or compact)", tag)
}

// jsonDocument is the shape of pretty and compact output.
type jsonDocument struct {
	Results []scan.FileResult `json:"results"`
	Summary scan.Summary      `json:"summary"`
}

// JSONPrinter renders diagnostics as JSON in one of three styles.
type JSONPrinter struct {
	out      io.Writer
	style    Style
	buffered []scan.FileResult
}

// NewJSONPrinter creates a JSON printer.
func NewJSONPrinter(out io.Writer, style Style) *JSONPrinter {
	return &JSONPrinter{out: out, style: style}
}

// Result records or emits one file's diagnostics depending on style. Stream
// style writes each diagnostic immediately; the other styles buffer until
// Summary.
func (p *JSONPrinter) Result(r scan.FileResult) error {
	if p.style != StyleStream {
		if len(r.Diagnostics) > 0 {
			p.buffered = append(p.buffered, r)
		}
		return nil
	}

	enc := json.NewEncoder(p.out)
	for _, d := range r.Diagnostics {
		if err := enc.Encode(d); err != nil {
			return err
		}
	}
	return nil
}

// Summary finishes the output. Buffering styles emit the whole document
// here; stream style emits nothing, its consumers count for themselves.
func (p *JSONPrinter) Summary(s scan.Summary) error {
	if p.style == StyleStream {
		return nil
	}

	scan.SortResults(p.buffered)
	doc := jsonDocument{Results: p.buffered, Summary: s}

	enc := json.NewEncoder(p.out)
	if p.style == StylePretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(doc)
}
