// Package report renders scan and verification results for terminals,
// machine consumers, and report files.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"sift/internal/rules"
	"sift/internal/scan"
	"sift/internal/verify"
)

// HumanPrinter renders results grouped by file, one diagnostic per line,
// with severity-colored tags when the output is a terminal.
type HumanPrinter struct {
	out io.Writer

	pathColor *color.Color
	severity  map[rules.Severity]*color.Color
}

// NewHumanPrinter creates a printer writing to out. Color is controlled
// globally through the color package; the caller decides based on the
// --color flag and terminal detection.
func NewHumanPrinter(out io.Writer) *HumanPrinter {
	return &HumanPrinter{
		out:       out,
		pathColor: color.New(color.FgWhite, color.Bold, color.Underline),
		severity: map[rules.Severity]*color.Color{
			rules.Error:   color.New(color.FgRed, color.Bold),
			rules.Warning: color.New(color.FgYellow, color.Bold),
			rules.Info:    color.New(color.FgBlue),
			rules.Hint:    color.New(color.FgCyan),
		},
	}
}

// Result prints one file's diagnostics. Files without diagnostics print
// nothing.
func (p *HumanPrinter) Result(r scan.FileResult) error {
	if len(r.Diagnostics) == 0 {
		return nil
	}

	fmt.Fprintln(p.out, p.pathColor.Sprint(r.Path))
	for _, d := range r.Diagnostics {
		if d.Kind == scan.KindParseError {
			fmt.Fprintf(p.out, "  %s %s\n", p.severityTag(d.Severity), d.Message)
			continue
		}
		fmt.Fprintf(p.out, "  %d:%d  %s  %s",
			d.Start.Line+1, d.Start.Column+1, p.severityTag(d.Severity), d.RuleID)
		if d.Message != "" {
			fmt.Fprintf(p.out, "  %s", d.Message)
		}
		fmt.Fprintln(p.out)
		for _, line := range strings.Split(d.Text, "\n") {
			fmt.Fprintf(p.out, "      %s\n", line)
		}
	}
	fmt.Fprintln(p.out)
	return nil
}

// Summary prints the run totals.
func (p *HumanPrinter) Summary(s scan.Summary) error {
	fmt.Fprintf(p.out, "%d file(s) scanned, %d match(es)", s.FilesScanned, s.Matches)
	if s.ParseErrors > 0 {
		fmt.Fprintf(p.out, ", %d parse error(s)", s.ParseErrors)
	}
	fmt.Fprintln(p.out)
	return nil
}

func (p *HumanPrinter) severityTag(s rules.Severity) string {
	c, ok := p.severity[s]
	if !ok {
		return s.String()
	}
	return c.Sprint(s.String())
}

// VerifyReport prints a verification report, one line per rule and details
// for every failure.
func (p *HumanPrinter) VerifyReport(r *verify.Report) error {
	pass := color.New(color.FgGreen, color.Bold)
	fail := color.New(color.FgRed, color.Bold)

	for _, result := range r.Results {
		tag := pass.Sprint("PASS")
		if !result.Passed {
			tag = fail.Sprint("FAIL")
		}
		fmt.Fprintf(p.out, "%s  %s", tag, result.RuleID)
		if result.Updated > 0 {
			fmt.Fprintf(p.out, "  (%d snapshot(s) updated)", result.Updated)
		}
		fmt.Fprintln(p.out)
		for _, f := range result.Failures {
			fmt.Fprintf(p.out, "      %s\n", f.Reason)
			if f.Snippet != "" {
				for _, line := range strings.Split(f.Snippet, "\n") {
					fmt.Fprintf(p.out, "        | %s\n", line)
				}
			}
		}
	}
	fmt.Fprintf(p.out, "\n%d passed, %d failed, %d snapshot(s) updated\n",
		r.Passed, r.Failed, r.Updated)
	return nil
}
