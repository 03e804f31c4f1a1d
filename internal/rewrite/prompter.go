package rewrite

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"sift/internal/scan"
)

// TerminalPrompter asks for decisions on a terminal, one edit at a time.
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer

	ruleColor   *color.Color
	removeColor *color.Color
	insertColor *color.Color
}

// NewTerminalPrompter creates a prompter reading answers from in and writing
// prompts to out.
func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{
		in:          bufio.NewReader(in),
		out:         out,
		ruleColor:   color.New(color.FgCyan, color.Bold),
		removeColor: color.New(color.FgRed),
		insertColor: color.New(color.FgGreen),
	}
}

// Decide shows the edit as a removal/insertion pair and reads one answer.
// Unrecognized input repeats the prompt.
func (p *TerminalPrompter) Decide(d scan.Diagnostic, source []byte) (Decision, error) {
	fmt.Fprintf(p.out, "\n%s %s:%d:%d\n",
		p.ruleColor.Sprint(d.RuleID), d.File, d.Start.Line+1, d.Start.Column+1)
	if d.Message != "" {
		fmt.Fprintf(p.out, "  %s\n", d.Message)
	}
	for _, line := range strings.Split(d.Text, "\n") {
		fmt.Fprintf(p.out, "  %s\n", p.removeColor.Sprint("- "+line))
	}
	for _, line := range strings.Split(d.Fix.NewText, "\n") {
		fmt.Fprintf(p.out, "  %s\n", p.insertColor.Sprint("+ "+line))
	}

	for {
		fmt.Fprint(p.out, "Apply change? [y]es [n]o [A]ll in file [R]est skipped [q]uit: ")
		answer, err := p.in.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return Quit, nil
			}
			return Quit, err
		}
		switch strings.TrimSpace(answer) {
		case "y", "yes":
			return Accept, nil
		case "n", "no":
			return Reject, nil
		case "A", "a", "all":
			return AcceptFile, nil
		case "R", "r", "rest":
			return RejectFile, nil
		case "q", "quit":
			return Quit, nil
		}
	}
}
