package rewrite

import (
	"os"

	"sift/internal/errs"
	"sift/internal/logging"
	"sift/internal/scan"
)

// Decision is the user's answer to one edit prompt.
type Decision int

const (
	// Accept applies the current edit.
	Accept Decision = iota
	// Reject skips the current edit.
	Reject
	// AcceptFile applies the current edit and every remaining edit in the
	// same file without further prompts.
	AcceptFile
	// RejectFile skips the current edit and every remaining edit in the
	// same file.
	RejectFile
	// Quit ends the session. Edits already accepted in the current file are
	// applied; everything undecided is left alone.
	Quit
)

// State describes where a session is in its lifecycle.
type State int

const (
	// AwaitingDecision means a prompt is outstanding.
	AwaitingDecision State = iota
	// Done means every edit was decided.
	Done
	// Aborted means the user quit before deciding everything.
	Aborted
)

// Decider supplies decisions for a session. The terminal prompter implements
// it for interactive runs; tests script it.
type Decider interface {
	// Decide is called once per pending edit, in file order then position
	// order within the file.
	Decide(d scan.Diagnostic, source []byte) (Decision, error)
}

// SessionReport accounts for every edit a session saw. Accepted + Rejected +
// Undecided always equals the number of edits offered.
type SessionReport struct {
	Accepted  int           `json:"accepted"`
	Rejected  int           `json:"rejected"`
	Undecided int           `json:"undecided"`
	Files     []FileOutcome `json:"files"`
	State     State         `json:"-"`
}

// Session walks edits one at a time and applies the accepted ones per file.
// It is the single consumer of a scan stream: prompts appear one at a time
// even while workers keep scanning behind it.
type Session struct {
	decider Decider
	logger  *logging.Logger
	state   State
}

// NewSession creates an interactive rewrite session.
func NewSession(decider Decider, logger *logging.Logger) *Session {
	return &Session{decider: decider, logger: logger, state: AwaitingDecision}
}

// State returns the session's current state.
func (s *Session) State() State { return s.state }

// Run consumes the result stream, prompting for each edit. Each file's
// accepted edits are written when its prompts finish, so a later Quit cannot
// undo earlier files. onQuit is invoked when the user quits, letting the
// caller cancel the producing scan; it may be nil.
func (s *Session) Run(results <-chan scan.FileResult, onQuit func()) (*SessionReport, error) {
	report := &SessionReport{}

	for result := range results {
		edits := editableDiagnostics(result.Diagnostics)
		if len(edits) == 0 {
			continue
		}

		if s.state == Aborted {
			report.Undecided += len(edits)
			continue
		}

		source, err := os.ReadFile(result.Path)
		if err != nil {
			s.logger.Warn("Skipping unreadable file", map[string]interface{}{
				"file": result.Path, "error": err.Error(),
			})
			report.Undecided += len(edits)
			continue
		}

		accepted, err := s.decideFile(edits, source, report)
		if err != nil {
			return report, err
		}
		if len(accepted) > 0 {
			if err := s.applyAccepted(result.Path, accepted, report); err != nil {
				return report, err
			}
		}

		if s.state == Aborted && onQuit != nil {
			onQuit()
			onQuit = nil
		}
	}

	if s.state != Aborted {
		s.state = Done
	}
	report.State = s.state
	return report, nil
}

// decideFile prompts for each edit in one file and returns the accepted ones.
func (s *Session) decideFile(edits []scan.Diagnostic, source []byte, report *SessionReport) ([]pendingEdit, error) {
	var accepted []pendingEdit
	blanket := -1 // -1 undecided, 0 reject-rest, 1 accept-rest

	for i, diag := range edits {
		var decision Decision
		switch blanket {
		case 1:
			decision = Accept
		case 0:
			decision = Reject
		default:
			var err error
			decision, err = s.decider.Decide(diag, source)
			if err != nil {
				return accepted, errs.Wrap(errs.InternalError, "decision prompt failed", err)
			}
		}

		switch decision {
		case Accept:
			accepted = append(accepted, pendingEdit{span: *diag.Fix, oldText: diag.Text})
			report.Accepted++
		case AcceptFile:
			accepted = append(accepted, pendingEdit{span: *diag.Fix, oldText: diag.Text})
			report.Accepted++
			blanket = 1
		case Reject:
			report.Rejected++
		case RejectFile:
			report.Rejected++
			blanket = 0
		case Quit:
			report.Undecided += len(edits) - i
			s.state = Aborted
			return accepted, nil
		}
	}
	return accepted, nil
}

// applyAccepted writes one file's accepted edits through the same atomic
// path the batch mode uses. A stale file voids its acceptances back into the
// undecided count.
func (s *Session) applyAccepted(path string, accepted []pendingEdit, report *SessionReport) error {
	applied, err := applyToFile(path, accepted)
	outcome := FileOutcome{Path: path, Applied: applied}
	if err != nil {
		if errs.CodeOf(err) == errs.StaleFile {
			outcome.Stale = true
			outcome.Applied = 0
			report.Accepted -= len(accepted)
			report.Undecided += len(accepted)
			s.logger.Warn("File changed since scan, edits not applied", map[string]interface{}{
				"file": path,
			})
			report.Files = append(report.Files, outcome)
			return nil
		}
		return err
	}
	report.Files = append(report.Files, outcome)
	return nil
}

func editableDiagnostics(diags []scan.Diagnostic) []scan.Diagnostic {
	var out []scan.Diagnostic
	for _, d := range diags {
		if d.Fix != nil {
			out = append(out, d)
		}
	}
	return out
}
