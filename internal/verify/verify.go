// Package verify checks rules against their test cases: valid snippets must
// produce no matches, invalid snippets at least one, and rewrite output is
// compared against recorded snapshots.
package verify

import (
	"context"
	"sort"

	"sift/internal/engine"
	"sift/internal/errs"
	"sift/internal/logging"
	"sift/internal/rewrite"
	"sift/internal/rules"
	"sift/internal/scan"
)

// Options control a verification run.
type Options struct {
	// SnapshotDir is where rewrite snapshots are stored.
	SnapshotDir string
	// Update overwrites snapshots with the current rewrite output instead
	// of comparing.
	Update bool
	// SkipSnapshots skips snapshot comparison entirely; match counting
	// still runs.
	SkipSnapshots bool
}

// Failure describes one failed expectation within a test case. Code is set
// when the failure maps onto a stable error code, like a snapshot mismatch.
type Failure struct {
	RuleID  string         `json:"ruleId"`
	Snippet string         `json:"snippet"`
	Reason  string         `json:"reason"`
	Code    errs.ErrorCode `json:"code,omitempty"`
}

// RuleResult is the outcome for one rule's test case.
type RuleResult struct {
	RuleID   string    `json:"ruleId"`
	Passed   bool      `json:"passed"`
	Updated  int       `json:"updated,omitempty"`
	Failures []Failure `json:"failures,omitempty"`
}

// Report aggregates a verification run.
type Report struct {
	Results []RuleResult `json:"results"`
	Passed  int          `json:"passed"`
	Failed  int          `json:"failed"`
	Updated int          `json:"updated"`
}

// Ok reports whether every rule passed.
func (r *Report) Ok() bool { return r.Failed == 0 }

// Verifier runs test cases against a rule set.
type Verifier struct {
	rules  *rules.RuleSet
	opts   Options
	logger *logging.Logger
}

// New creates a verifier.
func New(rs *rules.RuleSet, opts Options, logger *logging.Logger) *Verifier {
	return &Verifier{rules: rs, opts: opts, logger: logger}
}

// Run verifies every test case and returns the per-rule report, ordered by
// rule id. A missing rule or snippet failure never stops the run.
func (v *Verifier) Run(ctx context.Context, cases []TestCase) (*Report, error) {
	sort.Slice(cases, func(i, j int) bool { return cases[i].ID < cases[j].ID })

	report := &Report{}
	parser := engine.NewParser()

	for _, tc := range cases {
		result := v.runCase(ctx, parser, tc)
		if result.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
		report.Updated += result.Updated
		report.Results = append(report.Results, result)
	}
	return report, nil
}

func (v *Verifier) runCase(ctx context.Context, parser *engine.Parser, tc TestCase) RuleResult {
	result := RuleResult{RuleID: tc.ID, Passed: true}

	rule, ok := v.rules.Get(tc.ID)
	if !ok {
		result.Passed = false
		result.Failures = append(result.Failures, Failure{
			RuleID: tc.ID,
			Reason: "no rule with this id is loaded",
		})
		return result
	}

	fail := func(snippet, reason string) {
		result.Passed = false
		result.Failures = append(result.Failures, Failure{
			RuleID: tc.ID, Snippet: snippet, Reason: reason,
		})
	}
	failCoded := func(code errs.ErrorCode, snippet, reason string) {
		result.Passed = false
		result.Failures = append(result.Failures, Failure{
			RuleID: tc.ID, Snippet: snippet, Reason: reason, Code: code,
		})
	}

	for _, snippet := range tc.Valid {
		matches, err := v.matchSnippet(ctx, parser, rule, snippet)
		if err != nil {
			failCoded(errs.CodeOf(err), snippet, "snippet does not parse: "+err.Error())
			continue
		}
		if len(matches) > 0 {
			fail(snippet, "valid snippet matched the rule")
		}
	}

	var snapshots *snapshotFile
	for _, snippet := range tc.Invalid {
		matches, err := v.matchSnippet(ctx, parser, rule, snippet)
		if err != nil {
			failCoded(errs.CodeOf(err), snippet, "snippet does not parse: "+err.Error())
			continue
		}
		if len(matches) == 0 {
			fail(snippet, "invalid snippet did not match the rule")
			continue
		}

		if v.opts.SkipSnapshots || !rule.HasFix() {
			continue
		}
		rewritten, err := rewriteSnippet(snippet, rule, matches)
		if err != nil {
			fail(snippet, "rewrite failed: "+err.Error())
			continue
		}
		if snapshots == nil {
			loaded, err := loadSnapshots(v.opts.SnapshotDir, tc.ID)
			if err != nil {
				fail(snippet, "cannot read snapshot file: "+err.Error())
				continue
			}
			snapshots = loaded
		}

		stored, exists := snapshots.Snapshots[snippet]
		switch {
		case v.opts.Update:
			if !exists || stored != rewritten {
				snapshots.Snapshots[snippet] = rewritten
				result.Updated++
			}
		case !exists:
			failCoded(errs.SnapshotMismatch, snippet, "no snapshot recorded; run with snapshot update to create it")
		case stored != rewritten:
			failCoded(errs.SnapshotMismatch, snippet, "rewrite output differs from snapshot")
		}
	}

	if v.opts.Update && result.Updated > 0 {
		if err := snapshots.save(v.opts.SnapshotDir); err != nil {
			fail("", "cannot write snapshot file: "+err.Error())
		}
	}
	return result
}

// matchSnippet parses a snippet with the rule's language and runs its
// pattern.
func (v *Verifier) matchSnippet(ctx context.Context, parser *engine.Parser, rule *rules.Rule, snippet string) ([]engine.Match, error) {
	tree, err := parser.Parse(ctx, []byte(snippet), rule.Language)
	if err != nil {
		return nil, err
	}
	return rule.Pattern.Matches(tree), nil
}

// rewriteSnippet applies the rule's fix to every match in the snippet.
func rewriteSnippet(snippet string, rule *rules.Rule, matches []engine.Match) (string, error) {
	edits := make([]scan.Edit, 0, len(matches))
	for _, m := range matches {
		edits = append(edits, scan.Edit{
			Span:    m.Span,
			NewText: engine.Render(rule.Fix, m.Bindings),
		})
	}
	out, err := rewrite.ApplyEdits([]byte(snippet), edits)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
