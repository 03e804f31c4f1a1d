package scan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"

	"sift/internal/engine"
	"sift/internal/lang"
	"sift/internal/logging"
	"sift/internal/rules"
)

// Dispatcher applies the rule set to files. It never mutates a file. The
// rule set and overrides are read-only, so one Dispatcher is shared by all
// workers; each worker brings its own Parser.
type Dispatcher struct {
	rules     *rules.RuleSet
	overrides rules.Overrides
	cache     *Cache
	logger    *logging.Logger
}

// NewDispatcher creates a dispatcher. cache may be nil.
func NewDispatcher(rs *rules.RuleSet, overrides rules.Overrides, cache *Cache, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{rules: rs, overrides: overrides, cache: cache, logger: logger}
}

// File scans a single file and returns its diagnostics in source order.
// A file that fails to parse yields a single parse-error diagnostic; the
// caller keeps going.
func (d *Dispatcher) File(ctx context.Context, parser *engine.Parser, path string) FileResult {
	result := FileResult{Path: path}

	l, ok := lang.FromPath(path)
	if !ok {
		return result
	}
	applicable := d.applicableRules(l)
	if len(applicable) == 0 {
		return result
	}

	source, err := os.ReadFile(path)
	if err != nil {
		d.logger.Debug("Skipping unreadable file", map[string]interface{}{
			"file": path, "error": err.Error(),
		})
		return result
	}

	if d.cache != nil {
		hash := contentHash(source)
		if diags, ok := d.cache.Get(path, hash); ok {
			result.Diagnostics = diags
			return result
		}
		defer func() { d.cache.Put(path, hash, result.Diagnostics) }()
	}

	result.Diagnostics = d.matchSource(ctx, parser, path, l, applicable, source)
	return result
}

// Source scans in-memory content as if it were the file at path. The LSP
// server uses it for unsaved editor buffers; the cache is bypassed.
func (d *Dispatcher) Source(ctx context.Context, parser *engine.Parser, path string, source []byte) FileResult {
	result := FileResult{Path: path}

	l, ok := lang.FromPath(path)
	if !ok {
		return result
	}
	applicable := d.applicableRules(l)
	if len(applicable) == 0 {
		return result
	}

	result.Diagnostics = d.matchSource(ctx, parser, path, l, applicable, source)
	return result
}

func (d *Dispatcher) matchSource(ctx context.Context, parser *engine.Parser, path string, l lang.Language, applicable []*rules.Rule, source []byte) []Diagnostic {
	tree, err := parser.Parse(ctx, source, l)
	if err != nil || tree.HasError() {
		return []Diagnostic{{
			Kind:     KindParseError,
			File:     path,
			Severity: rules.Warning,
			Message:  "file does not parse as " + l.String(),
		}}
	}

	var diags []Diagnostic
	for _, rule := range applicable {
		severity := rules.EffectiveSeverity(rule, d.overrides)
		for _, m := range rule.Pattern.Matches(tree) {
			diag := Diagnostic{
				RuleID:   rule.ID,
				Kind:     KindMatch,
				File:     path,
				Span:     m.Span,
				Start:    m.Start,
				End:      m.End,
				Severity: severity,
				Message:  rule.Message,
				Text:     m.Text(source),
			}
			if rule.HasFix() {
				diag.Fix = &Edit{
					Span:    m.Span,
					NewText: engine.Render(rule.Fix, m.Bindings),
				}
			}
			diags = append(diags, diag)
		}
	}

	sortDiagnostics(diags)
	return diags
}

// applicableRules returns the rules for a language whose effective severity
// is not Off. Rules switched off contribute nothing, not even work.
func (d *Dispatcher) applicableRules(l lang.Language) []*rules.Rule {
	var out []*rules.Rule
	for _, r := range d.rules.ForLanguage(l) {
		if rules.EffectiveSeverity(r, d.overrides) != rules.Off {
			out = append(out, r)
		}
	}
	return out
}

// Languages returns the languages the dispatcher can produce matches for,
// letting the walker skip everything else.
func (d *Dispatcher) Languages() []lang.Language {
	return d.rules.Languages()
}

func contentHash(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}
