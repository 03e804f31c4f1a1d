package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"sift/internal/engine"
	"sift/internal/errs"
	"sift/internal/lang"
)

// ruleDoc is the on-disk YAML shape of a rule.
type ruleDoc struct {
	ID       string `yaml:"id"`
	Message  string `yaml:"message"`
	Note     string `yaml:"note"`
	Severity string `yaml:"severity"`
	Language string `yaml:"language"`
	Rule     struct {
		Pattern string `yaml:"pattern"`
	} `yaml:"rule"`
	Fix string `yaml:"fix"`
}

// RuleSet maps rule ids to rules. Built once per run, then shared read-only
// by scan workers and the verifier.
type RuleSet struct {
	byID   map[string]*Rule
	sorted []*Rule
}

// NewRuleSet builds a RuleSet from already-constructed rules. Used by the
// run command, which synthesizes a single rule from CLI flags.
func NewRuleSet(list ...*Rule) (*RuleSet, error) {
	rs := &RuleSet{byID: make(map[string]*Rule, len(list))}
	for _, r := range list {
		if err := rs.add(r); err != nil {
			return nil, err
		}
	}
	rs.finish()
	return rs, nil
}

// LoadDirs loads every *.yml / *.yaml rule document under the given
// directories. Duplicate ids, unknown language tags, and uncompilable
// patterns are RULE_LOAD_ERROR failures; nothing is scanned when any rule
// fails to load. A directory that does not exist contributes no rules; the
// caller warns when the set ends up empty.
func LoadDirs(dirs []string) (*RuleSet, error) {
	rs := &RuleSet{byID: make(map[string]*Rule)}

	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() || !isYAML(path) {
				return nil
			}
			rule, err := LoadFile(path)
			if err != nil {
				return err
			}
			return rs.add(rule)
		})
		if err != nil {
			if coded, ok := err.(*errs.Error); ok {
				return nil, coded
			}
			return nil, errs.Wrap(errs.RuleLoadError, "failed to load rule directory "+dir, err)
		}
	}

	rs.finish()
	return rs, nil
}

// LoadFile loads and compiles a single rule document.
func LoadFile(path string) (*Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.RuleLoadError, "cannot read rule file "+path, err)
	}

	var doc ruleDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errs.Wrap(errs.RuleLoadError, "malformed rule file "+path, err)
	}
	if doc.ID == "" {
		return nil, errs.Newf(errs.RuleLoadError, "rule file %s has no id", path)
	}
	if doc.Rule.Pattern == "" {
		return nil, errs.Newf(errs.RuleLoadError, "rule %s has no pattern", doc.ID)
	}

	return Build(doc.ID, doc.Language, doc.Rule.Pattern, doc.Severity, doc.Fix, doc.Message, doc.Note)
}

// Build compiles a rule from its raw fields.
func Build(id, language, pattern, severity, fix, message, note string) (*Rule, error) {
	l, err := lang.Parse(language)
	if err != nil {
		return nil, errs.Wrap(errs.RuleLoadError, "rule "+id, err)
	}
	sev, err := ParseSeverity(severity)
	if err != nil {
		return nil, errs.Wrap(errs.RuleLoadError, "rule "+id, err)
	}
	compiled, err := engine.CompilePattern(pattern, l)
	if err != nil {
		// The engine's structured compile error is surfaced verbatim.
		return nil, errs.Wrap(errs.RuleLoadError, "rule "+id, err)
	}

	return &Rule{
		ID:       id,
		Language: l,
		Pattern:  compiled,
		Severity: sev,
		Fix:      fix,
		Message:  message,
		Note:     note,
		source:   pattern,
	}, nil
}

func (rs *RuleSet) add(r *Rule) error {
	if _, exists := rs.byID[r.ID]; exists {
		return errs.Newf(errs.RuleLoadError, "duplicate rule id: %s", r.ID)
	}
	rs.byID[r.ID] = r
	return nil
}

func (rs *RuleSet) finish() {
	rs.sorted = rs.sorted[:0]
	for _, r := range rs.byID {
		rs.sorted = append(rs.sorted, r)
	}
	sort.Slice(rs.sorted, func(i, j int) bool { return rs.sorted[i].ID < rs.sorted[j].ID })
}

// Get returns the rule with the given id.
func (rs *RuleSet) Get(id string) (*Rule, bool) {
	r, ok := rs.byID[id]
	return r, ok
}

// All returns every rule, ordered by id.
func (rs *RuleSet) All() []*Rule { return rs.sorted }

// Len returns the number of rules.
func (rs *RuleSet) Len() int { return len(rs.sorted) }

// ForLanguage returns the rules targeting the given language, ordered by id.
func (rs *RuleSet) ForLanguage(l lang.Language) []*Rule {
	var out []*Rule
	for _, r := range rs.sorted {
		if r.Language == l {
			out = append(out, r)
		}
	}
	return out
}

// Languages returns the set of languages targeted by any rule, in fixed
// order, so the walker can skip file types no rule cares about.
func (rs *RuleSet) Languages() []lang.Language {
	seen := make(map[lang.Language]bool)
	for _, r := range rs.sorted {
		seen[r.Language] = true
	}
	var out []lang.Language
	for _, l := range lang.All {
		if seen[l] {
			out = append(out, l)
		}
	}
	return out
}

// Hash fingerprints the rule set contents. The scan cache uses it to drop
// stale entries whenever any rule changes.
func (rs *RuleSet) Hash() string {
	h := sha256.New()
	for _, r := range rs.sorted {
		fmt.Fprintf(h, "%s\x00%s\x00%s\x00%d\x00%s\x00", r.ID, r.Language, r.source, r.Severity, r.Fix)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yml" || ext == ".yaml"
}
