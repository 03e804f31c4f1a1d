package rules

import (
	"os"
	"path/filepath"
	"testing"

	"sift/internal/errs"
	"sift/internal/lang"
)

func writeRule(t *testing.T, dir, name, doc string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
}

const someRuleDoc = `id: no-bare-some
message: avoid bare Some
severity: error
language: rust
rule:
  pattern: Some($A)
fix: $A.unwrap()
`

func TestLoadDirs(t *testing.T) {
	t.Run("loads and compiles rule documents", func(t *testing.T) {
		dir := t.TempDir()
		writeRule(t, dir, "no-bare-some.yml", someRuleDoc)
		writeRule(t, dir, "no-println.yaml", `id: no-println
language: go
rule:
  pattern: fmt.Println($$$)
`)

		rs, err := LoadDirs([]string{dir})
		if err != nil {
			t.Fatalf("LoadDirs: %v", err)
		}
		if rs.Len() != 2 {
			t.Fatalf("rules = %d, want 2", rs.Len())
		}

		rule, ok := rs.Get("no-bare-some")
		if !ok {
			t.Fatal("rule not found by id")
		}
		if rule.Severity != Error || rule.Language != lang.Rust || !rule.HasFix() {
			t.Errorf("rule = %+v", rule)
		}

		// Severity defaults to warning when the document omits it.
		other, _ := rs.Get("no-println")
		if other.Severity != Warning {
			t.Errorf("default severity = %v, want warning", other.Severity)
		}
	})

	t.Run("missing directory yields an empty set", func(t *testing.T) {
		rs, err := LoadDirs([]string{filepath.Join(t.TempDir(), "rules")})
		if err != nil {
			t.Fatalf("LoadDirs: %v", err)
		}
		if rs.Len() != 0 {
			t.Errorf("rules = %d, want 0", rs.Len())
		}
	})

	t.Run("duplicate ids fail the whole load", func(t *testing.T) {
		dir := t.TempDir()
		writeRule(t, dir, "a.yml", someRuleDoc)
		writeRule(t, dir, "b.yml", someRuleDoc)

		_, err := LoadDirs([]string{dir})
		if err == nil {
			t.Fatal("expected duplicate id error")
		}
		if errs.CodeOf(err) != errs.RuleLoadError {
			t.Errorf("code = %s", errs.CodeOf(err))
		}
	})

	t.Run("unknown language fails", func(t *testing.T) {
		dir := t.TempDir()
		writeRule(t, dir, "bad.yml", "id: bad\nlanguage: cobol\nrule:\n  pattern: x\n")
		if _, err := LoadDirs([]string{dir}); err == nil {
			t.Fatal("expected unknown language error")
		}
	})

	t.Run("uncompilable pattern fails", func(t *testing.T) {
		dir := t.TempDir()
		writeRule(t, dir, "bad.yml", "id: bad\nlanguage: go\nrule:\n  pattern: 'for (('\n")
		if _, err := LoadDirs([]string{dir}); err == nil {
			t.Fatal("expected pattern compile error")
		}
	})

	t.Run("missing id fails", func(t *testing.T) {
		dir := t.TempDir()
		writeRule(t, dir, "bad.yml", "language: go\nrule:\n  pattern: x\n")
		if _, err := LoadDirs([]string{dir}); err == nil {
			t.Fatal("expected missing id error")
		}
	})
}

func TestParseSeverity(t *testing.T) {
	cases := map[string]Severity{
		"off": Off, "hint": Hint, "info": Info, "warning": Warning, "error": Error, "": Warning,
	}
	for tag, want := range cases {
		got, err := ParseSeverity(tag)
		if err != nil || got != want {
			t.Errorf("ParseSeverity(%q) = %v, %v; want %v", tag, got, err, want)
		}
	}
	if _, err := ParseSeverity("fatal"); err == nil {
		t.Error("expected error for unknown severity")
	}
}

func TestSeverityOrder(t *testing.T) {
	order := []Severity{Off, Hint, Info, Warning, Error}
	for i := 1; i < len(order); i++ {
		if order[i-1] >= order[i] {
			t.Errorf("%v is not below %v", order[i-1], order[i])
		}
	}
}

func TestEffectiveSeverity(t *testing.T) {
	rule, err := Build("r", "go", "x", "info", "", "", "")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	tests := []struct {
		name      string
		overrides Overrides
		want      Severity
	}{
		{"no overrides keeps rule default", Overrides{}, Info},
		{"error override", Overrides{Error: []string{"r"}}, Error},
		{"off override", Overrides{Off: []string{"r"}}, Off},
		{"off beats error when both name the rule", Overrides{Off: []string{"r"}, Error: []string{"r"}}, Off},
		{"error beats hint", Overrides{Error: []string{"r"}, Hint: []string{"r"}}, Error},
		{"other rule ids are ignored", Overrides{Off: []string{"other"}}, Info},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EffectiveSeverity(rule, tt.overrides); got != tt.want {
				t.Errorf("EffectiveSeverity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOverridesMerge(t *testing.T) {
	base := Overrides{Off: []string{"a"}}
	cli := Overrides{Off: []string{"b"}, Error: []string{"c"}}

	merged := base.Merge(cli)
	if len(merged.Off) != 2 || len(merged.Error) != 1 {
		t.Errorf("merged = %+v", merged)
	}
	if len(base.Off) != 1 {
		t.Error("merge mutated the receiver")
	}
}

func TestOverridesFingerprint(t *testing.T) {
	none := Overrides{}
	off := Overrides{Off: []string{"r"}}
	promoted := Overrides{Error: []string{"r"}}

	if none.Fingerprint() != (Overrides{}).Fingerprint() {
		t.Error("empty overrides fingerprint is unstable")
	}
	if none.Fingerprint() == off.Fingerprint() || off.Fingerprint() == promoted.Fingerprint() {
		t.Error("different overrides share a fingerprint")
	}

	a := Overrides{Off: []string{"x", "y"}}
	b := Overrides{Off: []string{"y", "x"}}
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("list order changed the fingerprint")
	}
}

func TestRuleSetHash(t *testing.T) {
	a, _ := Build("r", "go", "foo($A)", "warning", "", "", "")
	b, _ := Build("r", "go", "bar($A)", "warning", "", "", "")

	rsA, _ := NewRuleSet(a)
	rsB, _ := NewRuleSet(b)
	rsA2, _ := NewRuleSet(a)

	if rsA.Hash() == rsB.Hash() {
		t.Error("different patterns share a hash")
	}
	if rsA.Hash() != rsA2.Hash() {
		t.Error("identical rule sets hash differently")
	}
}

func TestForLanguage(t *testing.T) {
	goRule, _ := Build("g", "go", "f($A)", "warning", "", "", "")
	rustRule, _ := Build("r", "rust", "f($A)", "warning", "", "", "")
	offRule, _ := Build("o", "go", "g($A)", "off", "", "", "")

	rs, err := NewRuleSet(goRule, rustRule, offRule)
	if err != nil {
		t.Fatal(err)
	}

	if got := rs.ForLanguage(lang.Go); len(got) != 2 {
		t.Errorf("go rules = %d, want 2", len(got))
	}
	langs := rs.Languages()
	if len(langs) != 2 {
		t.Errorf("languages = %v", langs)
	}
}
