package scan

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"sift/internal/engine"
	"sift/internal/logging"
	"sift/internal/rules"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: logging.ErrorLevel, Format: logging.HumanFormat})
}

func buildRule(t *testing.T, id, language, pattern, severity, fix string) *rules.Rule {
	t.Helper()
	r, err := rules.Build(id, language, pattern, severity, fix, "message for "+id, "")
	if err != nil {
		t.Fatalf("Build(%s): %v", id, err)
	}
	return r
}

func ruleSet(t *testing.T, rs ...*rules.Rule) *rules.RuleSet {
	t.Helper()
	set, err := rules.NewRuleSet(rs...)
	if err != nil {
		t.Fatal(err)
	}
	return set
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDispatcherFile(t *testing.T) {
	someRule := buildRule(t, "no-bare-some", "rust", "Some($A)", "warning", "$A.unwrap()")

	t.Run("matches carry position, text, and fix", func(t *testing.T) {
		dir := t.TempDir()
		path := writeSource(t, dir, "main.rs", "fn main() {\n    let x = Some(123);\n}\n")

		d := NewDispatcher(ruleSet(t, someRule), rules.Overrides{}, nil, testLogger())
		result := d.File(context.Background(), engine.NewParser(), path)

		if len(result.Diagnostics) != 1 {
			t.Fatalf("diagnostics = %d, want 1", len(result.Diagnostics))
		}
		diag := result.Diagnostics[0]
		if diag.Kind != KindMatch || diag.RuleID != "no-bare-some" {
			t.Errorf("diagnostic = %+v", diag)
		}
		if diag.Start.Line != 1 {
			t.Errorf("line = %d, want 1", diag.Start.Line)
		}
		if diag.Text != "Some(123)" {
			t.Errorf("text = %q", diag.Text)
		}
		if diag.Fix == nil || diag.Fix.NewText != "123.unwrap()" {
			t.Errorf("fix = %+v", diag.Fix)
		}
	})

	t.Run("unrecognized and unmatched files yield no diagnostics", func(t *testing.T) {
		dir := t.TempDir()
		noLang := writeSource(t, dir, "README.md", "# nothing\n")
		noMatch := writeSource(t, dir, "clean.rs", "fn main() {}\n")

		d := NewDispatcher(ruleSet(t, someRule), rules.Overrides{}, nil, testLogger())
		for _, path := range []string{noLang, noMatch} {
			if res := d.File(context.Background(), engine.NewParser(), path); len(res.Diagnostics) != 0 {
				t.Errorf("%s: diagnostics = %v", path, res.Diagnostics)
			}
		}
	})

	t.Run("file that does not parse yields one parse-error diagnostic", func(t *testing.T) {
		dir := t.TempDir()
		path := writeSource(t, dir, "broken.rs", "fn main( {{{\n")

		d := NewDispatcher(ruleSet(t, someRule), rules.Overrides{}, nil, testLogger())
		result := d.File(context.Background(), engine.NewParser(), path)

		if len(result.Diagnostics) != 1 {
			t.Fatalf("diagnostics = %d, want 1", len(result.Diagnostics))
		}
		if result.Diagnostics[0].Kind != KindParseError {
			t.Errorf("kind = %q, want parse-error", result.Diagnostics[0].Kind)
		}
	})

	t.Run("off override suppresses the rule entirely", func(t *testing.T) {
		dir := t.TempDir()
		path := writeSource(t, dir, "main.rs", "fn main() { let x = Some(1); }\n")

		overrides := rules.Overrides{Off: []string{"no-bare-some"}}
		d := NewDispatcher(ruleSet(t, someRule), overrides, nil, testLogger())
		if res := d.File(context.Background(), engine.NewParser(), path); len(res.Diagnostics) != 0 {
			t.Errorf("diagnostics = %v, want none", res.Diagnostics)
		}
	})

	t.Run("severity override changes reported severity", func(t *testing.T) {
		dir := t.TempDir()
		path := writeSource(t, dir, "main.rs", "fn main() { let x = Some(1); }\n")

		overrides := rules.Overrides{Error: []string{"no-bare-some"}}
		d := NewDispatcher(ruleSet(t, someRule), overrides, nil, testLogger())
		res := d.File(context.Background(), engine.NewParser(), path)
		if len(res.Diagnostics) != 1 || res.Diagnostics[0].Severity != rules.Error {
			t.Errorf("diagnostics = %+v", res.Diagnostics)
		}
	})

	t.Run("source scans in-memory content", func(t *testing.T) {
		d := NewDispatcher(ruleSet(t, someRule), rules.Overrides{}, nil, testLogger())
		res := d.Source(context.Background(), engine.NewParser(), "buffer.rs",
			[]byte("fn main() { let x = Some(9); }"))
		if len(res.Diagnostics) != 1 {
			t.Fatalf("diagnostics = %d, want 1", len(res.Diagnostics))
		}
	})
}

func TestStream(t *testing.T) {
	someRule := buildRule(t, "no-bare-some", "rust", "Some($A)", "warning", "")

	t.Run("every path is scanned exactly once", func(t *testing.T) {
		dir := t.TempDir()
		var want []string
		for _, name := range []string{"a.rs", "b.rs", "c.rs", "d.rs", "e.rs"} {
			want = append(want, writeSource(t, dir, name, "fn main() { let x = Some(1); }\n"))
		}

		paths := make(chan string, len(want))
		for _, p := range want {
			paths <- p
		}
		close(paths)

		d := NewDispatcher(ruleSet(t, someRule), rules.Overrides{}, nil, testLogger())
		results := Collect(d.Stream(context.Background(), paths, 4))

		if len(results) != len(want) {
			t.Fatalf("results = %d, want %d", len(results), len(want))
		}
		seen := map[string]int{}
		for _, r := range results {
			seen[r.Path]++
			if len(r.Diagnostics) != 1 {
				t.Errorf("%s: diagnostics = %d", r.Path, len(r.Diagnostics))
			}
		}
		for _, p := range want {
			if seen[p] != 1 {
				t.Errorf("%s scanned %d times", p, seen[p])
			}
		}
	})

	t.Run("collect orders results deterministically", func(t *testing.T) {
		dir := t.TempDir()
		for _, name := range []string{"z.rs", "a.rs", "m.rs"} {
			writeSource(t, dir, name, "fn main() { let x = Some(1); }\n")
		}

		run := func() []string {
			paths := make(chan string, 3)
			for _, name := range []string{"z.rs", "a.rs", "m.rs"} {
				paths <- filepath.Join(dir, name)
			}
			close(paths)
			d := NewDispatcher(ruleSet(t, someRule), rules.Overrides{}, nil, testLogger())
			var out []string
			for _, r := range Collect(d.Stream(context.Background(), paths, 3)) {
				out = append(out, r.Path)
			}
			return out
		}

		first, second := run(), run()
		for i := range first {
			if first[i] != second[i] {
				t.Fatalf("order differs: %v vs %v", first, second)
			}
		}
		if filepath.Base(first[0]) != "a.rs" {
			t.Errorf("first = %v, want a.rs first", first)
		}
	})

	t.Run("cancellation stops dequeuing", func(t *testing.T) {
		dir := t.TempDir()
		path := writeSource(t, dir, "a.rs", "fn main() {}\n")

		paths := make(chan string)
		ctx, cancel := context.WithCancel(context.Background())

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			paths <- path
			cancel()
		}()

		d := NewDispatcher(ruleSet(t, someRule), rules.Overrides{}, nil, testLogger())
		results := d.Stream(ctx, paths, 2)
		for range results {
		}
		wg.Wait()
	})
}

func TestCache(t *testing.T) {
	someRule := buildRule(t, "no-bare-some", "rust", "Some($A)", "warning", "$A.unwrap()")

	t.Run("round trips diagnostics by content hash", func(t *testing.T) {
		cache, err := OpenCache(t.TempDir(), "hash-1", testLogger())
		if err != nil {
			t.Fatalf("OpenCache: %v", err)
		}
		defer cache.Close()

		diags := []Diagnostic{{
			RuleID:   "no-bare-some",
			Kind:     KindMatch,
			File:     "a.rs",
			Span:     engine.Span{Start: 3, End: 10},
			Severity: rules.Warning,
			Text:     "Some(1)",
			Fix:      &Edit{Span: engine.Span{Start: 3, End: 10}, NewText: "1.unwrap()"},
		}}
		cache.Put("a.rs", "content-hash", diags)

		got, ok := cache.Get("a.rs", "content-hash")
		if !ok {
			t.Fatal("entry not found")
		}
		if len(got) != 1 || got[0].RuleID != "no-bare-some" || got[0].Severity != rules.Warning {
			t.Errorf("got = %+v", got)
		}
		if got[0].Fix == nil || got[0].Fix.NewText != "1.unwrap()" {
			t.Errorf("fix lost in round trip: %+v", got[0].Fix)
		}

		if _, ok := cache.Get("a.rs", "different-hash"); ok {
			t.Error("stale content served from cache")
		}
	})

	t.Run("rule set change drops old entries", func(t *testing.T) {
		dir := t.TempDir()
		cache, err := OpenCache(dir, "hash-1", testLogger())
		if err != nil {
			t.Fatal(err)
		}
		cache.Put("a.rs", "content-hash", []Diagnostic{{RuleID: "r", Kind: KindMatch}})
		if err := cache.Close(); err != nil {
			t.Fatal(err)
		}

		reopened, err := OpenCache(dir, "hash-2", testLogger())
		if err != nil {
			t.Fatal(err)
		}
		defer reopened.Close()
		if _, ok := reopened.Get("a.rs", "content-hash"); ok {
			t.Error("entry survived a rule set change")
		}
	})

	t.Run("override change invalidates cached results", func(t *testing.T) {
		srcDir := t.TempDir()
		cacheDir := t.TempDir()
		path := writeSource(t, srcDir, "main.rs", "fn main() { let x = Some(1); }\n")

		rs := ruleSet(t, someRule)

		warm, err := OpenCache(cacheDir, CacheKey(rs, rules.Overrides{}), testLogger())
		if err != nil {
			t.Fatal(err)
		}
		d := NewDispatcher(rs, rules.Overrides{}, warm, testLogger())
		if res := d.File(context.Background(), engine.NewParser(), path); len(res.Diagnostics) != 1 {
			t.Fatalf("warm-up diagnostics = %d, want 1", len(res.Diagnostics))
		}
		if err := warm.Close(); err != nil {
			t.Fatal(err)
		}

		off := rules.Overrides{Off: []string{"no-bare-some"}}
		silenced, err := OpenCache(cacheDir, CacheKey(rs, off), testLogger())
		if err != nil {
			t.Fatal(err)
		}
		d = NewDispatcher(rs, off, silenced, testLogger())
		if res := d.File(context.Background(), engine.NewParser(), path); len(res.Diagnostics) != 0 {
			t.Errorf("rule turned off still reported from cache: %+v", res.Diagnostics)
		}
		if err := silenced.Close(); err != nil {
			t.Fatal(err)
		}

		promoted := rules.Overrides{Error: []string{"no-bare-some"}}
		strict, err := OpenCache(cacheDir, CacheKey(rs, promoted), testLogger())
		if err != nil {
			t.Fatal(err)
		}
		defer strict.Close()
		d = NewDispatcher(rs, promoted, strict, testLogger())
		res := d.File(context.Background(), engine.NewParser(), path)
		if len(res.Diagnostics) != 1 || res.Diagnostics[0].Severity != rules.Error {
			t.Errorf("promoted severity not honored after cache warm-up: %+v", res.Diagnostics)
		}
	})

	t.Run("dispatcher skips rescan on cache hit", func(t *testing.T) {
		dir := t.TempDir()
		path := writeSource(t, dir, "main.rs", "fn main() { let x = Some(1); }\n")

		cache, err := OpenCache(t.TempDir(), "hash-1", testLogger())
		if err != nil {
			t.Fatal(err)
		}
		defer cache.Close()

		d := NewDispatcher(ruleSet(t, someRule), rules.Overrides{}, cache, testLogger())
		first := d.File(context.Background(), engine.NewParser(), path)
		second := d.File(context.Background(), engine.NewParser(), path)

		if len(first.Diagnostics) != 1 || len(second.Diagnostics) != 1 {
			t.Fatalf("diagnostics = %d then %d, want 1 and 1", len(first.Diagnostics), len(second.Diagnostics))
		}
		if first.Diagnostics[0] != second.Diagnostics[0] {
			// Fix pointers differ; compare the visible fields instead.
			a, b := first.Diagnostics[0], second.Diagnostics[0]
			if a.RuleID != b.RuleID || a.Span != b.Span || a.Text != b.Text {
				t.Errorf("cached result differs: %+v vs %+v", a, b)
			}
		}
	})
}

func TestSummarizeAndExit(t *testing.T) {
	results := []FileResult{
		{Path: "a.rs", Diagnostics: []Diagnostic{
			{Kind: KindMatch, Severity: rules.Warning},
			{Kind: KindMatch, Severity: rules.Error},
		}},
		{Path: "b.rs", Diagnostics: []Diagnostic{{Kind: KindParseError, Severity: rules.Warning}}},
		{Path: "c.rs"},
	}

	s := Summarize(results)
	if s.FilesScanned != 3 || s.Matches != 2 || s.ParseErrors != 1 {
		t.Errorf("summary = %+v", s)
	}
	if s.BySeverity["error"] != 1 || s.BySeverity["warning"] != 1 {
		t.Errorf("bySeverity = %v", s.BySeverity)
	}

	if !HasErrors(results) {
		t.Error("error-severity match not detected")
	}
	if HasErrors(results[1:]) {
		t.Error("parse errors alone must not fail the run")
	}
}
