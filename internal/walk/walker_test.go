package walk

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"sift/internal/errs"
	"sift/internal/ignore"
	"sift/internal/lang"
	"sift/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: logging.ErrorLevel, Format: logging.HumanFormat})
}

// buildTree creates files under root; paths use slashes, content is empty.
func buildTree(t *testing.T, root string, paths ...string) {
	t.Helper()
	for _, p := range paths {
		full := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func collectPaths(t *testing.T, w *Walker) []string {
	t.Helper()
	var out []string
	for p := range w.Walk(context.Background()) {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func relPaths(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func TestWalker(t *testing.T) {
	t.Run("recognized files only", func(t *testing.T) {
		root := t.TempDir()
		buildTree(t, root, "main.go", "lib.rs", "notes.txt", "sub/app.py")

		w, err := New(Options{Roots: []string{root}, Policy: ignore.Resolve(ignore.NewKindSet())}, testLogger())
		if err != nil {
			t.Fatal(err)
		}
		got := relPaths(t, root, collectPaths(t, w))
		want := []string{"lib.rs", "main.go", "sub/app.py"}
		if len(got) != len(want) {
			t.Fatalf("paths = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("paths = %v, want %v", got, want)
				break
			}
		}
	})

	t.Run("language filter restricts file types", func(t *testing.T) {
		root := t.TempDir()
		buildTree(t, root, "main.go", "lib.rs", "app.py")

		w, err := New(Options{
			Roots:     []string{root},
			Policy:    ignore.Resolve(ignore.NewKindSet()),
			Languages: []lang.Language{lang.Rust},
		}, testLogger())
		if err != nil {
			t.Fatal(err)
		}
		got := relPaths(t, root, collectPaths(t, w))
		if len(got) != 1 || got[0] != "lib.rs" {
			t.Errorf("paths = %v, want [lib.rs]", got)
		}
	})

	t.Run("gitignore and hidden files are skipped", func(t *testing.T) {
		root := t.TempDir()
		buildTree(t, root, "main.go", "generated.go", ".hidden.go", ".tools/helper.go", "vendor/dep.go")
		if err := os.WriteFile(filepath.Join(root, ".gitignore"), []byte("generated.go\nvendor/\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		w, err := New(Options{Roots: []string{root}, Policy: ignore.Resolve(ignore.NewKindSet())}, testLogger())
		if err != nil {
			t.Fatal(err)
		}
		got := relPaths(t, root, collectPaths(t, w))
		if len(got) != 1 || got[0] != "main.go" {
			t.Errorf("paths = %v, want [main.go]", got)
		}
	})

	t.Run("no-ignore hidden searches dotfiles", func(t *testing.T) {
		root := t.TempDir()
		buildTree(t, root, "main.go", ".hidden.go")

		w, err := New(Options{
			Roots:  []string{root},
			Policy: ignore.Resolve(ignore.NewKindSet(ignore.KindHidden)),
		}, testLogger())
		if err != nil {
			t.Fatal(err)
		}
		got := relPaths(t, root, collectPaths(t, w))
		if len(got) != 2 {
			t.Errorf("paths = %v, want both files", got)
		}
	})

	t.Run("deeper gitignore overrides shallower", func(t *testing.T) {
		root := t.TempDir()
		buildTree(t, root, "a.go", "sub/b.go")
		if err := os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.go\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(root, "sub", ".gitignore"), []byte("!*.go\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		w, err := New(Options{Roots: []string{root}, Policy: ignore.Resolve(ignore.NewKindSet())}, testLogger())
		if err != nil {
			t.Fatal(err)
		}
		got := relPaths(t, root, collectPaths(t, w))
		if len(got) != 1 || got[0] != "sub/b.go" {
			t.Errorf("paths = %v, want [sub/b.go]", got)
		}
	})

	t.Run("override globs apply relative to the root", func(t *testing.T) {
		root := t.TempDir()
		buildTree(t, root, "src/main.rs", "src/lib.rs", "tools/gen.rs", "Cargo.toml")

		overrides, err := ignore.CompileOverrides([]string{"src/**/*.rs"})
		if err != nil {
			t.Fatal(err)
		}
		policy := ignore.Resolve(ignore.NewKindSet())
		policy.Overrides = overrides

		w, err := New(Options{Roots: []string{root}, Policy: policy}, testLogger())
		if err != nil {
			t.Fatal(err)
		}
		got := relPaths(t, root, collectPaths(t, w))
		want := []string{"src/lib.rs", "src/main.rs"}
		if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("paths = %v, want %v", got, want)
		}
	})

	t.Run("file root is emitted directly", func(t *testing.T) {
		root := t.TempDir()
		buildTree(t, root, "only.go")

		file := filepath.Join(root, "only.go")
		w, err := New(Options{Roots: []string{file}, Policy: ignore.Resolve(ignore.NewKindSet())}, testLogger())
		if err != nil {
			t.Fatal(err)
		}
		got := collectPaths(t, w)
		if len(got) != 1 || got[0] != file {
			t.Errorf("paths = %v, want [%s]", got, file)
		}
	})

	t.Run("empty roots are a config error", func(t *testing.T) {
		_, err := New(Options{Policy: ignore.Resolve(ignore.NewKindSet())}, testLogger())
		if err == nil {
			t.Fatal("expected error")
		}
		if errs.CodeOf(err) != errs.ConfigError {
			t.Errorf("code = %s", errs.CodeOf(err))
		}
	})

	t.Run("missing root is a config error", func(t *testing.T) {
		_, err := New(Options{
			Roots:  []string{filepath.Join(t.TempDir(), "absent")},
			Policy: ignore.Resolve(ignore.NewKindSet()),
		}, testLogger())
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("cancellation closes the stream", func(t *testing.T) {
		root := t.TempDir()
		var files []string
		for i := 0; i < 50; i++ {
			files = append(files, filepath.Join("pkg", string(rune('a'+i%26))+".go"))
		}
		buildTree(t, root, files...)

		w, err := New(Options{Roots: []string{root}, Policy: ignore.Resolve(ignore.NewKindSet())}, testLogger())
		if err != nil {
			t.Fatal(err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		paths := w.Walk(ctx)
		<-paths
		cancel()
		// The channel must close; draining terminates.
		for range paths {
		}
	})
}
