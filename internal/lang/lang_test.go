package lang

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParse(t *testing.T) {
	cases := map[string]Language{
		"go": Go, "golang": Go, "GO": Go,
		"js": JavaScript, "ts": TypeScript, "tsx": TSX,
		"py": Python, "rs": Rust, "rust": Rust,
		"java": Java, "kt": Kotlin, " kotlin ": Kotlin,
	}
	for tag, want := range cases {
		got, err := Parse(tag)
		if err != nil || got != want {
			t.Errorf("Parse(%q) = %v, %v; want %v", tag, got, err, want)
		}
	}
	if _, err := Parse("brainfuck"); err == nil {
		t.Error("expected error for unknown tag")
	}
}

func TestFromPath(t *testing.T) {
	cases := map[string]Language{
		"src/main.go": Go, "a/b.mjs": JavaScript, "x.tsx": TSX,
		"lib.rs": Rust, "App.java": Java, "script.kts": Kotlin,
	}
	for path, want := range cases {
		got, ok := FromPath(path)
		if !ok || got != want {
			t.Errorf("FromPath(%q) = %v, %v; want %v", path, got, ok, want)
		}
	}
	if _, ok := FromPath("README.md"); ok {
		t.Error("markdown should not resolve to a language")
	}
}

func TestGrammar(t *testing.T) {
	for _, l := range All {
		g, err := l.Grammar()
		if err != nil || g == nil {
			t.Errorf("%s.Grammar() = %v, %v", l, g, err)
		}
		if len(l.Extensions()) == 0 {
			t.Errorf("%s has no extensions", l)
		}
	}
}

func TestInferFromProject(t *testing.T) {
	write := func(t *testing.T, dir, name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("go.mod wins", func(t *testing.T) {
		dir := t.TempDir()
		write(t, dir, "go.mod", "module example\n")
		write(t, dir, "Cargo.toml", "[package]\nname = \"x\"\n")
		if l, ok := InferFromProject(dir); !ok || l != Go {
			t.Errorf("inferred %v, %v", l, ok)
		}
	})

	t.Run("cargo manifest means rust", func(t *testing.T) {
		dir := t.TempDir()
		write(t, dir, "Cargo.toml", "[package]\nname = \"demo\"\nversion = \"0.1.0\"\n")
		if l, ok := InferFromProject(dir); !ok || l != Rust {
			t.Errorf("inferred %v, %v", l, ok)
		}
	})

	t.Run("tsconfig promotes node project to typescript", func(t *testing.T) {
		dir := t.TempDir()
		write(t, dir, "package.json", `{"name": "demo"}`)
		if l, _ := InferFromProject(dir); l != JavaScript {
			t.Errorf("without tsconfig: %v", l)
		}
		write(t, dir, "tsconfig.json", `{}`)
		if l, _ := InferFromProject(dir); l != TypeScript {
			t.Errorf("with tsconfig: %v", l)
		}
	})

	t.Run("falls back to counting source files", func(t *testing.T) {
		dir := t.TempDir()
		write(t, dir, "a.py", "")
		write(t, dir, "b.py", "")
		write(t, dir, "c.rs", "")
		if l, ok := InferFromProject(dir); !ok || l != Python {
			t.Errorf("inferred %v, %v", l, ok)
		}
	})

	t.Run("nothing recognizable", func(t *testing.T) {
		dir := t.TempDir()
		write(t, dir, "notes.txt", "hello")
		if _, ok := InferFromProject(dir); ok {
			t.Error("expected no inference")
		}
	})
}
