// Package lang defines the supported languages, their file types, and the
// tree-sitter grammar bindings for them.
package lang

import (
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/kotlin"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language represents a supported programming language.
type Language string

const (
	Go         Language = "go"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	TSX        Language = "tsx"
	Python     Language = "python"
	Rust       Language = "rust"
	Java       Language = "java"
	Kotlin     Language = "kotlin"
)

// All lists every supported language in a fixed order.
var All = []Language{Go, JavaScript, TypeScript, TSX, Python, Rust, Java, Kotlin}

// aliases maps user-facing language tags to languages. Tags are matched
// case-insensitively.
var aliases = map[string]Language{
	"go":         Go,
	"golang":     Go,
	"js":         JavaScript,
	"javascript": JavaScript,
	"jsx":        JavaScript,
	"ts":         TypeScript,
	"typescript": TypeScript,
	"tsx":        TSX,
	"py":         Python,
	"python":     Python,
	"rs":         Rust,
	"rust":       Rust,
	"java":       Java,
	"kt":         Kotlin,
	"kotlin":     Kotlin,
}

// Parse resolves a language tag or alias to a Language.
func Parse(tag string) (Language, error) {
	if l, ok := aliases[strings.ToLower(strings.TrimSpace(tag))]; ok {
		return l, nil
	}
	return "", fmt.Errorf("unknown language: %q", tag)
}

// FromExtension returns the Language for a file extension.
func FromExtension(ext string) (Language, bool) {
	switch strings.ToLower(ext) {
	case ".go":
		return Go, true
	case ".js", ".mjs", ".cjs", ".jsx":
		return JavaScript, true
	case ".ts", ".mts", ".cts":
		return TypeScript, true
	case ".tsx":
		return TSX, true
	case ".py", ".pyw":
		return Python, true
	case ".rs":
		return Rust, true
	case ".java":
		return Java, true
	case ".kt", ".kts":
		return Kotlin, true
	default:
		return "", false
	}
}

// FromPath returns the Language for a file path.
func FromPath(path string) (Language, bool) {
	return FromExtension(filepath.Ext(path))
}

// Extensions returns the recognized file extensions for a language.
func (l Language) Extensions() []string {
	switch l {
	case Go:
		return []string{".go"}
	case JavaScript:
		return []string{".js", ".mjs", ".cjs", ".jsx"}
	case TypeScript:
		return []string{".ts", ".mts", ".cts"}
	case TSX:
		return []string{".tsx"}
	case Python:
		return []string{".py", ".pyw"}
	case Rust:
		return []string{".rs"}
	case Java:
		return []string{".java"}
	case Kotlin:
		return []string{".kt", ".kts"}
	default:
		return nil
	}
}

// Grammar returns the tree-sitter grammar for a language.
func (l Language) Grammar() (*sitter.Language, error) {
	switch l {
	case Go:
		return golang.GetLanguage(), nil
	case JavaScript:
		return javascript.GetLanguage(), nil
	case TypeScript:
		return typescript.GetLanguage(), nil
	case TSX:
		return tsx.GetLanguage(), nil
	case Python:
		return python.GetLanguage(), nil
	case Rust:
		return rust.GetLanguage(), nil
	case Java:
		return java.GetLanguage(), nil
	case Kotlin:
		return kotlin.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", l)
	}
}

func (l Language) String() string { return string(l) }
