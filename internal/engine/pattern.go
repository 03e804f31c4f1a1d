package engine

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"sift/internal/lang"
)

// expandoRune stands in for '$' in languages where '$' cannot appear in an
// identifier. It is a Unicode letter, so it survives every lexer we target.
const expandoRune = 'µ'

// PatternError is a structured pattern compile failure. It is surfaced
// verbatim by the rule loader.
type PatternError struct {
	Pattern string
	Lang    lang.Language
	Reason  string
}

func (e *PatternError) Error() string {
	return "cannot compile pattern " + e.Pattern + " for " + string(e.Lang) + ": " + e.Reason
}

// Pattern is a compiled structural pattern. Compilation happens once per
// rule; matching a compiled pattern is read-only and safe for concurrent use.
type Pattern struct {
	Text string
	Lang lang.Language

	// source is the (possibly re-spelled and wrapped) pattern source the
	// tree below was parsed from.
	source []byte
	tree   *sitter.Tree
	root   *sitter.Node
}

// dollarLegal reports whether '$' is a legal identifier character in l.
func dollarLegal(l lang.Language) bool {
	switch l {
	case lang.JavaScript, lang.TypeScript, lang.TSX, lang.Java:
		return true
	}
	return false
}

// spell rewrites '$' to the expando rune for languages that need it.
func spell(pattern string, l lang.Language) string {
	if dollarLegal(l) {
		return pattern
	}
	return strings.ReplaceAll(pattern, "$", string(expandoRune))
}

// unspell converts re-spelled node text back to the user's '$' form.
func unspell(text string, l lang.Language) string {
	if dollarLegal(l) {
		return text
	}
	return strings.ReplaceAll(text, string(expandoRune), "$")
}

// patternContext returns a wrapper that places statement-level patterns in a
// legal syntactic position for languages that reject bare expressions at the
// top level. The raw pattern is always tried first.
func patternContext(l lang.Language) (prefix, suffix string) {
	switch l {
	case lang.Go:
		return "func " + string(expandoRune) + "ctx() {\n", "\n}"
	case lang.Rust:
		return "fn " + string(expandoRune) + "ctx() {\n", "\n}"
	case lang.Java:
		return "class " + string(expandoRune) + "Ctx { void " + string(expandoRune) + "ctx() {\n", "\n} }"
	case lang.Kotlin:
		return "fun " + string(expandoRune) + "ctx() {\n", "\n}"
	default:
		return "", ""
	}
}

// CompilePattern parses a pattern as source text in the given language and
// locates its significant node. A pattern that cannot be parsed, even inside
// the language's wrapper context, is a compile error.
func CompilePattern(pattern string, l lang.Language) (*Pattern, error) {
	trimmed := strings.TrimSpace(pattern)
	if trimmed == "" {
		return nil, &PatternError{Pattern: pattern, Lang: l, Reason: "empty pattern"}
	}
	spelled := spell(trimmed, l)

	parser := NewParser()

	// Raw parse first: patterns that are whole declarations need no wrapper.
	if p, ok := compileAt(parser, spelled, 0, len(spelled), l); ok {
		p.Text = trimmed
		return p, nil
	}

	prefix, suffix := patternContext(l)
	if prefix != "" {
		wrapped := prefix + spelled + suffix
		if p, ok := compileAt(parser, wrapped, len(prefix), len(spelled), l); ok {
			p.Text = trimmed
			return p, nil
		}
	}

	return nil, &PatternError{Pattern: pattern, Lang: l, Reason: "pattern is not valid syntax"}
}

func compileAt(parser *Parser, source string, offset, length int, l lang.Language) (*Pattern, bool) {
	tree, err := parser.Parse(context.Background(), []byte(source), l)
	if err != nil || tree.HasError() {
		return nil, false
	}

	root := significantNode(tree.Root(), uint32(offset), uint32(offset+length))
	if root == nil {
		return nil, false
	}

	return &Pattern{
		Lang:   l,
		source: []byte(source),
		tree:   tree.tree,
		root:   root,
	}, true
}

// significantNode finds the deepest named node spanning exactly [start, end).
// Wrapper nodes with a single named child of the same span are skipped so
// that an expression pattern anchors at the expression, not at the statement
// around it.
func significantNode(root *sitter.Node, start, end uint32) *sitter.Node {
	var deepest *sitter.Node

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil || n.EndByte() < start || n.StartByte() > end {
			return
		}
		if n.IsNamed() && n.StartByte() == start && n.EndByte() == end {
			deepest = n
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)

	return deepest
}
