// Package engine provides the structural matching primitive: parsing source
// into tree-sitter syntax trees, compiling patterns with meta-variables,
// matching patterns against trees, and rendering rewrite templates.
//
// Meta-variables use the $NAME form: $A binds one named node, names starting
// with an underscore (like $_) match without binding, and $$$ matches zero or
// more trailing siblings. For languages where '$' is not a legal identifier
// character the pattern text is transparently re-spelled with a placeholder
// rune before parsing.
package engine

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"

	"sift/internal/errs"
	"sift/internal/lang"
)

// Span is a half-open byte range [Start, End) into a source buffer.
type Span struct {
	Start uint32 `json:"start"`
	End   uint32 `json:"end"`
}

// Position is a zero-based line/column location.
type Position struct {
	Line   uint32 `json:"line"`
	Column uint32 `json:"column"`
}

// Match is one occurrence of a pattern in a tree.
type Match struct {
	Span     Span
	Start    Position
	End      Position
	Bindings map[string]string
}

// Text returns the matched source text.
func (m Match) Text(source []byte) string {
	return string(source[m.Span.Start:m.Span.End])
}

// Tree is a parsed source file. It owns the underlying tree-sitter tree and
// the source bytes it was parsed from.
type Tree struct {
	Lang   lang.Language
	Source []byte

	tree *sitter.Tree
}

// Root returns the root node of the tree.
func (t *Tree) Root() *sitter.Node {
	return t.tree.RootNode()
}

// HasError reports whether the parse produced any ERROR or MISSING nodes.
func (t *Tree) HasError() bool {
	return t.tree.RootNode().HasError()
}

// Parser wraps a tree-sitter parser for multi-language parsing. A Parser is
// not safe for concurrent use; each worker owns one.
type Parser struct {
	parser *sitter.Parser
}

// NewParser creates a new parser.
func NewParser() *Parser {
	return &Parser{parser: sitter.NewParser()}
}

// Parse parses source code in the given language.
func (p *Parser) Parse(ctx context.Context, source []byte, l lang.Language) (*Tree, error) {
	grammar, err := l.Grammar()
	if err != nil {
		return nil, err
	}

	p.parser.SetLanguage(grammar)
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, errs.Wrap(errs.ParseError, "cannot parse "+l.String()+" source", err)
	}

	return &Tree{Lang: l, Source: source, tree: tree}, nil
}
