package engine

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

var metaVarRe = regexp.MustCompile(`^\$(\$\$)?([A-Z_][A-Z0-9_]*)?$`)

type metaVarKind int

const (
	notMetaVar metaVarKind = iota
	metaVarSingle
	metaVarMulti
)

// parseMetaVar classifies pattern node text. Names beginning with an
// underscore match without binding.
func parseMetaVar(text string) (metaVarKind, string) {
	m := metaVarRe.FindStringSubmatch(text)
	if m == nil {
		return notMetaVar, ""
	}
	name := m[2]
	if m[1] == "$$" {
		return metaVarMulti, name
	}
	if name == "" {
		return notMetaVar, ""
	}
	return metaVarSingle, name
}

func bindable(name string) bool {
	return name != "" && !strings.HasPrefix(name, "_")
}

// Matches returns every occurrence of the pattern in the tree, in source
// order. Matched subtrees are not searched again, so the resulting spans
// never overlap.
func (p *Pattern) Matches(t *Tree) []Match {
	var matches []Match

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		bindings := make(map[string]string)
		if p.matchNode(p.root, n, t.Source, bindings) {
			matches = append(matches, Match{
				Span:     Span{Start: n.StartByte(), End: n.EndByte()},
				Start:    Position{Line: n.StartPoint().Row, Column: n.StartPoint().Column},
				End:      Position{Line: n.EndPoint().Row, Column: n.EndPoint().Column},
				Bindings: bindings,
			})
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(t.Root())

	return matches
}

// matchNode structurally compares a pattern node against a candidate node.
// Interior nodes must agree on kind and children; named leaves must agree on
// text; anonymous tokens agree when their kinds (token text) agree.
func (p *Pattern) matchNode(pat, cand *sitter.Node, candSource []byte, bindings map[string]string) bool {
	if pat.IsNamed() {
		patText := unspell(pat.Content(p.source), p.Lang)
		switch kind, name := parseMetaVar(patText); kind {
		case metaVarSingle:
			if !cand.IsNamed() {
				return false
			}
			if !bindable(name) {
				return true
			}
			text := cand.Content(candSource)
			if prev, ok := bindings[name]; ok {
				return prev == text
			}
			bindings[name] = text
			return true
		case metaVarMulti:
			// A bare $$$ outside a sibling list matches any one node.
			return cand.IsNamed()
		}
	}

	if pat.Type() != cand.Type() {
		return false
	}
	if pat.NamedChildCount() == 0 && cand.NamedChildCount() == 0 {
		if !pat.IsNamed() {
			// Anonymous tokens: the kind is the token text.
			return true
		}
		return unspell(pat.Content(p.source), p.Lang) == cand.Content(candSource)
	}

	return p.matchChildren(significantChildren(pat), significantChildren(cand), candSource, bindings)
}

// matchChildren matches two child lists, allowing $$$ to absorb any number
// of candidate siblings. Bindings are trialed on a copy so backtracking
// cannot leak partial state.
func (p *Pattern) matchChildren(pats, cands []*sitter.Node, candSource []byte, bindings map[string]string) bool {
	if len(pats) == 0 {
		return len(cands) == 0
	}

	pat := pats[0]
	if pat.IsNamed() {
		if kind, name := parseMetaVar(unspell(pat.Content(p.source), p.Lang)); kind == metaVarMulti {
			for take := 0; take <= len(cands); take++ {
				trial := copyBindings(bindings)
				if bindable(name) {
					text := spanText(cands[:take], candSource)
					if prev, ok := trial[name]; ok {
						if prev != text {
							continue
						}
					} else {
						trial[name] = text
					}
				}
				if p.matchChildren(pats[1:], cands[take:], candSource, trial) {
					replaceBindings(bindings, trial)
					return true
				}
			}
			return false
		}
	}

	if len(cands) == 0 {
		return false
	}
	trial := copyBindings(bindings)
	if !p.matchNode(pat, cands[0], candSource, trial) {
		return false
	}
	if !p.matchChildren(pats[1:], cands[1:], candSource, trial) {
		return false
	}
	replaceBindings(bindings, trial)
	return true
}

// significantChildren returns all children except comments and other extras.
func significantChildren(n *sitter.Node) []*sitter.Node {
	count := int(n.ChildCount())
	children := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		child := n.Child(i)
		if child == nil || child.IsExtra() || child.IsMissing() {
			continue
		}
		children = append(children, child)
	}
	return children
}

// spanText returns the source text covered by a run of sibling nodes.
func spanText(nodes []*sitter.Node, source []byte) string {
	if len(nodes) == 0 {
		return ""
	}
	return string(source[nodes[0].StartByte():nodes[len(nodes)-1].EndByte()])
}

func copyBindings(b map[string]string) map[string]string {
	out := make(map[string]string, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

func replaceBindings(dst, src map[string]string) {
	for k := range dst {
		delete(dst, k)
	}
	for k, v := range src {
		dst[k] = v
	}
}
