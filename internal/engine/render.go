package engine

import "regexp"

var templateVarRe = regexp.MustCompile(`\$(\$\$)?[A-Z_][A-Z0-9_]*|\$\$\$`)

// Render substitutes meta-variable references in a rewrite template with
// their bound text. Unbound references render as written, so a template
// typo surfaces visibly in the output instead of vanishing.
func Render(template string, bindings map[string]string) string {
	return templateVarRe.ReplaceAllStringFunc(template, func(ref string) string {
		name := ref[1:]
		if len(ref) >= 3 && ref[:3] == "$$$" {
			name = ref[3:]
		}
		if text, ok := bindings[name]; ok {
			return text
		}
		return ref
	})
}
