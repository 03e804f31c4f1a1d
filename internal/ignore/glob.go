package ignore

import (
	"fmt"
	"regexp"
	"strings"
)

// Glob is one compiled gitignore-style pattern.
type Glob struct {
	Pattern string
	Negated bool
	dirOnly bool
	re      *regexp.Regexp
}

// CompileGlob compiles a gitignore-style glob. A leading '!' negates. A bad
// pattern (such as an unclosed character class) is a compile error so the
// caller can fail before any walking starts.
func CompileGlob(pattern string) (*Glob, error) {
	g := &Glob{Pattern: pattern}

	body := pattern
	if strings.HasPrefix(body, "!") {
		g.Negated = true
		body = body[1:]
	}
	if strings.HasSuffix(body, "/") {
		g.dirOnly = true
		body = strings.TrimSuffix(body, "/")
	}
	if body == "" {
		return nil, fmt.Errorf("empty glob: %q", pattern)
	}

	// A pattern without a slash matches at any depth.
	if !strings.Contains(body, "/") {
		body = "**/" + body
	}
	body = strings.TrimPrefix(body, "/")

	expr, err := globToRegexp(body)
	if err != nil {
		return nil, fmt.Errorf("bad glob %q: %w", pattern, err)
	}
	g.re = regexp.MustCompile(expr)
	return g, nil
}

// Match tests a slash-separated relative path against the glob.
func (g *Glob) Match(relPath string, isDir bool) bool {
	if g.dirOnly && !isDir {
		return false
	}
	return g.re.MatchString(relPath)
}

// globToRegexp translates a gitignore glob body into an anchored regexp.
// Supported syntax: '*' (within a segment), '?', '**', and '[...]' classes.
func globToRegexp(glob string) (string, error) {
	var sb strings.Builder
	sb.WriteString(`^`)

	runes := []rune(glob)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch c {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				i++
				// "**/" or trailing "**" crosses directory boundaries.
				if i+1 < len(runes) && runes[i+1] == '/' {
					i++
					sb.WriteString(`(?:[^/]+/)*`)
				} else {
					sb.WriteString(`.*`)
				}
			} else {
				sb.WriteString(`[^/]*`)
			}
		case '?':
			sb.WriteString(`[^/]`)
		case '[':
			end := -1
			for j := i + 1; j < len(runes); j++ {
				if runes[j] == ']' && j > i+1 {
					end = j
					break
				}
			}
			if end < 0 {
				return "", fmt.Errorf("unclosed character class at offset %d", i)
			}
			class := string(runes[i+1 : end])
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			sb.WriteString("[" + class + "]")
			i = end
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}

	sb.WriteString(`$`)
	return sb.String(), nil
}

// Overrides is an ordered list of include/exclude globs; later globs take
// precedence. With at least one non-negated glob present, paths matching no
// glob are excluded (whitelist semantics, as with ripgrep's --glob).
type Overrides struct {
	globs        []*Glob
	hasWhitelist bool
}

// CompileOverrides compiles the --globs flag values in declaration order.
func CompileOverrides(patterns []string) (*Overrides, error) {
	o := &Overrides{}
	for _, p := range patterns {
		g, err := CompileGlob(p)
		if err != nil {
			return nil, err
		}
		if !g.Negated {
			o.hasWhitelist = true
		}
		o.globs = append(o.globs, g)
	}
	return o, nil
}

// Empty reports whether no override globs were given.
func (o *Overrides) Empty() bool {
	return o == nil || len(o.globs) == 0
}

// FileAllowed decides whether a file survives the overrides. The last
// matching glob wins; contradictory globs are not an error.
func (o *Overrides) FileAllowed(relPath string) bool {
	if o.Empty() {
		return true
	}
	decided := false
	allowed := !o.hasWhitelist
	for _, g := range o.globs {
		if g.Match(relPath, false) {
			allowed = !g.Negated
			decided = true
		}
	}
	if !decided {
		return !o.hasWhitelist
	}
	return allowed
}

// DirAllowed decides whether a directory may be descended into. Directories
// are only pruned by an explicit negated match; whitelist globs must not
// prune them since a deeper file could still match.
func (o *Overrides) DirAllowed(relPath string) bool {
	if o.Empty() {
		return true
	}
	allowed := true
	for _, g := range o.globs {
		if g.Match(relPath, true) {
			allowed = !g.Negated
		}
	}
	return allowed
}
