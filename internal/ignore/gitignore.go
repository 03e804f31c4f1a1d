package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Matcher holds the parsed rules of one ignore file. Rules are evaluated
// against paths relative to the matcher's base directory; the last matching
// rule wins, as with git.
type Matcher struct {
	// Base is the directory the ignore file lives in.
	Base  string
	rules []*Glob
}

// ParseFile loads an ignore file. A missing file yields an empty matcher.
// Unparsable lines are skipped, matching git's tolerance for them.
func ParseFile(path, base string) *Matcher {
	m := &Matcher{Base: base}

	f, err := os.Open(path)
	if err != nil {
		return m
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// "\#foo" and "\!foo" are literal in gitignore.
		line = strings.TrimPrefix(line, `\`)
		g, err := CompileGlob(line)
		if err != nil {
			continue
		}
		m.rules = append(m.rules, g)
	}
	return m
}

// Decision is a three-valued match result.
type Decision int

const (
	// NoDecision means no rule matched; outer layers decide.
	NoDecision Decision = iota
	// Ignored means the path is ignored.
	Ignored
	// Whitelisted means a negated rule re-included the path.
	Whitelisted
)

// Match evaluates an absolute path against the matcher.
func (m *Matcher) Match(absPath string, isDir bool) Decision {
	if len(m.rules) == 0 {
		return NoDecision
	}
	rel, err := filepath.Rel(m.Base, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return NoDecision
	}
	rel = filepath.ToSlash(rel)

	decision := NoDecision
	for _, g := range m.rules {
		if g.Match(rel, isDir) {
			if g.Negated {
				decision = Whitelisted
			} else {
				decision = Ignored
			}
		}
	}
	return decision
}

// Stack layers matchers from the outermost directory inwards. Deeper ignore
// files take precedence over shallower ones, as with git.
type Stack struct {
	matchers []*Matcher
}

// Push appends a matcher for a deeper directory and returns the new stack.
// The receiver is unchanged, so sibling directories can share a prefix.
func (s Stack) Push(m *Matcher) Stack {
	layered := make([]*Matcher, len(s.matchers), len(s.matchers)+1)
	copy(layered, s.matchers)
	return Stack{matchers: append(layered, m)}
}

// Match evaluates the stack, deepest matcher first.
func (s Stack) Match(absPath string, isDir bool) Decision {
	for i := len(s.matchers) - 1; i >= 0; i-- {
		if d := s.matchers[i].Match(absPath, isDir); d != NoDecision {
			return d
		}
	}
	return NoDecision
}

// DirMatchers builds the matchers configured ignore files contribute for one
// directory. Order within the directory follows git: .ignore overrides
// .gitignore.
func DirMatchers(dir string, policy WalkPolicy) []*Matcher {
	var out []*Matcher
	if policy.UseGitIgnore {
		if m := ParseFile(filepath.Join(dir, ".gitignore"), dir); len(m.rules) > 0 {
			out = append(out, m)
		}
	}
	if policy.UseDotIgnore {
		if m := ParseFile(filepath.Join(dir, ".ignore"), dir); len(m.rules) > 0 {
			out = append(out, m)
		}
	}
	return out
}

// BaseStack builds the stack in effect at a walk root: the global gitignore,
// the repository's .git/info/exclude, then ignore files from parent
// directories (nearest last).
func BaseStack(root string, policy WalkPolicy) Stack {
	var stack Stack

	if policy.UseGitGlobal {
		if path := globalGitignorePath(); path != "" {
			// Global patterns apply relative to wherever they match.
			stack = stack.Push(ParseFile(path, root))
		}
	}

	repo := repoRoot(root)
	if repo != "" && policy.UseGitExclude {
		stack = stack.Push(ParseFile(filepath.Join(repo, ".git", "info", "exclude"), repo))
	}

	if policy.UseParent {
		var parents []string
		for dir := filepath.Dir(root); ; dir = filepath.Dir(dir) {
			parents = append(parents, dir)
			if repo != "" && dir == repo {
				break
			}
			if dir == filepath.Dir(dir) {
				break
			}
		}
		// Outermost first so nearer parents take precedence.
		for i := len(parents) - 1; i >= 0; i-- {
			for _, m := range DirMatchers(parents[i], policy) {
				stack = stack.Push(m)
			}
		}
	}

	for _, m := range DirMatchers(root, policy) {
		stack = stack.Push(m)
	}
	return stack
}

// repoRoot finds the enclosing directory containing .git, if any.
func repoRoot(start string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func globalGitignorePath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "git", "ignore")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "git", "ignore")
}
