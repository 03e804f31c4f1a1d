// Package ignore resolves layered ignore sources into a single walk policy
// and provides the gitignore-style matchers the walker applies.
package ignore

import (
	"fmt"
	"runtime"
)

// Kind identifies one ignore source that a run may disregard. The set of
// disregarded kinds mirrors ripgrep's --no-ignore family.
type Kind string

const (
	// KindHidden: search hidden files and directories.
	KindHidden Kind = "hidden"
	// KindDot: don't respect .ignore files.
	KindDot Kind = "dot"
	// KindExclude: don't respect .git/info/exclude.
	KindExclude Kind = "exclude"
	// KindGlobal: don't respect the global gitignore (core.excludesFile).
	KindGlobal Kind = "global"
	// KindParent: don't respect ignore files in parent directories.
	KindParent Kind = "parent"
	// KindVcs: don't respect version-control ignore files at all. Implies
	// parent VCS files, the global gitignore, and git-exclude.
	KindVcs Kind = "vcs"
)

// ParseKind resolves a --no-ignore flag value.
func ParseKind(tag string) (Kind, error) {
	switch Kind(tag) {
	case KindHidden, KindDot, KindExclude, KindGlobal, KindParent, KindVcs:
		return Kind(tag), nil
	}
	return "", fmt.Errorf("unknown ignore kind: %q (use hidden, dot, exclude, global, parent, or vcs)", tag)
}

// KindSet is the set of ignore sources a run disregards. Absence of a kind
// means "respect that ignore source".
type KindSet map[Kind]bool

// NewKindSet builds a set from parsed kinds.
func NewKindSet(kinds ...Kind) KindSet {
	set := make(KindSet, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return set
}

// WalkPolicy is the fully resolved walk configuration. It is constructed
// once per run and owned by the walker.
type WalkPolicy struct {
	// SkipHidden skips dotfiles and dot-directories.
	SkipHidden bool
	// UseDotIgnore respects .ignore files.
	UseDotIgnore bool
	// UseGitIgnore respects .gitignore files.
	UseGitIgnore bool
	// UseGitExclude respects .git/info/exclude.
	UseGitExclude bool
	// UseGitGlobal respects the global gitignore.
	UseGitGlobal bool
	// UseParent respects ignore files found in parent directories.
	UseParent bool

	FollowSymlinks bool
	// ThreadCount is the worker count; 0 means "use the heuristic".
	ThreadCount int

	// Overrides are the compiled --globs patterns, in declaration order.
	Overrides *Overrides
}

// Resolve derives a WalkPolicy from the set of disregarded kinds. Pure
// function, no I/O. Vcs is a superset flag: it turns off the global and
// exclude git sources regardless of whether those kinds are set separately.
func Resolve(disregard KindSet) WalkPolicy {
	vcs := disregard[KindVcs]
	return WalkPolicy{
		SkipHidden:    !disregard[KindHidden],
		UseDotIgnore:  !disregard[KindDot],
		UseGitIgnore:  !vcs,
		UseGitExclude: !vcs && !disregard[KindExclude],
		UseGitGlobal:  !vcs && !disregard[KindGlobal],
		UseParent:     !disregard[KindParent],
	}
}

// maxDefaultThreads caps the heuristic thread count.
const maxDefaultThreads = 12

// ResolvedThreads returns the effective worker count: the configured value,
// or min(available parallelism, 12), never below 1.
func (p WalkPolicy) ResolvedThreads() int {
	if p.ThreadCount > 0 {
		return p.ThreadCount
	}
	n := runtime.NumCPU()
	if n > maxDefaultThreads {
		n = maxDefaultThreads
	}
	if n < 1 {
		n = 1
	}
	return n
}
