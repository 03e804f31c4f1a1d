// Package walk enumerates candidate files for scanning. It honors the
// resolved ignore policy, override globs, and an optional language filter,
// and produces paths on a bounded channel for concurrent consumers.
package walk

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"sift/internal/errs"
	"sift/internal/ignore"
	"sift/internal/lang"
	"sift/internal/logging"
)

// streamBuffer bounds the path channel so a slow consumer applies
// backpressure to the walk instead of growing memory.
const streamBuffer = 256

// Walker produces a lazy, unordered, finite stream of candidate file paths.
type Walker struct {
	roots     []string
	policy    ignore.WalkPolicy
	languages map[lang.Language]bool
	logger    *logging.Logger
}

// Options configures a walk.
type Options struct {
	// Roots are the paths to search. Must be non-empty.
	Roots  []string
	Policy ignore.WalkPolicy
	// Languages restricts candidates to the file types of these languages.
	// Empty means every recognized language.
	Languages []lang.Language
}

// New validates the walk configuration. Configuration problems (an empty
// root set) surface here, before any walking starts; bad override globs are
// rejected even earlier, when the policy is built.
func New(opts Options, logger *logging.Logger) (*Walker, error) {
	if len(opts.Roots) == 0 {
		return nil, errs.New(errs.ConfigError, "no search paths given")
	}
	for _, root := range opts.Roots {
		if _, err := os.Stat(root); err != nil {
			return nil, errs.Wrap(errs.ConfigError, "cannot access search path "+root, err)
		}
	}

	w := &Walker{roots: opts.Roots, policy: opts.Policy, logger: logger}
	if len(opts.Languages) > 0 {
		w.languages = make(map[lang.Language]bool, len(opts.Languages))
		for _, l := range opts.Languages {
			w.languages[l] = true
		}
	}
	return w, nil
}

// Walk starts the traversal and returns the path stream. The channel is
// closed when the walk finishes or the context is cancelled. Each path is
// delivered to exactly one receiver.
func (w *Walker) Walk(ctx context.Context) <-chan string {
	out := make(chan string, streamBuffer)

	go func() {
		defer close(out)
		for _, root := range w.roots {
			info, err := os.Stat(root)
			if err != nil {
				continue
			}
			if !info.IsDir() {
				if w.wantFile(root) {
					if !send(ctx, out, root) {
						return
					}
				}
				continue
			}
			stack := ignore.BaseStack(root, w.policy)
			if !w.walkDir(ctx, root, root, stack, out) {
				return
			}
		}
	}()

	return out
}

// walkDir traverses one directory. Returns false when the walk should stop
// (context cancelled).
func (w *Walker) walkDir(ctx context.Context, root, dir string, stack ignore.Stack, out chan<- string) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		w.logger.Debug("Skipping unreadable directory", map[string]interface{}{
			"dir": dir, "error": err.Error(),
		})
		return true
	}

	for _, entry := range entries {
		name := entry.Name()
		path := filepath.Join(dir, name)

		if entry.IsDir() || (entry.Type()&os.ModeSymlink != 0 && w.isDirTarget(path)) {
			if !w.enterDir(root, path, name, entry.Type()&os.ModeSymlink != 0, stack) {
				continue
			}
			child := stack
			for _, m := range ignore.DirMatchers(path, w.policy) {
				child = child.Push(m)
			}
			if !w.walkDir(ctx, root, path, child, out) {
				return false
			}
			continue
		}

		if !w.keepFile(root, path, name, entry, stack) {
			continue
		}
		if !send(ctx, out, path) {
			return false
		}
	}
	return true
}

func (w *Walker) enterDir(root, path, name string, isSymlink bool, stack ignore.Stack) bool {
	if name == ".git" {
		return false
	}
	if isSymlink && !w.policy.FollowSymlinks {
		return false
	}
	if w.policy.SkipHidden && strings.HasPrefix(name, ".") {
		return false
	}
	if stack.Match(path, true) == ignore.Ignored {
		return false
	}
	if rel, err := filepath.Rel(root, path); err == nil {
		if !w.policy.Overrides.DirAllowed(filepath.ToSlash(rel)) {
			return false
		}
	}
	return true
}

func (w *Walker) keepFile(root, path, name string, entry os.DirEntry, stack ignore.Stack) bool {
	if entry.Type()&os.ModeSymlink != 0 && !w.policy.FollowSymlinks {
		return false
	}
	if w.policy.SkipHidden && strings.HasPrefix(name, ".") {
		return false
	}
	if !w.wantFile(path) {
		return false
	}
	if stack.Match(path, false) == ignore.Ignored {
		return false
	}
	if rel, err := filepath.Rel(root, path); err == nil {
		if !w.policy.Overrides.FileAllowed(filepath.ToSlash(rel)) {
			return false
		}
	}
	return true
}

// wantFile applies the language file-type filter.
func (w *Walker) wantFile(path string) bool {
	l, ok := lang.FromPath(path)
	if !ok {
		return false
	}
	if w.languages == nil {
		return true
	}
	return w.languages[l]
}

// isDirTarget reports whether a symlink points at a directory.
func (w *Walker) isDirTarget(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func send(ctx context.Context, out chan<- string, path string) bool {
	select {
	case out <- path:
		return true
	case <-ctx.Done():
		return false
	}
}
