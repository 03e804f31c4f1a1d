package main

import (
	"context"
	"fmt"
	"os"

	"sift/internal/config"
	"sift/internal/errs"
	"sift/internal/ignore"
	"sift/internal/lang"
	"sift/internal/logging"
	"sift/internal/report"
	"sift/internal/rewrite"
	"sift/internal/rules"
	"sift/internal/scan"
	"sift/internal/walk"
)

// walkFlags are the discovery flags shared by run and scan.
type walkFlags struct {
	follow   bool
	threads  int
	noIgnore []string
	globs    []string
}

// buildPolicy resolves config plus CLI flags into the walk policy. Bad
// ignore kinds and bad globs fail here, before any walking starts.
func buildPolicy(cfg *config.Config, f walkFlags) (ignore.WalkPolicy, error) {
	var kinds []ignore.Kind
	for _, tag := range append(append([]string{}, cfg.Walk.NoIgnore...), f.noIgnore...) {
		k, err := ignore.ParseKind(tag)
		if err != nil {
			return ignore.WalkPolicy{}, errs.Wrap(errs.ConfigError, "bad --no-ignore value", err)
		}
		kinds = append(kinds, k)
	}
	policy := ignore.Resolve(ignore.NewKindSet(kinds...))

	overrides, err := ignore.CompileOverrides(append(append([]string{}, cfg.Walk.Globs...), f.globs...))
	if err != nil {
		return ignore.WalkPolicy{}, errs.Wrap(errs.ConfigError, "bad --globs value", err)
	}
	policy.Overrides = overrides

	policy.FollowSymlinks = cfg.Walk.FollowSymlinks || f.follow
	policy.ThreadCount = cfg.Walk.Threads
	if f.threads > 0 {
		policy.ThreadCount = f.threads
	}
	return policy, nil
}

// severityFlags are the per-run severity override flags.
type severityFlags struct {
	error   []string
	warning []string
	info    []string
	hint    []string
	off     []string
}

func (f severityFlags) overrides(cfg *config.Config) rules.Overrides {
	return cfg.Severity.Overrides().Merge(rules.Overrides{
		Error:   f.error,
		Warning: f.warning,
		Info:    f.info,
		Hint:    f.hint,
		Off:     f.off,
	})
}

// pipeline bundles everything one scan invocation needs.
type pipeline struct {
	cfg        *config.Config
	logger     *logging.Logger
	dispatcher *scan.Dispatcher
	walker     *walk.Walker
	cache      *scan.Cache
	policy     ignore.WalkPolicy
	runID      string
}

// newPipeline wires config, rules, cache, dispatcher, and walker for the
// given roots. Fatal configuration problems surface as errors; the caller
// exits with status 2.
func newPipeline(cfg *config.Config, logger *logging.Logger, rs *rules.RuleSet,
	overrides rules.Overrides, useCache bool, roots []string, wf walkFlags) (*pipeline, error) {

	policy, err := buildPolicy(cfg, wf)
	if err != nil {
		return nil, err
	}

	var cache *scan.Cache
	if useCache || cfg.Cache.Enabled {
		cache, err = scan.OpenCache(cfg.Cache.Dir, scan.CacheKey(rs, overrides), logger)
		if err != nil {
			// The cache is an optimization; a broken one never blocks a scan.
			logger.Warn("Scan cache unavailable", map[string]interface{}{
				"error": err.Error(),
			})
			cache = nil
		}
	}

	dispatcher := scan.NewDispatcher(rs, overrides, cache, logger)

	if len(roots) == 0 {
		roots = []string{"."}
	}
	walker, err := walk.New(walk.Options{
		Roots:     roots,
		Policy:    policy,
		Languages: dispatcher.Languages(),
	}, logger)
	if err != nil {
		return nil, err
	}

	return &pipeline{
		cfg:        cfg,
		logger:     logger,
		dispatcher: dispatcher,
		walker:     walker,
		cache:      cache,
		policy:     policy,
		runID:      config.NewRunID(),
	}, nil
}

func (p *pipeline) close() {
	if p.cache != nil {
		_ = p.cache.Close()
	}
}

// collect runs the full scan to completion and returns sorted results.
func (p *pipeline) collect(ctx context.Context) []scan.FileResult {
	paths := p.walker.Walk(ctx)
	results := p.dispatcher.Stream(ctx, paths, p.policy.ResolvedThreads())
	return scan.Collect(results)
}

// interactive streams results into a rewrite session, one prompt at a time.
func (p *pipeline) interactive(ctx context.Context) (*rewrite.SessionReport, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	paths := p.walker.Walk(ctx)
	results := p.dispatcher.Stream(ctx, paths, p.policy.ResolvedThreads())

	prompter := rewrite.NewTerminalPrompter(os.Stdin, os.Stdout)
	session := rewrite.NewSession(prompter, p.logger)
	return session.Run(results, cancel)
}

// printResults renders collected results in the selected format and writes
// the optional report file.
func (p *pipeline) printResults(results []scan.FileResult, jsonStyle string, jsonSet bool, reportFile string) error {
	summary := scan.Summarize(results)

	if jsonSet {
		style, err := report.ParseStyle(jsonStyle)
		if err != nil {
			return errs.Wrap(errs.ConfigError, "bad --json value", err)
		}
		printer := report.NewJSONPrinter(os.Stdout, style)
		for _, r := range results {
			if err := printer.Result(r); err != nil {
				return err
			}
		}
		if err := printer.Summary(summary); err != nil {
			return err
		}
	} else {
		printer := report.NewHumanPrinter(os.Stdout)
		for _, r := range results {
			if err := printer.Result(r); err != nil {
				return err
			}
		}
		if err := printer.Summary(summary); err != nil {
			return err
		}
	}

	if reportFile != "" {
		if err := report.WriteFile(reportFile, p.runID, results, summary); err != nil {
			return err
		}
		p.logger.Info("Report written", map[string]interface{}{
			"file": reportFile, "runId": p.runID,
		})
	}
	return nil
}

// exitForResults maps scan results to the process exit status: matches at
// error severity mean a failing run.
func exitForResults(results []scan.FileResult) {
	if scan.HasErrors(results) {
		os.Exit(1)
	}
}

// fail prints a fatal error and exits. Config and rule-load problems exit
// with status 2, distinct from "matches found".
func fail(logger *logging.Logger, err error) {
	logger.Error("Run aborted", map[string]interface{}{
		"error": err.Error(),
		"code":  string(errs.CodeOf(err)),
	})
	os.Exit(2)
}

// inferLanguage resolves the --lang flag, falling back to project manifest
// inference for ad-hoc runs.
func inferLanguage(tag string, root string) (lang.Language, error) {
	if tag != "" {
		return lang.Parse(tag)
	}
	if l, ok := lang.InferFromProject(root); ok {
		return l, nil
	}
	return "", fmt.Errorf("cannot infer a language; pass --lang")
}
