package main

import (
	"context"

	"github.com/spf13/cobra"

	"sift/internal/config"
	"sift/internal/rewrite"
	"sift/internal/rules"
)

var (
	scanRuleDirs    []string
	scanInteractive bool
	scanApplyAll    bool
	scanJSON        string
	scanReportFile  string
	scanCacheDir    string
	scanWalk        walkFlags
	scanSeverity    severityFlags
)

var scanCmd = &cobra.Command{
	Use:   "scan [paths...]",
	Short: "Scan paths with the project's rule set",
	Long: `Scan applies every loaded rule to the files under the given paths (the
current directory by default) and reports matches grouped by file.

Rules live in YAML documents under the configured rule directories. Each rule
names a language, a pattern, a severity, and optionally a rewrite template.

Examples:
  # Scan the current project
  sift scan

  # Apply every rule fix without prompting
  sift scan --update-all

  # Review fixes one by one
  sift scan --interactive

  # Machine-readable output, one diagnostic per line
  sift scan --json=stream

  # Silence one rule, promote another
  sift scan --off noisy-rule --error must-fix-rule`,
	Run: runScan,
}

func init() {
	scanCmd.Flags().StringArrayVar(&scanRuleDirs, "rule-dirs", nil, "Rule directories (default from sift.yml)")
	scanCmd.Flags().BoolVarP(&scanInteractive, "interactive", "i", false, "Review and apply fixes one at a time")
	scanCmd.Flags().BoolVarP(&scanApplyAll, "update-all", "U", false, "Apply all fixes without prompting")
	scanCmd.Flags().StringVar(&scanJSON, "json", "", "JSON output style: pretty, stream, compact")
	scanCmd.Flags().Lookup("json").NoOptDefVal = "pretty"
	scanCmd.Flags().StringVar(&scanReportFile, "report-file", "", "Write the full result to this file (.gz compresses)")
	scanCmd.Flags().StringVar(&scanCacheDir, "cache", "", "Reuse cached results for unchanged files, stored under DIR")
	scanCmd.Flags().Lookup("cache").NoOptDefVal = config.DefaultConfig().Cache.Dir
	registerWalkFlags(scanCmd, &scanWalk)
	registerSeverityFlags(scanCmd, &scanSeverity)
	scanCmd.MarkFlagsMutuallyExclusive("interactive", "json")
	scanCmd.MarkFlagsMutuallyExclusive("interactive", "update-all")

	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fail(newLogger(config.DefaultConfig()), err)
	}
	logger := newLogger(cfg)

	ruleDirs := cfg.RuleDirs
	if len(scanRuleDirs) > 0 {
		ruleDirs = scanRuleDirs
	}
	rs, err := rules.LoadDirs(ruleDirs)
	if err != nil {
		fail(logger, err)
	}
	if rs.Len() == 0 {
		logger.Warn("No rules loaded", map[string]interface{}{"dirs": ruleDirs})
	}

	useCache := cmd.Flags().Changed("cache")
	if useCache && scanCacheDir != "" {
		cfg.Cache.Dir = scanCacheDir
	}

	p, err := newPipeline(cfg, logger, rs, scanSeverity.overrides(cfg), useCache, args, scanWalk)
	if err != nil {
		fail(logger, err)
	}
	defer p.close()

	ctx := context.Background()

	if scanInteractive {
		report, err := p.interactive(ctx)
		if err != nil {
			fail(logger, err)
		}
		logger.Info("Interactive session finished", map[string]interface{}{
			"accepted": report.Accepted, "rejected": report.Rejected, "undecided": report.Undecided,
		})
		return
	}

	results := p.collect(ctx)

	// Fixed matches no longer count against the exit status; stale files
	// and fixless matches still do.
	remaining := results
	if scanApplyAll {
		applied, err := rewrite.ApplyAll(results, logger)
		if err != nil {
			fail(logger, err)
		}
		logger.Info("Fixes applied", map[string]interface{}{
			"edits": applied.Applied, "staleFiles": applied.StaleFiles,
		})
		remaining = rewrite.Unresolved(results, applied)
	}

	jsonSet := cmd.Flags().Changed("json")
	if err := p.printResults(results, scanJSON, jsonSet, scanReportFile); err != nil {
		fail(logger, err)
	}
	exitForResults(remaining)
}

func registerWalkFlags(cmd *cobra.Command, f *walkFlags) {
	cmd.Flags().BoolVar(&f.follow, "follow", false, "Follow symbolic links")
	cmd.Flags().IntVarP(&f.threads, "threads", "j", 0, "Worker count (default: CPU count, capped at 12)")
	cmd.Flags().StringArrayVar(&f.noIgnore, "no-ignore", nil, "Disregard an ignore source: hidden, dot, exclude, global, parent, vcs")
	cmd.Flags().StringArrayVar(&f.globs, "globs", nil, "Include/exclude glob, '!' negates; later globs win")
}

func registerSeverityFlags(cmd *cobra.Command, f *severityFlags) {
	cmd.Flags().StringArrayVar(&f.error, "error", nil, "Report this rule id at error severity")
	cmd.Flags().StringArrayVar(&f.warning, "warning", nil, "Report this rule id at warning severity")
	cmd.Flags().StringArrayVar(&f.info, "info", nil, "Report this rule id at info severity")
	cmd.Flags().StringArrayVar(&f.hint, "hint", nil, "Report this rule id at hint severity")
	cmd.Flags().StringArrayVar(&f.off, "off", nil, "Silence this rule id")
}
