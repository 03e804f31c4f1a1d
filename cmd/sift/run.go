package main

import (
	"context"

	"github.com/spf13/cobra"

	"sift/internal/config"
	"sift/internal/rewrite"
	"sift/internal/rules"
)

var (
	runPattern     string
	runLang        string
	runRewrite     string
	runInteractive bool
	runApplyAll    bool
	runJSON        string
	runWalk        walkFlags
)

var runCmd = &cobra.Command{
	Use:   "run -p PATTERN [paths...]",
	Short: "Search for one pattern, optionally rewriting matches",
	Long: `Run searches the given paths (the current directory by default) for a
single ad-hoc pattern. Patterns are written as source code with $NAME
meta-variables: $A binds one node, $$$ matches any number of siblings.

When --lang is omitted the language is inferred from project manifests
(go.mod, Cargo.toml, package.json, and friends).

Examples:
  # Find every call to a deprecated function
  sift run -p 'legacyParse($ARGS)' --lang go

  # Rewrite Some(x) unwrapping across a Rust crate
  sift run -p 'Some($A)' --rewrite '$A.unwrap()' --lang rust --update-all

  # Review each rewrite interactively
  sift run -p 'console.log($$$)' --rewrite 'logger.debug($$$)' -i src/`,
	Run: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runPattern, "pattern", "p", "", "Pattern to search for (required)")
	runCmd.Flags().StringVarP(&runLang, "lang", "l", "", "Pattern language (inferred from the project when omitted)")
	runCmd.Flags().StringVarP(&runRewrite, "rewrite", "r", "", "Rewrite template for matches")
	runCmd.Flags().BoolVarP(&runInteractive, "interactive", "i", false, "Review and apply rewrites one at a time")
	runCmd.Flags().BoolVarP(&runApplyAll, "update-all", "U", false, "Apply all rewrites without prompting")
	runCmd.Flags().StringVar(&runJSON, "json", "", "JSON output style: pretty, stream, compact")
	runCmd.Flags().Lookup("json").NoOptDefVal = "pretty"
	registerWalkFlags(runCmd, &runWalk)
	_ = runCmd.MarkFlagRequired("pattern")
	runCmd.MarkFlagsMutuallyExclusive("interactive", "json")
	runCmd.MarkFlagsMutuallyExclusive("interactive", "update-all")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fail(newLogger(config.DefaultConfig()), err)
	}
	logger := newLogger(cfg)

	l, err := inferLanguage(runLang, ".")
	if err != nil {
		fail(logger, err)
	}

	// An ad-hoc run is a one-rule rule set.
	rule, err := rules.Build("inline", l.String(), runPattern, "warning", runRewrite, "", "")
	if err != nil {
		fail(logger, err)
	}
	rs, err := rules.NewRuleSet(rule)
	if err != nil {
		fail(logger, err)
	}

	p, err := newPipeline(cfg, logger, rs, rules.Overrides{}, false, args, runWalk)
	if err != nil {
		fail(logger, err)
	}
	defer p.close()

	ctx := context.Background()

	if runInteractive {
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

	if runApplyAll {
		applied, err := rewrite.ApplyAll(results, logger)
		if err != nil {
			fail(logger, err)
		}
		logger.Info("Rewrites applied", map[string]interface{}{
			"edits": applied.Applied, "staleFiles": applied.StaleFiles,
		})
	}

	jsonSet := cmd.Flags().Changed("json")
	if err := p.printResults(results, runJSON, jsonSet, ""); err != nil {
		fail(logger, err)
	}
}
