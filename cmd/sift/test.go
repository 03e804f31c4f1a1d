package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"sift/internal/config"
	"sift/internal/report"
	"sift/internal/rules"
	"sift/internal/verify"
)

var (
	testDirs          []string
	testUpdate        bool
	testSkipSnapshots bool
	testJSON          bool
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Verify rules against their test cases",
	Long: `Test loads the rule set and runs every rule test case: valid snippets must
produce no matches, invalid snippets at least one. For rules with a rewrite,
the rewritten output of each invalid snippet is compared byte-for-byte
against its recorded snapshot.

Examples:
  # Verify all rules
  sift test

  # Record or refresh snapshots
  sift test --update-all

  # Match counting only, no snapshot comparison
  sift test --skip-snapshot-tests`,
	Run: runTest,
}

func init() {
	testCmd.Flags().StringArrayVar(&testDirs, "test-dirs", nil, "Test case directories (default from sift.yml)")
	testCmd.Flags().BoolVarP(&testUpdate, "update-all", "U", false, "Overwrite snapshots with the current rewrite output")
	testCmd.Flags().BoolVar(&testSkipSnapshots, "skip-snapshot-tests", false, "Skip snapshot comparison")
	testCmd.Flags().BoolVar(&testJSON, "json", false, "Emit the report as JSON")

	rootCmd.AddCommand(testCmd)
}

func runTest(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fail(newLogger(config.DefaultConfig()), err)
	}
	logger := newLogger(cfg)

	rs, err := rules.LoadDirs(cfg.RuleDirs)
	if err != nil {
		fail(logger, err)
	}

	dirs := cfg.TestDirs
	if len(testDirs) > 0 {
		dirs = testDirs
	}
	cases, err := verify.LoadCases(dirs)
	if err != nil {
		fail(logger, err)
	}
	if len(cases) == 0 {
		logger.Warn("No test cases found", map[string]interface{}{"dirs": dirs})
	}

	verifier := verify.New(rs, verify.Options{
		SnapshotDir:   cfg.SnapshotDir,
		Update:        testUpdate,
		SkipSnapshots: testSkipSnapshots,
	}, logger)

	result, err := verifier.Run(context.Background(), cases)
	if err != nil {
		fail(logger, err)
	}

	if testJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fail(logger, err)
		}
	} else {
		printer := report.NewHumanPrinter(os.Stdout)
		if err := printer.VerifyReport(result); err != nil {
			fail(logger, err)
		}
	}

	if !result.Ok() {
		os.Exit(1)
	}
}
