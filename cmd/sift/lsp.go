package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sift/internal/config"
	"sift/internal/logging"
	"sift/internal/lsp"
	"sift/internal/rules"
	"sift/internal/scan"
)

var lspCmd = &cobra.Command{
	Use:   "lsp",
	Short: "Serve diagnostics to editors over stdio",
	Long: `Lsp starts a language server on stdin/stdout. Open documents are scanned
with the project's rule set on every change and diagnostics are pushed to
the editor. Logs go to stderr; stdout carries only protocol traffic.`,
	Run: runLsp,
}

func init() {
	rootCmd.AddCommand(lspCmd)
}

func runLsp(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fail(newLogger(config.DefaultConfig()), err)
	}

	// Protocol traffic owns stdout; force logs to stderr as JSON so editor
	// log panes can parse them.
	logger := logging.NewLogger(logging.Config{
		Format: logging.JSONFormat,
		Level:  logging.LogLevel(cfg.Logging.Level),
	})

	rs, err := rules.LoadDirs(cfg.RuleDirs)
	if err != nil {
		fail(logger, err)
	}

	dispatcher := scan.NewDispatcher(rs, cfg.Severity.Overrides(), nil, logger)
	server := lsp.NewServer(dispatcher, os.Stdin, os.Stdout, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Language server started", map[string]interface{}{
		"rules": rs.Len(),
	})
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		fail(logger, err)
	}
}
