package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"sift/internal/config"
	"sift/internal/logging"
	"sift/internal/version"
)

var (
	// colorFlag is the CLI --color flag value
	colorFlag string
	// logLevelFlag is the CLI --log-level flag value
	logLevelFlag string
	// configFlag is the CLI --config flag value
	configFlag string
)

var rootCmd = &cobra.Command{
	Use:   "sift",
	Short: "sift - structural code search and rewrite",
	Long: `sift searches code by syntax tree structure instead of text. Patterns look
like ordinary source code with $NAME meta-variables, and every rule can carry
a rewrite template to fix what it finds.`,
	Version: version.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		configureColor()
	},
}

func init() {
	rootCmd.SetVersionTemplate("sift version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&colorFlag, "color", "auto",
		"Colorize output: auto, always, never")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "",
		"Log level: debug, info, warn, error (default from sift.yml)")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "",
		"Config file (default: sift.yml, searched upward)")
}

// loadConfig reads the project configuration honoring the --config flag.
func loadConfig() (*config.Config, error) {
	return config.Load(".", configFlag)
}

// configureColor applies the --color flag. Auto means "only on a terminal".
func configureColor() {
	switch colorFlag {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	default:
		color.NoColor = !term.IsTerminal(int(os.Stdout.Fd()))
	}
}

// newLogger builds the run logger from config and the --log-level flag.
// The SIFT_LOG_LEVEL environment variable sits between the two.
func newLogger(cfg *config.Config) *logging.Logger {
	level := logging.LogLevel(cfg.Logging.Level)
	if env := os.Getenv("SIFT_LOG_LEVEL"); env != "" {
		level = logging.LogLevel(env)
	}
	if logLevelFlag != "" {
		level = logging.LogLevel(logLevelFlag)
	}
	return logging.NewLogger(logging.Config{
		Format: logging.Format(cfg.Logging.Format),
		Level:  level,
	})
}
