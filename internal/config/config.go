// Package config loads the project-level sift.yml and identifies runs.
package config

import (
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"sift/internal/errs"
	"sift/internal/rules"
)

// Config is the project configuration, read from sift.yml at the project
// root. Every field has a working default; the file is optional.
type Config struct {
	// RuleDirs are the directories scanned for rule documents.
	RuleDirs []string `yaml:"ruleDirs" mapstructure:"ruleDirs"`
	// TestDirs are the directories scanned for rule test cases.
	TestDirs []string `yaml:"testDirs" mapstructure:"testDirs"`
	// SnapshotDir stores rewrite snapshots for rule tests.
	SnapshotDir string `yaml:"snapshotDir" mapstructure:"snapshotDir"`

	Walk     WalkConfig     `yaml:"walk" mapstructure:"walk"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Severity SeverityConfig `yaml:"severity" mapstructure:"severity"`
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`
}

// WalkConfig contains file discovery settings.
type WalkConfig struct {
	FollowSymlinks bool `yaml:"followSymlinks" mapstructure:"followSymlinks"`
	// Threads is the worker count; 0 means the core-count heuristic.
	Threads int `yaml:"threads" mapstructure:"threads"`
	// Globs are override globs applied to every run, before CLI globs.
	Globs []string `yaml:"globs" mapstructure:"globs"`
	// NoIgnore lists ignore kinds disabled for every run.
	NoIgnore []string `yaml:"noIgnore" mapstructure:"noIgnore"`
}

// CacheConfig contains scan cache settings.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir     string `yaml:"dir" mapstructure:"dir"`
}

// SeverityConfig lists rule ids whose severity the project overrides.
type SeverityConfig struct {
	Error   []string `yaml:"error" mapstructure:"error"`
	Warning []string `yaml:"warning" mapstructure:"warning"`
	Info    []string `yaml:"info" mapstructure:"info"`
	Hint    []string `yaml:"hint" mapstructure:"hint"`
	Off     []string `yaml:"off" mapstructure:"off"`
}

// Overrides converts the severity lists into resolver overrides.
func (c SeverityConfig) Overrides() rules.Overrides {
	return rules.Overrides{
		Error:   c.Error,
		Warning: c.Warning,
		Info:    c.Info,
		Hint:    c.Hint,
		Off:     c.Off,
	}
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Format string `yaml:"format" mapstructure:"format"`
	Level  string `yaml:"level" mapstructure:"level"`
}

// DefaultConfig returns the configuration used when no sift.yml exists.
func DefaultConfig() *Config {
	return &Config{
		RuleDirs:    []string{"rules"},
		TestDirs:    []string{"rule-tests"},
		SnapshotDir: filepath.Join("rule-tests", "__snapshots__"),
		Cache: CacheConfig{
			Enabled: false,
			Dir:     filepath.Join(".sift", "cache"),
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// Load reads the project configuration. With an explicit file that file is
// used as-is; otherwise sift.yml (or sift.yaml/sift.toml) is searched upward
// from root. A missing file yields the defaults; a malformed one is a
// CONFIG_ERROR.
func Load(root, file string) (*Config, error) {
	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("sift")
		for _, dir := range ancestors(root) {
			v.AddConfigPath(dir)
		}
	}

	defaults := DefaultConfig()
	v.SetDefault("ruleDirs", defaults.RuleDirs)
	v.SetDefault("testDirs", defaults.TestDirs)
	v.SetDefault("snapshotDir", defaults.SnapshotDir)
	v.SetDefault("cache.enabled", defaults.Cache.Enabled)
	v.SetDefault("cache.dir", defaults.Cache.Dir)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.level", defaults.Logging.Level)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaults, nil
		}
		return nil, errs.Wrap(errs.ConfigError, "cannot read config file", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errs.Wrap(errs.ConfigError, "malformed sift.yml", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.Walk.Threads < 0 {
		return errs.New(errs.ConfigError, "walk.threads cannot be negative")
	}
	switch c.Logging.Format {
	case "", "human", "json":
	default:
		return errs.Newf(errs.ConfigError, "unknown logging format: %q", c.Logging.Format)
	}
	return nil
}

// ancestors lists root and every parent directory up to the filesystem
// root, nearest first, so a config file anywhere above the working
// directory is found.
func ancestors(root string) []string {
	abs, err := filepath.Abs(root)
	if err != nil {
		return []string{root}
	}
	var dirs []string
	for {
		dirs = append(dirs, abs)
		parent := filepath.Dir(abs)
		if parent == abs {
			return dirs
		}
		abs = parent
	}
}

// NewRunID returns a unique id for one invocation; it ties log lines and
// report files together.
func NewRunID() string {
	return uuid.New().String()
}
