// Package config loads dbt-governance tool configuration.
//
// Configuration is layered with koanf. Precedence (highest to lowest):
// explicitly set CLI flags, environment variables, the local config file,
// the global config file (~/.dbt-governance/config.yml), built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Default configuration values.
const (
	DefaultRulesFile  = "governance-rules.yml"
	DefaultOutputPath = "governance-results.json"
	DefaultTargetDir  = "target"
	DefaultOutput     = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel   = "warn"
	DefaultLogFormat  = "text"

	// GlobalConfigDir is the per-user directory under $HOME.
	GlobalConfigDir = ".dbt-governance"
	// GlobalConfigFile is the file name of the global config.
	GlobalConfigFile = "config.yml"

	// EnvPrefix prefixes environment variables mapped to config keys.
	EnvPrefix = "DBT_GOVERNANCE_"
)

// LocalConfigNames are looked up in the working directory, in order.
var LocalConfigNames = []string{"dbt-governance.yml", "dbt-governance.yaml"}

// Output modes.
var OutputModes = []string{"auto", "text", "markdown", "json"}

// Config holds all tool configuration.
type Config struct {
	// ProjectPath is a single dbt project; it wins over ProjectPaths
	ProjectPath string `koanf:"project_path"`
	// ProjectPaths lists dbt projects evaluated together
	ProjectPaths []string `koanf:"project_paths"`
	// RulesFile is the governance rules file
	RulesFile string `koanf:"rules_file"`
	// GlobalRulesFile is the older name of RulesFile
	GlobalRulesFile string `koanf:"global_rules_file"`
	// OutputPath is where the JSON result document is written
	OutputPath string `koanf:"output_path"`
	// Output is the console format: auto, text, markdown or json
	Output string `koanf:"output"`
	// TargetDir is the dbt target directory, relative to each project
	TargetDir string `koanf:"target_dir"`
	// HistoryPath enables the SQLite run history when set
	HistoryPath string `koanf:"history_path"`
	// MetricsFile enables the Prometheus textfile export when set
	MetricsFile string `koanf:"metrics_file"`
	// Log configures diagnostics on stderr
	Log LogConfig `koanf:"log"`

	// Sources lists the config files that were loaded, in load order
	Sources []string `koanf:"-"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// DefaultGlobalConfigPath returns ~/.dbt-governance/config.yml, or "" when
// the home directory is unknown.
func DefaultGlobalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
}

// Rules returns the effective rules file path.
func (c *Config) Rules() string {
	if c.RulesFile != "" {
		return c.RulesFile
	}
	if c.GlobalRulesFile != "" {
		return c.GlobalRulesFile
	}
	return DefaultRulesFile
}

// Projects returns the dbt project directories to evaluate. A single
// ProjectPath takes precedence over ProjectPaths.
func (c *Config) Projects() ([]string, error) {
	if strings.TrimSpace(c.ProjectPath) != "" {
		return []string{c.ProjectPath}, nil
	}

	var paths []string
	for _, p := range c.ProjectPaths {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: set project_path, project_paths, --project-path or DBT_PROJECT_PATHS", ErrNoProjects)
	}
	return paths, nil
}
