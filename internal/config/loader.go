package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Errors returned by the loader.
var (
	ErrNoProjects   = errors.New("no dbt project configured")
	ErrConfigFile   = errors.New("invalid config file")
	ErrInvalidValue = errors.New("invalid config value")
)

// pathKeys are resolved relative to the directory of the file that sets them.
var pathKeys = []string{"project_path", "rules_file", "global_rules_file", "output_path", "history_path", "metrics_file"}

// flagKeys maps flag names whose config key is not the snake_case flag name.
// An empty key marks a flag that is not a config value.
var flagKeys = map[string]string{
	"log-level":     "log.level",
	"log-format":    "log.format",
	"config":        "",
	"global-config": "",
}

// Options controls where configuration is read from.
type Options struct {
	// ConfigFile is an explicit local config file (--config)
	ConfigFile string
	// GlobalConfigFile overrides DefaultGlobalConfigPath(); "-" disables it
	GlobalConfigFile string
	// WorkDir is searched for a local config file; defaults to the current directory
	WorkDir string
	// Flags are the parsed CLI flags; only flags that were set are applied
	Flags *pflag.FlagSet
}

// Loader layers configuration sources into one koanf instance.
type Loader struct {
	k       *koanf.Koanf
	sources []string
}

// Load reads configuration from every source in opts.
func Load(opts Options) (*Config, error) {
	l, err := NewLoader(opts)
	if err != nil {
		return nil, err
	}
	return l.Config()
}

// NewLoader loads all sources without decoding them.
func NewLoader(opts Options) (*Loader, error) {
	l := &Loader{k: koanf.New(".")}

	// 1. Defaults
	if err := l.k.Load(confmap.Provider(map[string]any{
		"output_path": DefaultOutputPath,
		"output":      DefaultOutput,
		"target_dir":  DefaultTargetDir,
		"log.level":   DefaultLogLevel,
		"log.format":  DefaultLogFormat,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Global config file
	global := opts.GlobalConfigFile
	if global == "" {
		global = DefaultGlobalConfigPath()
	}
	if global != "" && global != "-" {
		if _, err := os.Stat(global); err == nil {
			if err := l.loadFile(global); err != nil {
				return nil, err
			}
		}
	}

	// 3. Local config file
	local, err := findLocalConfig(opts.ConfigFile, opts.WorkDir)
	if err != nil {
		return nil, err
	}
	if local != "" {
		if err := l.loadFile(local); err != nil {
			return nil, err
		}
	}

	// 4. Environment variables
	if err := l.loadEnv(); err != nil {
		return nil, err
	}

	// 5. Flags (highest priority)
	if opts.Flags != nil {
		if err := l.k.Load(posflag.ProviderWithFlag(opts.Flags, ".", l.k, func(f *pflag.Flag) (string, any) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			if key == "" {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	return l, nil
}

// Config decodes the loaded configuration.
func (l *Loader) Config() (*Config, error) {
	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.Sources = append([]string(nil), l.sources...)
	return &cfg, nil
}

// Sources returns the config files that were loaded.
func (l *Loader) Sources() []string {
	return l.sources
}

// loadFile merges one YAML file, resolving its relative paths against the
// file's directory.
func (l *Loader) loadFile(path string) error {
	fk := koanf.New(".")
	if err := fk.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("%w %s: %w", ErrConfigFile, path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	base := filepath.Dir(abs)

	resolved := map[string]any{}
	for _, key := range pathKeys {
		if v := fk.String(key); v != "" && fk.Exists(key) {
			resolved[key] = resolvePathRelativeTo(expandHome(v), base)
		}
	}
	if fk.Exists("project_paths") {
		paths := fk.Strings("project_paths")
		for i, p := range paths {
			paths[i] = resolvePathRelativeTo(expandHome(p), base)
		}
		resolved["project_paths"] = paths
	}
	if len(resolved) > 0 {
		if err := fk.Load(confmap.Provider(resolved, "."), nil); err != nil {
			return fmt.Errorf("resolve paths in %s: %w", path, err)
		}
	}

	if err := l.k.Merge(fk); err != nil {
		return fmt.Errorf("merge %s: %w", path, err)
	}
	l.sources = append(l.sources, path)
	return nil
}

func (l *Loader) loadEnv() error {
	// DBT_GOVERNANCE_RULES_FILE -> rules_file, DBT_GOVERNANCE_LOG_LEVEL -> log.level
	if err := l.k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		if rest, ok := strings.CutPrefix(key, "log_"); ok {
			key = "log." + rest
		}
		if key == "project_paths" {
			return key, splitList(value)
		}
		return key, value
	}), nil); err != nil {
		return fmt.Errorf("failed to load env vars: %w", err)
	}

	// Variables understood by earlier releases.
	if err := l.k.Load(env.ProviderWithValue("DBT_", ".", func(key, value string) (string, any) {
		switch key {
		case "DBT_PROJECT_PATHS":
			return "project_paths", splitList(value)
		case "DBT_GLOBAL_RULES_FILE":
			return "rules_file", value
		default:
			return "", nil
		}
	}), nil); err != nil {
		return fmt.Errorf("failed to load env vars: %w", err)
	}
	return nil
}

// findLocalConfig returns the explicit config file, or the first local
// config name present in workDir.
func findLocalConfig(explicit, workDir string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: %w", ErrConfigFile, err)
		}
		return explicit, nil
	}
	if workDir == "" {
		workDir = "."
	}
	for _, name := range LocalConfigNames {
		candidate := filepath.Join(workDir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

func expandHome(path string) string {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, rest)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
