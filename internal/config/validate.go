package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/v2"
)

// Validate checks enumerated values.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(OutputModes, c.Output) {
		errs = append(errs, fmt.Errorf("%w: output %q (expected one of %v)", ErrInvalidValue, c.Output, OutputModes))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		errs = append(errs, fmt.Errorf("%w: log.level %q", ErrInvalidValue, c.Log.Level))
	}
	if !slices.Contains([]string{"text", "logfmt", "json"}, c.Log.Format) {
		errs = append(errs, fmt.Errorf("%w: log.format %q", ErrInvalidValue, c.Log.Format))
	}
	return errors.Join(errs...)
}

// ValidatePaths checks that the configured projects and rules file exist.
func (c *Config) ValidatePaths() error {
	var errs []error

	projects, err := c.Projects()
	if err != nil {
		errs = append(errs, err)
	}
	for _, p := range projects {
		if info, err := os.Stat(p); err != nil || !info.IsDir() {
			errs = append(errs, fmt.Errorf("project directory does not exist: %s", p))
		}
	}
	if _, err := os.Stat(c.Rules()); err != nil {
		errs = append(errs, fmt.Errorf("rules file does not exist: %s\nHint: use --rules-file or set rules_file in the config", c.Rules()))
	}
	return errors.Join(errs...)
}

// Strict decodes the loaded configuration rejecting unknown keys, so that
// misspelled settings are reported instead of silently ignored.
func (l *Loader) Strict() (*Config, error) {
	var cfg Config
	err := l.k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			ErrorUnused:      true,
			WeaklyTypedInput: true,
			TagName:          "koanf",
			Result:           &cfg,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigFile, err)
	}
	cfg.Sources = append([]string(nil), l.sources...)
	return &cfg, nil
}
