// Package rulesfile loads governance rule files.
//
// A rules file holds the acceptance thresholds of a run and the ordered
// list of rules. Two rule shapes are accepted:
//
//	- name: facts_have_fact_tag            - name: facts_have_fact_tag
//	  type: has_tag                          checks:
//	  args: {required_tag: fact}               type: has_tag
//	  selector: {select: fct_}                 required_tag: fact
//	                                           select: fct_
//
// In the second (checks) shape, selector keys found in checks are lifted
// into the selector and the remaining keys become the rule arguments.
package rulesfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/dbt-governance/pkg/core"
)

// Errors returned by the loader.
var (
	ErrNotFound = errors.New("rules file not found")
	ErrInvalid  = errors.New("invalid rules file")
	ErrSchema   = errors.New("rules file schema violation")
)

// Rule names that older rules files used to select a check by name alone.
var legacyRuleTypes = map[string]string{
	"Owner Metadata":   "has_owner",
	"Primary Key Test": "has_primary_key_test",
}

// selectorKeys may appear inside checks and are lifted into the selector.
var selectorKeys = []string{"select", "exclude", "match_type", "exclude_match_type"}

// RuleSet is the content of a rules file.
type RuleSet struct {
	// Path is the file the rule set was read from
	Path string
	// Thresholds are the acceptance thresholds and default severity
	Thresholds core.Thresholds
	// Rules in file order
	Rules []core.Rule
}

// Enabled returns the number of enabled rules.
func (rs *RuleSet) Enabled() int {
	n := 0
	for i := range rs.Rules {
		if rs.Rules[i].IsEnabled() {
			n++
		}
	}
	return n
}

type fileDoc struct {
	Version              any         `yaml:"version"`
	RuleEvaluationConfig *evalConfig `yaml:"rule_evaluation_config"`
	Rules                []ruleDoc   `yaml:"rules"`
}

type evalConfig struct {
	DefaultSeverity          string              `yaml:"default_severity"`
	DefaultPassRateThreshold *float64            `yaml:"default_pass_rate_threshold"`
	PassRateThresholds       map[string]*float64 `yaml:"pass_rate_acceptance_thresholds"`
}

type ruleDoc struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Severity    string         `yaml:"severity"`
	Enabled     *bool          `yaml:"enabled"`
	Type        string         `yaml:"type"`
	RuleType    string         `yaml:"rule_type"`
	Args        map[string]any `yaml:"args"`
	Selector    *selectorDoc   `yaml:"selector"`
	Paths       []string       `yaml:"paths"`
	Checks      map[string]any `yaml:"checks"`
}

type selectorDoc struct {
	Select           patterns `yaml:"select"`
	Exclude          patterns `yaml:"exclude"`
	MatchType        string   `yaml:"match_type"`
	ExcludeMatchType string   `yaml:"exclude_match_type"`
	Paths            []string `yaml:"paths"`
}

// patterns accepts a single pattern string or a list of patterns.
type patterns string

func (p *patterns) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*p = patterns(strings.Join(list, " "))
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	*p = patterns(s)
	return nil
}

// Load reads and validates the rules file at path.
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rs.Path = path
	return rs, nil
}

// Parse decodes and validates rules file content.
func Parse(data []byte) (*RuleSet, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalid)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	rs := &RuleSet{Thresholds: thresholds(doc.RuleEvaluationConfig)}
	if err := rs.Thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	for _, rd := range doc.Rules {
		rs.Rules = append(rs.Rules, toRule(rd))
	}
	return rs, nil
}

func thresholds(ec *evalConfig) core.Thresholds {
	th := core.Thresholds{PassRate: map[string]float64{}}
	if ec == nil {
		return th
	}
	if ec.DefaultSeverity != "" {
		th.DefaultSeverity = core.Severity(strings.ToLower(strings.TrimSpace(ec.DefaultSeverity)))
	}
	th.Fallback = ec.DefaultPassRateThreshold
	for k, v := range ec.PassRateThresholds {
		// A null threshold falls back like an absent one.
		if v != nil {
			th.PassRate[k] = *v
		}
	}
	return th
}

func toRule(rd ruleDoc) core.Rule {
	r := core.Rule{
		Name:        strings.TrimSpace(rd.Name),
		Description: rd.Description,
		Severity:    core.Severity(strings.ToLower(strings.TrimSpace(rd.Severity))),
		Enabled:     rd.Enabled,
		Type:        firstNonEmpty(rd.Type, rd.RuleType),
		Args:        rd.Args,
	}

	var sel core.SelectorSpec
	if rd.Selector != nil {
		sel = core.SelectorSpec{
			Select:           string(rd.Selector.Select),
			Exclude:          string(rd.Selector.Exclude),
			MatchType:        core.MatchType(rd.Selector.MatchType),
			ExcludeMatchType: core.MatchType(rd.Selector.ExcludeMatchType),
			Paths:            rd.Selector.Paths,
		}
	}

	if rd.Checks != nil {
		args := make(map[string]any, len(rd.Checks))
		for k, v := range rd.Checks {
			args[k] = v
		}
		if t, ok := args["type"].(string); ok {
			r.Type = t
		}
		delete(args, "type")
		for _, key := range selectorKeys {
			v, ok := args[key]
			delete(args, key)
			if !ok || v == nil {
				continue
			}
			s := fmt.Sprint(v)
			if list, ok := v.([]any); ok {
				parts := make([]string, len(list))
				for i, item := range list {
					parts[i] = fmt.Sprint(item)
				}
				s = strings.Join(parts, " ")
			}
			switch key {
			case "select":
				sel.Select = s
			case "exclude":
				sel.Exclude = s
			case "match_type":
				sel.MatchType = core.MatchType(s)
			case "exclude_match_type":
				sel.ExcludeMatchType = core.MatchType(s)
			}
		}
		r.Args = args
	}

	if r.Type == "" {
		r.Type = legacyRuleTypes[r.Name]
	}

	sel.Paths = append(sel.Paths, rd.Paths...)
	if !sel.IsEmpty() || sel.MatchType != "" {
		r.Selector = &sel
	}
	return r
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
