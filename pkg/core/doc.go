// Package core defines the shared language of dbt-governance.
//
// This package contains:
//   - Model metadata (Model, TestDescriptor)
//   - Rule definitions (Rule, SelectorSpec, MatchType, Severity)
//   - Evaluation results (Outcome, Report, Rate)
//   - Threshold configuration (Thresholds)
//   - Error taxonomy (ConfigError and sentinels)
//
// The Golden Rule: pkg/core imports ONLY the standard library.
// All other packages depend on core, not the reverse.
package core
