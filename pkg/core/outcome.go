package core

// Outcome is the result of evaluating one rule against one model.
// Exactly one outcome exists per (enabled rule, in-scope model) pair.
type Outcome struct {
	RuleName  string   `json:"rule_name"`
	ModelName string   `json:"model_name"`
	ProjectID string   `json:"project_id"`
	UniqueID  string   `json:"unique_id,omitempty"`
	Severity  Severity `json:"severity"`
	Passed    bool     `json:"passed"`
	Message   string   `json:"message,omitempty"`
}

// Status returns "passed" or "failed".
func (o Outcome) Status() string {
	if o.Passed {
		return "passed"
	}
	return "failed"
}
