package harness

// StepResult is what the pipeline did with one scenario step.
type StepResult struct {
	Index      int            `json:"index"`
	Operation  string         `json:"operation,omitempty"`
	Final      map[string]any `json:"final,omitempty"`
	Changes    []ChangeRecord `json:"changes,omitempty"`
	Event      string         `json:"event,omitempty"`
	RuleErrors []string       `json:"rule_errors,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// ChangeRecord is a field-level change as reported by a step.
type ChangeRecord struct {
	Field     string `json:"field"`
	Operation string `json:"operation"`
	OldValue  any    `json:"old_value"`
	NewValue  any    `json:"new_value"`
}

// TraceEvent is one outbox entry in publish order.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Type    string `json:"type"`
	ID      string `json:"id"`
	Time    string `json:"time"`
	Subject string `json:"subject,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true if every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Steps holds one entry per scenario step.
	Steps []StepResult `json:"steps"`

	// Trace contains the published events in outbox order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
