package harness

// StepTrace records how one step ran.
type StepTrace struct {
	Index int    `json:"index"`
	Op    string `json:"op"`
	ID    any    `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step and expectation held.
	Pass bool `json:"pass"`

	// Steps traces the steps in execution order.
	Steps []StepTrace `json:"steps"`

	// Errors holds the failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final collection snapshot in generic JSON form.
	State map[string]any `json:"state"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepTrace{},
		Errors: []string{},
		State:  map[string]any{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
