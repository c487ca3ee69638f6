package harness

import "github.com/xiao2945/danci-sub000/internal/sorting"

// StepTrace records what one step produced.
type StepTrace struct {
	Seq    int64  `json:"seq"`
	Action string `json:"action"`
	Rule   string `json:"rule"`
	Input  int    `json:"input"`

	// Matched is the output of a match step.
	Matched []string `json:"matched,omitempty"`

	// Groups and Unmatched are the output of an apply step.
	Groups    []sorting.Group `json:"groups,omitempty"`
	Unmatched []string        `json:"unmatched,omitempty"`

	Error string `json:"error,omitempty"`
}

// Output is the flattened output of the step.
func (s StepTrace) Output() []string {
	if s.Action == ActionMatch {
		return s.Matched
	}
	res := sorting.Result{Groups: s.Groups, Unmatched: s.Unmatched}
	return res.Flatten()
}

// Result is the outcome of a scenario.
type Result struct {
	// Pass is true if every expectation held.
	Pass bool `json:"pass"`

	// Trace has one entry per step, in order.
	Trace []StepTrace `json:"trace"`

	// Errors contains expectation failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []StepTrace{},
		Errors: []string{},
	}
}

// AddError adds an expectation failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
