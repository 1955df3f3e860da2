package harness

// TraceEvent is one entry of a scenario trace: an invocation of an action or
// its completion.
type TraceEvent struct {
	Type    string         `json:"type"` // "invocation" or "completion"
	Action  string         `json:"action"`
	Args    map[string]any `json:"args,omitempty"`
	Case    string         `json:"case,omitempty"`
	Result  any            `json:"result,omitempty"`
	Notices []string       `json:"notices,omitempty"`
	Seq     int64          `json:"seq"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds every invocation and completion in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds expectation and assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Notices holds every notice emitted during the run, formatted as
	// "level CODE: message".
	Notices []string `json:"notices,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result failed.
func (r *Result) AddError(msg string) {
	r.Pass = false
	r.Errors = append(r.Errors, msg)
}

func (r *Result) nextSeq() int64 {
	return int64(len(r.Trace) + 1)
}

// AddInvocationTrace appends an invocation.
func (r *Result) AddInvocationTrace(action string, args map[string]any) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:   "invocation",
		Action: action,
		Args:   args,
		Seq:    r.nextSeq(),
	})
}

// AddCompletionTrace appends a completion with its case, result and the
// notices the action produced.
func (r *Result) AddCompletionTrace(action, outputCase string, result any, notices []string) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:    "completion",
		Action:  action,
		Case:    outputCase,
		Result:  result,
		Notices: notices,
		Seq:     r.nextSeq(),
	})
	r.Notices = append(r.Notices, notices...)
}
