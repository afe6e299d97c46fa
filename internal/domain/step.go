package domain

import "time"

// StepRecord is one full "ask provider → act → record" cycle. Records are
// appended to the run history and never mutated afterwards.
type StepRecord struct {
	Seq          int        `json:"seq"`
	Timestamp    time.Time  `json:"timestamp"`
	Task         string     `json:"task"`
	Reply        string     `json:"reply"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	Outcomes     []Outcome  `json:"outcomes,omitempty"`
	Done         bool       `json:"done"`
	FinalMessage string     `json:"final_message,omitempty"`
	Thinking     string     `json:"thinking,omitempty"`
}

// Budget bounds a single run. Read-only after the run starts; checked only
// at step boundaries.
type Budget struct {
	MaxIterations int           `json:"maxIterations"`
	MaxDuration   time.Duration `json:"maxDuration"`
	StepDelay     time.Duration `json:"stepDelay"`
}

// RunStatus is a read-only snapshot of the engine, computed on demand.
type RunStatus struct {
	Running     bool          `json:"running"`
	CurrentStep int           `json:"current_step"`
	TotalSteps  int           `json:"total_steps"`
	Elapsed     time.Duration `json:"elapsed"`
}

// RunSummary aggregates a finished (or in-flight) run by scanning its step
// history. No separate counters are kept anywhere.
type RunSummary struct {
	TotalSteps          int           `json:"total_steps"`
	SuccessfulSteps     int           `json:"successful_steps"`
	FailedSteps         int           `json:"failed_steps"`
	TotalToolCalls      int           `json:"total_tool_calls"`
	SuccessfulToolCalls int           `json:"successful_tool_calls"`
	Elapsed             time.Duration `json:"elapsed"`
	Completed           bool          `json:"completed"`
	FinalMessage        string        `json:"final_message,omitempty"`
}
