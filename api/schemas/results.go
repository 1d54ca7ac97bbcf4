package schemas

import "time"

// -- Result Schemas --

// StepOutcome records the result of executing a single ActionStep. Outcomes
// are appended in execution order; on failure the outcome carries the error
// detail and no outcomes exist for the steps that were never attempted.
type StepOutcome struct {
	Index   int      `json:"index"`
	Kind    StepKind `json:"kind"`
	Success bool     `json:"success"`
	// Data carries optional captured output, e.g. extracted screen text or a
	// base64-encoded capture.
	Data  string `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// ExecutionResult is the aggregate outcome of executing one ActionPlan. It is
// the single channel through which all failure information reaches the
// caller; nothing correctness-bearing travels through logs.
type ExecutionResult struct {
	Success bool `json:"success"`
	// Summary is human-readable. On failure it names the first failing step
	// and its error detail.
	Summary  string        `json:"summary"`
	Outcomes []StepOutcome `json:"outcomes"`
}

// FirstFailure returns the first failed outcome, or nil when every executed
// step succeeded.
func (r ExecutionResult) FirstFailure() *StepOutcome {
	for i := range r.Outcomes {
		if !r.Outcomes[i].Success {
			return &r.Outcomes[i]
		}
	}
	return nil
}

// TaskRecord is the persisted trace of one task execution, written by the
// history store when persistence is configured. The core engine never reads
// these back; they exist for the API's diagnostic endpoints.
type TaskRecord struct {
	TaskID     string          `json:"task_id"`
	Text       string          `json:"text"`
	Mode       string          `json:"mode"`
	Success    bool            `json:"success"`
	Summary    string          `json:"summary"`
	Outcomes   []StepOutcome   `json:"outcomes"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}
