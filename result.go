package pulsar

import "time"

// StepResult records the outcome of one executed step.
type StepResult struct {
	Name        string         `json:"name"`
	Success     bool           `json:"success"`
	Output      any            `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
	Duration    time.Duration  `json:"duration"`
	Retries     int            `json:"retries,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ExecutionResult is the outcome of one workflow run: per-step results, the
// final state snapshot, and the execution history.
type ExecutionResult struct {
	RunID        string         `json:"run_id"`
	WorkflowName string         `json:"workflow_name"`
	Success      bool           `json:"success"`
	StepResults  []*StepResult  `json:"step_results"`
	FinalState   map[string]any `json:"final_state"`
	History      []HistoryEntry `json:"history"`
	Error        string         `json:"error,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  time.Time      `json:"completed_at"`
	Duration     time.Duration  `json:"duration"`
}

// FailedStep returns the first failed step result, if any.
func (r *ExecutionResult) FailedStep() (*StepResult, bool) {
	for _, result := range r.StepResults {
		if !result.Success {
			return result, true
		}
	}
	return nil, false
}
