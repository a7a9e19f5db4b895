package pulsar

import (
	"context"
	"time"
)

// RunRecord is the persisted summary of one workflow run.
type RunRecord struct {
	ID           string         `json:"id"`
	WorkflowName string         `json:"workflow_name"`
	Success      bool           `json:"success"`
	Error        string         `json:"error,omitempty"`
	StepCount    int            `json:"step_count"`
	FinalState   map[string]any `json:"final_state,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  time.Time      `json:"completed_at"`
	Duration     time.Duration  `json:"duration"`
}

// NewRunRecord summarizes an execution result for persistence.
func NewRunRecord(result *ExecutionResult) *RunRecord {
	return &RunRecord{
		ID:           result.RunID,
		WorkflowName: result.WorkflowName,
		Success:      result.Success,
		Error:        result.Error,
		StepCount:    len(result.StepResults),
		FinalState:   result.FinalState,
		StartedAt:    result.StartedAt,
		CompletedAt:  result.CompletedAt,
		Duration:     result.Duration,
	}
}

// RunStore persists run records.
type RunStore interface {
	// Save persists one run record.
	Save(ctx context.Context, record *RunRecord) error

	// Get returns a record by run ID, or nil when not found.
	Get(ctx context.Context, id string) (*RunRecord, error)

	// List returns records newest-first, up to limit. A non-positive limit
	// means no limit.
	List(ctx context.Context, limit int) ([]*RunRecord, error)

	// Delete removes a record by run ID. Deleting an absent ID is not an
	// error.
	Delete(ctx context.Context, id string) error
}

// NullRunStore discards records, for runs where history is not wanted.
type NullRunStore struct{}

func NewNullRunStore() *NullRunStore {
	return &NullRunStore{}
}

func (s *NullRunStore) Save(ctx context.Context, record *RunRecord) error {
	return nil
}

func (s *NullRunStore) Get(ctx context.Context, id string) (*RunRecord, error) {
	return nil, nil
}

func (s *NullRunStore) List(ctx context.Context, limit int) ([]*RunRecord, error) {
	return nil, nil
}

func (s *NullRunStore) Delete(ctx context.Context, id string) error {
	return nil
}
