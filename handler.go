package pulsar

import (
	"context"
	"time"
)

// StepHandler executes one kind of step. Handlers never return Go errors to
// the engine: any failure is captured in the StepResult so the run can stop
// cleanly and report what happened.
type StepHandler interface {
	// CanHandle reports whether this handler executes the given step.
	CanHandle(step Step) bool

	// Execute runs the step against the shared state.
	Execute(ctx context.Context, step Step) *StepResult
}

// beginResult starts a StepResult clock for a step.
func beginResult(name string) *StepResult {
	return &StepResult{
		Name:      name,
		StartedAt: time.Now(),
		Metadata:  map[string]any{},
	}
}

// finishResult stamps completion time and duration.
func finishResult(result *StepResult) *StepResult {
	result.CompletedAt = time.Now()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)
	return result
}

// failResult marks the result failed with the error's message and records
// its kind in metadata.
func failResult(result *StepResult, context string, err error) *StepResult {
	result.Success = false
	result.Error = context + ": " + err.Error()
	result.Metadata["error_type"] = errorTypeName(err)
	return finishResult(result)
}
