package pulsar

import (
	"context"

	"github.com/lsalihi/pulsar-compose/expr"
)

// stepDispatcher routes a step to its handler. The engine implements it;
// conditional branches recurse through it so nested steps of any kind run
// exactly as top-level ones do.
type stepDispatcher interface {
	executeStep(ctx context.Context, step Step) *StepResult
}

// ConditionalHandler evaluates a guard expression against a state snapshot
// and runs the then or else branch.
type ConditionalHandler struct {
	state      *State
	dispatcher stepDispatcher
}

// NewConditionalHandler returns a handler dispatching branch steps through
// the given dispatcher.
func NewConditionalHandler(state *State, dispatcher stepDispatcher) *ConditionalHandler {
	return &ConditionalHandler{state: state, dispatcher: dispatcher}
}

func (h *ConditionalHandler) CanHandle(step Step) bool {
	_, ok := step.(*ConditionalStep)
	return ok
}

func (h *ConditionalHandler) Execute(ctx context.Context, step Step) *StepResult {
	condStep := step.(*ConditionalStep)
	result := beginResult(condStep.Name)

	snapshot := h.state.Snapshot()
	conditionResult, err := expr.EvaluateBool(condStep.Condition, snapshot)
	if err != nil {
		return failResult(result, "condition evaluation failed", err)
	}

	branch := "then"
	branchSteps := condStep.Then
	if !conditionResult {
		branch = "else"
		branchSteps = condStep.Else
	}

	branchResults := make([]*StepResult, 0, len(branchSteps))
	allSuccess := true
	for _, sub := range branchSteps {
		subResult := h.dispatcher.executeStep(ctx, sub)
		branchResults = append(branchResults, subResult)
		if !subResult.Success {
			allSuccess = false
			break
		}
	}

	result.Success = allSuccess
	result.Output = map[string]any{
		"condition_result": conditionResult,
		"branch":           branch,
	}
	result.Metadata["condition"] = condStep.Condition
	result.Metadata["condition_result"] = conditionResult
	result.Metadata["branch_taken"] = branch
	result.Metadata["steps_executed"] = len(branchResults)
	result.Metadata["branch_results"] = branchResults
	if !allSuccess {
		failed := branchResults[len(branchResults)-1]
		result.Error = failed.Error
	}
	return finishResult(result)
}
