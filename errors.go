package pulsar

import (
	"errors"
	"fmt"

	"github.com/lsalihi/pulsar-compose/agent"
	"github.com/lsalihi/pulsar-compose/expr"
	"github.com/lsalihi/pulsar-compose/interact"
)

// DefinitionError reports a malformed workflow document or an undeclared
// agent reference. It is raised at construction time and is fatal for that
// load; it never surfaces as a step result.
type DefinitionError struct {
	Message string
}

func (e *DefinitionError) Error() string {
	return "definition error: " + e.Message
}

func definitionErrorf(format string, args ...any) *DefinitionError {
	return &DefinitionError{Message: fmt.Sprintf(format, args...)}
}

// StateError reports a state-store failure: a template rendered against a
// missing path, or the render depth bound being exceeded. It surfaces as a
// failed step result, never as an engine crash.
type StateError struct {
	Message string
}

func (e *StateError) Error() string {
	return "state error: " + e.Message
}

func stateErrorf(format string, args ...any) *StateError {
	return &StateError{Message: fmt.Sprintf(format, args...)}
}

// errorTypeName returns the error kind recorded in step result metadata.
func errorTypeName(err error) string {
	var defErr *DefinitionError
	var stErr *StateError
	var exprErr *expr.Error
	var callErr *agent.CallError
	var valErr *interact.ValidationError
	switch {
	case errors.As(err, &defErr):
		return "DefinitionError"
	case errors.As(err, &stErr):
		return "StateError"
	case errors.As(err, &exprErr):
		return "ExpressionError"
	case errors.As(err, &callErr):
		return "AgentCallError"
	case errors.As(err, &valErr):
		return "ValidationError"
	}
	return fmt.Sprintf("%T", err)
}
