// Package expr implements the small expression language used for workflow
// condition guards: a tokenizer, a recursive-descent parser, and a
// tree-walking evaluator over a read-only state snapshot.
//
// The language is intentionally restricted to side-effect-free predicates:
// boolean and arithmetic operators, comparisons, membership tests, array
// literals and indexing, template-variable references like {{draft.title}},
// and a fixed registry of helper functions.
package expr

import (
	"errors"
	"fmt"
)

// Error is the single error kind raised for any parse or evaluation failure.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func errorf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

func asError(err error, target **Error) bool {
	return errors.As(err, target)
}

// Evaluate parses and evaluates an expression against the given state
// snapshot. Any failure is reported as an *Error.
func Evaluate(input string, state map[string]any) (any, error) {
	root, err := parse(input)
	if err != nil {
		return nil, err
	}
	e := &evaluator{state: state}
	return e.eval(root)
}

// EvaluateBool evaluates an expression and reduces the result to its truth
// value, for use as a condition guard.
func EvaluateBool(input string, state map[string]any) (bool, error) {
	value, err := Evaluate(input, state)
	if err != nil {
		return false, err
	}
	return truthy(value), nil
}

// Validate reports whether an expression parses, without evaluating it.
// Useful for up-front linting of workflow documents.
func Validate(input string) bool {
	_, err := parse(input)
	return err == nil
}
