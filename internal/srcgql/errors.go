package srcgql

import (
	"errors"
	"fmt"
	"strings"
)

// ErrShapeMismatch is reported when a response lacks fields the query
// selects and the backend gave no error explaining why.
var ErrShapeMismatch = errors.New("response is missing expected fields")

// GraphQLError is one entry of a response's "errors" list.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) Error() string {
	if len(e.Path) == 0 {
		return e.Message
	}
	parts := make([]string, len(e.Path))
	for i, p := range e.Path {
		parts[i] = fmt.Sprint(p)
	}
	return fmt.Sprintf("%s (at %s)", e.Message, strings.Join(parts, "."))
}

// AggregateError collects the backend errors behind a failed query.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d errors occurred:\n%s", len(e.Errors), strings.Join(msgs, "\n"))
}

// Unwrap supports errors.Is and errors.As over every collected error.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// newAggregateError builds the error for a failed query. With no backend
// errors to report it wraps ErrShapeMismatch, so every failure carries at
// least one cause.
func newAggregateError(gqlErrs []GraphQLError, shapeDetail string) error {
	if len(gqlErrs) == 0 {
		if shapeDetail == "" {
			return &AggregateError{Errors: []error{ErrShapeMismatch}}
		}
		return &AggregateError{Errors: []error{fmt.Errorf("%w: %s", ErrShapeMismatch, shapeDetail)}}
	}
	errs := make([]error, len(gqlErrs))
	for i, e := range gqlErrs {
		errs[i] = e
	}
	return &AggregateError{Errors: errs}
}
