package framework

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// AggregatedError collects the errors of several components, e.g. all
// runnables of a Loop or all transports of a fanout.
type AggregatedError struct {
	Errors []error
}

// Error implements error.
func (e *AggregatedError) Error() string {
	switch len(e.Errors) {
	case 0:
		return ""
	case 1:
		return e.Errors[0].Error()
	}
	msg := make([]string, len(e.Errors))
	for n, err := range e.Errors {
		msg[n] = err.Error()
	}
	return strconv.Itoa(len(e.Errors)) + " errors: " + strings.Join(msg, "; ")
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e *AggregatedError) Unwrap() []error {
	return e.Errors
}

// Add adds errors to be aggregated. nil is skipped and nested
// AggregatedErrors are flattened.
func (e *AggregatedError) Add(errs ...error) *AggregatedError {
	for _, err := range errs {
		if err == nil {
			continue
		}
		var nested *AggregatedError
		if errors.As(err, &nested) && nested != e {
			e.Errors = append(e.Errors, nested.Errors...)
			continue
		}
		e.Errors = append(e.Errors, err)
	}
	return e
}

// Aggregate returns nil if nothing was collected, the only error
// if exactly one was, or the AggregatedError itself.
func (e *AggregatedError) Aggregate() error {
	switch len(e.Errors) {
	case 0:
		return nil
	case 1:
		return e.Errors[0]
	}
	return e
}

// IsCanceled reports whether err only reflects a canceled context.
// Runnables stopped on shutdown return such errors.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
