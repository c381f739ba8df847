package logging

import (
	"errors"
	"fmt"
)

// OperationError annotates an infrastructure error with the operation that
// produced it and, when known, the analysis request it belongs to.
type OperationError struct {
	Operation string
	RequestID string
	Err       error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	if e.RequestID != "" {
		return fmt.Sprintf("%s (request_id=%s): %v", e.Operation, e.RequestID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOperationError wraps err. A nil err stays nil so call sites can wrap
// unconditionally.
func NewOperationError(operation, requestID string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, RequestID: requestID, Err: err}
}

// OperationOf reports the innermost operation name recorded on err.
func OperationOf(err error) string {
	var opErr *OperationError
	name := ""
	for errors.As(err, &opErr) {
		name = opErr.Operation
		err = opErr.Err
	}
	return name
}
