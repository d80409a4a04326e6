package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure taxonomy. Callers classify with
// errors.Is; none of these are retried inside the pipeline.
var (
	// ErrConfiguration marks a missing credential or endpoint for an
	// external service. Fatal, surfaced to the caller.
	ErrConfiguration = errors.New("missing configuration")
	// ErrSchema marks language-model output that failed to parse
	// against the filter schema. Surfaced, never re-prompted.
	ErrSchema = errors.New("schema violation")
	// ErrExternal marks a failed embedding, vector-store, or
	// language-model call.
	ErrExternal = errors.New("external service failure")

	ErrEmptyListing  = errors.New("listing has no identifying fields")
	ErrQueryTooShort = errors.New("query too short")
)

// SchemaError wraps ErrSchema with the raw model output that failed to
// parse, so the caller can log what the model actually said.
type SchemaError struct {
	Raw    string
	Reason error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("filter output failed schema validation: %v", e.Reason)
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// NewSchemaError creates a SchemaError.
func NewSchemaError(raw string, reason error) *SchemaError {
	return &SchemaError{Raw: raw, Reason: reason}
}

// ExternalError wraps ErrExternal with the name of the failing backend.
type ExternalError struct {
	Service string
	Err     error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("external service %s: %v", e.Service, e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }

func (e *ExternalError) Is(target error) bool { return target == ErrExternal }

// External wraps err as an ExternalError. Returns nil for a nil err.
func External(service string, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalError{Service: service, Err: err}
}
