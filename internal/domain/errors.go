package domain

import (
	"errors"
	"fmt"
)

// ErrorStage identifies which pipeline stage produced a failure, letting
// the controller map error kind to a terminal incident state instead of
// catching a generic exception.
type ErrorStage string

const (
	StageExtraction ErrorStage = "extraction"
	StagePrompt     ErrorStage = "prompt"
	StageAICall     ErrorStage = "ai_call"
	StageNormalize  ErrorStage = "normalize"
	StageRule       ErrorStage = "rule"
	StageStorage    ErrorStage = "storage"
)

// ErrorKind categorizes a failure within a stage.
type ErrorKind string

const (
	// Record-system kinds
	ErrorKindNotFound     ErrorKind = "not_found"
	ErrorKindConnectivity ErrorKind = "connectivity"
	ErrorKindTimeout      ErrorKind = "timeout"

	// Provider kinds
	ErrorKindNonSuccessStatus ErrorKind = "non_success_status"
	ErrorKindMalformedBody    ErrorKind = "malformed_body"
	ErrorKindMalformedJSON    ErrorKind = "malformed_json"

	// Validation kinds
	ErrorKindMissingField       ErrorKind = "missing_field"
	ErrorKindIncompleteSnapshot ErrorKind = "incomplete_snapshot"
	ErrorKindValidation         ErrorKind = "validation"
)

// ResolutionError is the typed failure carried between pipeline stages.
type ResolutionError struct {
	Stage   ErrorStage
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s/%s: %s: %v", e.Stage, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s/%s: %s", e.Stage, e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// NewResolutionError creates a typed pipeline error.
func NewResolutionError(stage ErrorStage, kind ErrorKind, message string) *ResolutionError {
	return &ResolutionError{Stage: stage, Kind: kind, Message: message}
}

// WithCause attaches the underlying error.
func (e *ResolutionError) WithCause(err error) *ResolutionError {
	e.Err = err
	return e
}

// ErrorKindOf extracts the kind from any error in the chain. Returns an
// empty kind for untyped errors.
func ErrorKindOf(err error) ErrorKind {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// ErrorStageOf extracts the stage from any error in the chain.
func ErrorStageOf(err error) ErrorStage {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re.Stage
	}
	return ""
}

// IsValidationError reports whether the error is a validation failure as
// opposed to a transport or upstream failure.
func IsValidationError(err error) bool {
	switch ErrorKindOf(err) {
	case ErrorKindMissingField, ErrorKindIncompleteSnapshot, ErrorKindValidation:
		return true
	}
	return false
}
