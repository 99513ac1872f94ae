package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrAnalysisFailed is the single failure kind surfaced by the pipeline.
	ErrAnalysisFailed = errors.New("analysis failed")
	// ErrInvalidResult marks a service payload that is missing or malformed in a required field.
	ErrInvalidResult = errors.New("invalid analysis result")
)

// UserMessage is shown for every analysis failure regardless of cause.
const UserMessage = "Failed to analyze the document. Please try again or check your text."

// FailureError wraps the upstream cause of an analysis failure. Callers match it
// with errors.Is(err, ErrAnalysisFailed) and show Message; the cause is for logs.
type FailureError struct {
	Message string
	Err     error
}

func (e *FailureError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *FailureError) Unwrap() error { return e.Err }

// Is makes every FailureError match ErrAnalysisFailed.
func (e *FailureError) Is(target error) bool { return target == ErrAnalysisFailed }

// SchemaError reports the first required field that was missing or malformed.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: %s %s", e.Field, e.Reason)
}

func (e *SchemaError) Is(target error) bool { return target == ErrInvalidResult }

func missing(field string) error {
	return &SchemaError{Field: field, Reason: "is required"}
}

func invalid(field, reason string) error {
	return &SchemaError{Field: field, Reason: reason}
}
