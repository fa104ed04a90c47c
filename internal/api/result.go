package api

import "fmt"

// ResultStatus is the outcome of a step or workflow execution.
type ResultStatus string

const (
	// StatusSuccess indicates the step completed normally.
	StatusSuccess ResultStatus = "success"

	// StatusSkip indicates the step chose not to do anything. Skips are not
	// failures; their metadata is still merged into the context.
	StatusSkip ResultStatus = "skip"

	// StatusError indicates the step failed. The step's error policy decides
	// whether the workflow halts.
	StatusError ResultStatus = "error"

	// StatusExit indicates the step requested a clean early termination of
	// the whole workflow. Exit is not a failure.
	StatusExit ResultStatus = "exit"
)

// Result is the outcome of a single step invocation (or of a whole workflow
// execution, where Metadata carries the final context snapshot).
type Result struct {
	// Status is the outcome classification
	Status ResultStatus `json:"status"`

	// Message is a human-readable summary of the outcome
	Message string `json:"message,omitempty"`

	// Metadata is merged into the workflow context after success or skip
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Err carries the underlying error for error results
	Err error `json:"-"`
}

// OK reports whether the result allows execution to continue.
func (r *Result) OK() bool {
	return r.Status == StatusSuccess || r.Status == StatusSkip
}

// Error implements the error interface so an error result can be returned
// and wrapped directly.
func (r *Result) Error() string {
	if r.Err != nil {
		if r.Message != "" {
			return fmt.Sprintf("%s: %v", r.Message, r.Err)
		}
		return r.Err.Error()
	}
	return r.Message
}

// Success creates a success result.
func Success(format string, args ...interface{}) *Result {
	return &Result{Status: StatusSuccess, Message: fmt.Sprintf(format, args...)}
}

// SuccessWithMetadata creates a success result carrying metadata to merge
// into the workflow context.
func SuccessWithMetadata(metadata map[string]interface{}, format string, args ...interface{}) *Result {
	return &Result{Status: StatusSuccess, Message: fmt.Sprintf(format, args...), Metadata: metadata}
}

// Skip creates a skip result.
func Skip(format string, args ...interface{}) *Result {
	return &Result{Status: StatusSkip, Message: fmt.Sprintf(format, args...)}
}

// Errorf creates an error result from a formatted message.
func Errorf(format string, args ...interface{}) *Result {
	return &Result{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an error result wrapping an underlying error.
func WrapError(err error, format string, args ...interface{}) *Result {
	return &Result{Status: StatusError, Message: fmt.Sprintf(format, args...), Err: err}
}

// Exit creates an exit result that cleanly terminates the workflow.
func Exit(format string, args ...interface{}) *Result {
	return &Result{Status: StatusExit, Message: fmt.Sprintf(format, args...)}
}
