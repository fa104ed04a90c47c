package api

import "time"

// ExecutionStatus tracks the lifecycle of one tracked workflow execution.
type ExecutionStatus string

const (
	ExecutionInProgress ExecutionStatus = "in_progress"
	ExecutionCompleted  ExecutionStatus = "completed"
	ExecutionHalted     ExecutionStatus = "halted"
	ExecutionCancelled  ExecutionStatus = "cancelled"
)

// StepRecord captures the outcome of one step for execution history.
type StepRecord struct {
	// ID is the step's unique identifier within the workflow
	ID string `json:"id"`

	// Name is the human-readable step title
	Name string `json:"name,omitempty"`

	// Action is the dispatched action type (plugin, command, workflow, hook)
	Action string `json:"action"`

	// Target names what was invoked (plugin/step, command string, or
	// nested workflow name)
	Target string `json:"target,omitempty"`

	// Status is the step outcome
	Status ResultStatus `json:"status"`

	// Message is the result summary, if any
	Message string `json:"message,omitempty"`

	// Error carries the failure text for error results
	Error string `json:"error,omitempty"`
}

// WorkflowExecution is one persisted execution record. Records are written
// when an execution starts and rewritten with the final outcome when it
// finishes, so an in_progress record on disk indicates a crashed or killed
// run.
type WorkflowExecution struct {
	// ExecutionID uniquely identifies this execution
	ExecutionID string `json:"execution_id"`

	// WorkflowName is the executed workflow
	WorkflowName string `json:"workflow_name"`

	// Status is the execution lifecycle state
	Status ExecutionStatus `json:"status"`

	// StartedAt is when execution began
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when execution finished; nil while in progress
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// DurationMs is the total execution time in milliseconds
	DurationMs int64 `json:"duration_ms"`

	// Params are the parameter overrides the execution started with
	Params map[string]interface{} `json:"params,omitempty"`

	// Steps are the per-step outcomes in execution order
	Steps []StepRecord `json:"steps,omitempty"`

	// Error carries the halting error for failed executions
	Error string `json:"error,omitempty"`
}
