package api

import (
	"errors"
	"fmt"
	"strings"
)

// NotFoundError represents a resource not found error with contextual
// information. It is used for unresolvable workflow, plugin and step lookups
// so callers can distinguish "does not exist" from genuine failures.
type NotFoundError struct {
	// ResourceType categorizes the type of resource that was not found
	// (e.g. "workflow", "plugin", "step")
	ResourceType string

	// ResourceName is the specific identifier that was not found
	ResourceName string

	// Message provides a custom error message if the default format is
	// insufficient
	Message string
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s not found", e.ResourceType, e.ResourceName)
}

// IsNotFound checks if an error is a NotFoundError using error unwrapping.
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// NewWorkflowNotFoundError creates a workflow not found error.
func NewWorkflowNotFoundError(name string) *NotFoundError {
	return &NotFoundError{ResourceType: "workflow", ResourceName: name}
}

// NewPluginNotFoundError creates a plugin not found error.
func NewPluginNotFoundError(name string) *NotFoundError {
	return &NotFoundError{ResourceType: "plugin", ResourceName: name}
}

// NewStepNotFoundError creates a plugin step not found error.
func NewStepNotFoundError(plugin, step string) *NotFoundError {
	return &NotFoundError{
		ResourceType: "step",
		ResourceName: step,
		Message:      fmt.Sprintf("plugin %s does not expose step %s", plugin, step),
	}
}

// CyclicExtendsError reports a cycle in an extends chain. The resolver tracks
// in-progress resolutions and fails fast instead of recursing indefinitely.
type CyclicExtendsError struct {
	// Chain is the sequence of workflow references that closed the cycle
	Chain []string
}

// Error implements the error interface for CyclicExtendsError.
func (e *CyclicExtendsError) Error() string {
	return fmt.Sprintf("cyclic extends chain: %s", strings.Join(e.Chain, " -> "))
}

// IsCyclicExtends checks if an error is a CyclicExtendsError.
func IsCyclicExtends(err error) bool {
	var cyclicErr *CyclicExtendsError
	return errors.As(err, &cyclicErr)
}

// ExecutionError reports a workflow halted by a failing step.
type ExecutionError struct {
	// Workflow is the name of the workflow that halted
	Workflow string

	// StepID identifies the failing step within the workflow
	StepID string

	// StepName is the human-readable name of the failing step
	StepName string

	// Err is the underlying failure
	Err error
}

// Error implements the error interface for ExecutionError.
func (e *ExecutionError) Error() string {
	name := e.StepName
	if name == "" {
		name = e.StepID
	}
	return fmt.Sprintf("workflow %s halted at step %s: %v", e.Workflow, name, e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// PluginLoadError reports a plugin candidate that could not be loaded during
// discovery. Load errors are recorded, not thrown: the rest of the system
// keeps operating on the plugins that did load.
type PluginLoadError struct {
	// Plugin is the name (or manifest path, when the name is unknown) of the
	// failed candidate
	Plugin string

	// Err is the underlying load failure
	Err error
}

// Error implements the error interface for PluginLoadError.
func (e *PluginLoadError) Error() string {
	return fmt.Sprintf("plugin %s failed to load: %v", e.Plugin, e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *PluginLoadError) Unwrap() error {
	return e.Err
}

// PluginInitializationError reports a plugin that failed during dependency
// resolution or Initialize. This covers direct failures, cascading failures
// of dependents, and unresolved or circular dependency chains.
type PluginInitializationError struct {
	// Plugin is the name of the plugin that failed
	Plugin string

	// Reason summarizes why initialization failed
	Reason string

	// Err is the underlying error, if any
	Err error
}

// Error implements the error interface for PluginInitializationError.
func (e *PluginInitializationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("plugin %s failed to initialize: %s: %v", e.Plugin, e.Reason, e.Err)
	}
	return fmt.Sprintf("plugin %s failed to initialize: %s", e.Plugin, e.Reason)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *PluginInitializationError) Unwrap() error {
	return e.Err
}
