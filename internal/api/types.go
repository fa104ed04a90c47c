package api

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Source tags identify where a workflow definition was discovered.
// Precedence between sources is strict: project > user > system > plugin.
const (
	SourceProject = "project"
	SourceUser    = "user"
	SourceSystem  = "system"

	// pluginSourcePrefix prefixes the plugin name for plugin-provided workflows,
	// e.g. "plugin:github".
	pluginSourcePrefix = "plugin:"
)

// PluginSourceTag returns the source tag for workflows shipped by a plugin.
func PluginSourceTag(pluginName string) string {
	return pluginSourcePrefix + pluginName
}

// WorkflowInfo is the discovery metadata for a workflow. It is created during
// a source's discovery scan and never mutated afterwards.
type WorkflowInfo struct {
	// Name is the unique identifier of the workflow within its source
	Name string `yaml:"name" json:"name"`

	// Description provides human-readable documentation for the workflow
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Source is the tag of the source that provided this workflow
	// (project, user, system, or plugin:<name>)
	Source string `yaml:"source" json:"source"`

	// Path is the definition file this info was read from
	Path string `yaml:"path" json:"path"`

	// Category optionally groups related workflows for listing purposes
	Category string `yaml:"category,omitempty" json:"category,omitempty"`
}

// WorkflowDefinition is the raw parsed form of a single workflow file.
// It only exists during resolution; after the extends chain has been merged
// the definition is discarded in favour of a ParsedWorkflow.
type WorkflowDefinition struct {
	// Name is the unique identifier for this workflow
	Name string `yaml:"name"`

	// Description provides human-readable documentation
	Description string `yaml:"description,omitempty"`

	// Category optionally groups related workflows
	Category string `yaml:"category,omitempty"`

	// Extends references a base workflow, either "name" or "<sourceTag>:name"
	Extends string `yaml:"extends,omitempty"`

	// Params are default parameters merged into the execution context
	Params map[string]interface{} `yaml:"params,omitempty"`

	// Hooks is either the list of hook names a base workflow declares, or the
	// map of hook name to injected steps an extending workflow provides
	Hooks HookSet `yaml:"hooks,omitempty"`

	// Steps is the ordered list of step specs
	Steps []StepSpec `yaml:"steps,omitempty"`
}

// HookSet models the two YAML shapes the hooks field can take. A base
// workflow declares hook names as a sequence; an extending workflow provides
// a mapping of hook name to the steps it injects at that point.
type HookSet struct {
	// Declared lists the hook names a base workflow exposes
	Declared []string

	// Inject maps hook names to the steps an extending workflow registers
	Inject map[string][]StepSpec
}

// IsZero reports whether the hooks field was absent. Implements the yaml.v3
// zero check so `hooks` is omitted when empty.
func (h HookSet) IsZero() bool {
	return len(h.Declared) == 0 && len(h.Inject) == 0
}

// UnmarshalYAML decodes either of the two supported hook shapes.
func (h *HookSet) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		return value.Decode(&h.Declared)
	case yaml.MappingNode:
		return value.Decode(&h.Inject)
	default:
		return fmt.Errorf("hooks must be a list of hook names or a map of hook name to steps (line %d)", value.Line)
	}
}

// MarshalYAML encodes whichever shape is populated.
func (h HookSet) MarshalYAML() (interface{}, error) {
	if len(h.Inject) > 0 {
		return h.Inject, nil
	}
	if len(h.Declared) > 0 {
		return h.Declared, nil
	}
	return nil, nil
}

// ErrorPolicy controls how the executor reacts to a failing step.
type ErrorPolicy string

const (
	// OnErrorFail halts the entire workflow when the step fails. This is the
	// default policy.
	OnErrorFail ErrorPolicy = "fail"

	// OnErrorContinue reports the failure and proceeds to the next step.
	OnErrorContinue ErrorPolicy = "continue"
)

// ActionType identifies which action variant a step spec carries.
type ActionType string

const (
	ActionPlugin   ActionType = "plugin"
	ActionCommand  ActionType = "command"
	ActionWorkflow ActionType = "workflow"
	ActionHook     ActionType = "hook"
)

// ProjectPlugin is the reserved plugin name that resolves steps against
// project-local step files instead of the plugin registry.
const ProjectPlugin = "project"

// StepSpec is one unit of work in a workflow. Exactly one action variant
// (plugin+step, command, workflow, or hook) must be populated; Action
// enforces this invariant.
type StepSpec struct {
	// ID uniquely identifies the step within its parsed workflow. It is
	// auto-derived from Name (or plugin_step) when absent.
	ID string `yaml:"id,omitempty"`

	// Name is the human-readable step title
	Name string `yaml:"name,omitempty"`

	// Plugin names the plugin whose step function to invoke.
	// Mutually exclusive with Command and Workflow. Requires Step.
	Plugin string `yaml:"plugin,omitempty"`

	// Step names the function exposed by Plugin
	Step string `yaml:"step,omitempty"`

	// Command is a shell command to run. Mutually exclusive with Plugin
	// and Workflow.
	Command string `yaml:"command,omitempty"`

	// Workflow names another workflow to execute recursively.
	// Mutually exclusive with Plugin and Command.
	Workflow string `yaml:"workflow,omitempty"`

	// Hook marks this entry as an extension point placeholder in a base
	// workflow. A hook placeholder carries no action and no other fields.
	Hook string `yaml:"hook,omitempty"`

	// Params are free-form parameters passed to the action after
	// ${name} substitution against the workflow context
	Params map[string]interface{} `yaml:"params,omitempty"`

	// OnError selects the error policy for this step (default: fail)
	OnError ErrorPolicy `yaml:"on_error,omitempty"`
}

// Action returns the single action type this spec carries, or an error when
// zero or more than one action variant is populated.
func (s *StepSpec) Action() (ActionType, error) {
	var actions []ActionType
	if s.Plugin != "" {
		actions = append(actions, ActionPlugin)
	}
	if s.Command != "" {
		actions = append(actions, ActionCommand)
	}
	if s.Workflow != "" {
		actions = append(actions, ActionWorkflow)
	}
	if s.Hook != "" {
		actions = append(actions, ActionHook)
	}

	switch len(actions) {
	case 0:
		return "", fmt.Errorf("step %q has no action: one of plugin, command, workflow or hook is required", s.DisplayName())
	case 1:
		if actions[0] == ActionPlugin && s.Step == "" {
			return "", fmt.Errorf("step %q sets plugin %q but no step name", s.DisplayName(), s.Plugin)
		}
		return actions[0], nil
	default:
		return "", fmt.Errorf("step %q has %d action types, exactly one is allowed", s.DisplayName(), len(actions))
	}
}

// IsHookPlaceholder reports whether this spec is a bare extension point.
func (s *StepSpec) IsHookPlaceholder() bool {
	return s.Hook != "" && s.Plugin == "" && s.Command == "" && s.Workflow == ""
}

// DisplayName returns the best available human-readable identifier.
func (s *StepSpec) DisplayName() string {
	switch {
	case s.Name != "":
		return s.Name
	case s.ID != "":
		return s.ID
	case s.Plugin != "":
		return s.Plugin + "/" + s.Step
	case s.Command != "":
		return s.Command
	case s.Workflow != "":
		return s.Workflow
	case s.Hook != "":
		return "hook:" + s.Hook
	default:
		return "(unnamed)"
	}
}

// ErrorPolicyOrDefault returns the configured policy, defaulting to fail.
func (s *StepSpec) ErrorPolicyOrDefault() ErrorPolicy {
	if s.OnError == "" {
		return OnErrorFail
	}
	return s.OnError
}

// Validate checks the step spec invariants: exactly one action type and a
// known error policy.
func (s *StepSpec) Validate() error {
	if _, err := s.Action(); err != nil {
		return err
	}
	switch s.OnError {
	case "", OnErrorFail, OnErrorContinue:
		return nil
	default:
		return fmt.Errorf("step %q has invalid on_error policy %q (must be %q or %q)",
			s.DisplayName(), s.OnError, OnErrorFail, OnErrorContinue)
	}
}

// ParsedWorkflow is the fully resolved, ready-to-execute form of a workflow:
// the extends chain is merged, hook placeholders intended for injection are
// inlined, and every step carries a unique ID. Instances are cached by the
// registry and must not be mutated.
type ParsedWorkflow struct {
	// Name is the unique identifier for this workflow
	Name string `yaml:"name" json:"name"`

	// Description provides human-readable documentation
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Category optionally groups related workflows
	Category string `yaml:"category,omitempty" json:"category,omitempty"`

	// Source is the tag of the source the top-level definition came from
	Source string `yaml:"source" json:"source"`

	// Params are default parameters merged into the execution context
	Params map[string]interface{} `yaml:"params,omitempty" json:"params,omitempty"`

	// Steps is the fully inlined, ordered step list
	Steps []StepSpec `yaml:"steps" json:"steps"`
}

// Prompter marshals blocking user-input requests out of the execution
// worker. Implementations decide where the question is actually answered
// (terminal prompt, TUI modal, test stub).
type Prompter interface {
	// Prompt asks the user for a free-form answer
	Prompt(message string) (string, error)

	// Confirm asks the user a yes/no question
	Confirm(message string) (bool, error)
}

// WorkflowContext is the shared mutable state threaded through every step of
// one workflow execution, including nested workflow executions. The caller
// that builds the context owns it; the executor only mutates Data in place
// and never replaces the reference.
type WorkflowContext struct {
	// Data is the open-ended key/value state shared by all steps
	Data map[string]interface{}

	// Prompter services user-input requests from steps; may be nil when
	// running non-interactively
	Prompter Prompter

	// WorkDir is the directory commands and project-local steps run in
	WorkDir string

	// Output receives streamed command output; defaults to os.Stdout
	Output io.Writer
}

// NewWorkflowContext creates an empty context with stdout output.
func NewWorkflowContext() *WorkflowContext {
	return &WorkflowContext{
		Data:   make(map[string]interface{}),
		Output: os.Stdout,
	}
}

// Merge copies the given metadata into the context's shared data, overwriting
// existing keys.
func (c *WorkflowContext) Merge(metadata map[string]interface{}) {
	if c.Data == nil {
		c.Data = make(map[string]interface{})
	}
	for k, v := range metadata {
		c.Data[k] = v
	}
}

// Writer returns the configured output writer, falling back to stdout.
func (c *WorkflowContext) Writer() io.Writer {
	if c.Output != nil {
		return c.Output
	}
	return os.Stdout
}
