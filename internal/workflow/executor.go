package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"runbook/internal/api"
	"runbook/internal/config"
	"runbook/internal/template"
	"runbook/pkg/logging"
)

// maxNestingDepth bounds recursive workflow steps. A workflow that calls
// itself is caught by the depth limit rather than a dedicated cycle check,
// since the call chain can depend on runtime context values.
const maxNestingDepth = 10

// PluginProvider resolves initialized plugins by name.
type PluginProvider interface {
	Get(name string) (api.Plugin, bool)
}

// WorkflowProvider resolves workflows for nested workflow steps.
type WorkflowProvider interface {
	Get(ref string) (*api.ParsedWorkflow, error)
}

// EventCallback receives step lifecycle notifications during execution.
// Callbacks run synchronously on the execution goroutine and must be fast.
type EventCallback interface {
	// OnStepStarted fires before a step is dispatched
	OnStepStarted(workflowName string, step api.StepSpec, depth int)

	// OnStepCompleted fires after a step finished with its result
	OnStepCompleted(workflowName string, step api.StepSpec, result *api.Result, depth int)
}

// Executor runs parsed workflows step by step: parameters are substituted
// against the shared context, the step's action is dispatched, and result
// metadata flows back into the context for later steps.
type Executor struct {
	plugins   PluginProvider
	workflows WorkflowProvider
	engine    *template.Engine
	shell     *ShellRunner
	callback  EventCallback
}

// NewExecutor creates a workflow executor.
func NewExecutor(plugins PluginProvider, workflows WorkflowProvider) *Executor {
	return &Executor{
		plugins:   plugins,
		workflows: workflows,
		engine:    template.New(),
		shell:     NewShellRunner(),
	}
}

// SetEventCallback registers a lifecycle callback. Must be called before
// Execute.
func (e *Executor) SetEventCallback(callback EventCallback) {
	e.callback = callback
}

// Execute runs the workflow with the given parameter overrides layered on top
// of the workflow's default params. The returned result is never nil: exit
// results terminate cleanly, error results carry an ExecutionError identifying
// the failing step, and the final context data is returned as metadata.
func (e *Executor) Execute(ctx context.Context, wf *api.ParsedWorkflow, wctx *api.WorkflowContext, params map[string]interface{}) *api.Result {
	result := e.execute(ctx, wf, wctx, params, 0)
	if result.Status == api.StatusError {
		return result
	}
	return &api.Result{Status: result.Status, Message: result.Message, Metadata: wctx.Data}
}

func (e *Executor) execute(ctx context.Context, wf *api.ParsedWorkflow, wctx *api.WorkflowContext, params map[string]interface{}, depth int) *api.Result {
	if depth >= maxNestingDepth {
		return api.Errorf("workflow %s exceeds maximum nesting depth %d", wf.Name, maxNestingDepth)
	}

	wctx.Merge(wf.Params)
	wctx.Merge(params)

	logging.Info("Executor", "Executing workflow %s (%d steps)", wf.Name, len(wf.Steps))

	for _, step := range wf.Steps {
		if err := ctx.Err(); err != nil {
			return api.WrapError(err, "workflow %s cancelled", wf.Name)
		}

		e.notifyStarted(wf.Name, step, depth)
		result := e.runStep(ctx, wf, step, wctx, depth)
		e.notifyCompleted(wf.Name, step, result, depth)

		switch result.Status {
		case api.StatusSuccess, api.StatusSkip:
			wctx.Merge(result.Metadata)
		case api.StatusExit:
			logging.Info("Executor", "Workflow %s exited at step %s: %s", wf.Name, step.ID, result.Message)
			return result
		case api.StatusError:
			if step.ErrorPolicyOrDefault() == api.OnErrorContinue {
				logging.Warn("Executor", "Step %s failed, continuing: %s", step.ID, result.Error())
				continue
			}
			return &api.Result{
				Status:  api.StatusError,
				Message: result.Message,
				Err: &api.ExecutionError{
					Workflow: wf.Name,
					StepID:   step.ID,
					StepName: step.DisplayName(),
					Err:      errOf(result),
				},
			}
		}
	}

	return api.Success("workflow %s completed", wf.Name)
}

// runStep substitutes the step's parameters and dispatches its action.
func (e *Executor) runStep(ctx context.Context, wf *api.ParsedWorkflow, step api.StepSpec, wctx *api.WorkflowContext, depth int) *api.Result {
	action, err := step.Action()
	if err != nil {
		return api.WrapError(err, "invalid step %s", step.ID)
	}

	params := e.engine.SubstituteParams(step.Params, wctx.Data)

	switch action {
	case api.ActionPlugin:
		return e.runPluginStep(ctx, step, wctx, params)
	case api.ActionCommand:
		command := e.engine.SubstituteString(step.Command, wctx.Data)
		return e.shell.Run(ctx, command, wctx)
	case api.ActionWorkflow:
		return e.runNestedWorkflow(ctx, step, wctx, params, depth)
	case api.ActionHook:
		// Unfilled placeholders are stripped at parse time; anything left is
		// a step that pairs a hook name with an action, which runStep never
		// dispatches
		return api.Skip("hook %s has no injected steps", step.Hook)
	default:
		return api.Errorf("unknown action type %s", action)
	}
}

func (e *Executor) runPluginStep(ctx context.Context, step api.StepSpec, wctx *api.WorkflowContext, params map[string]interface{}) *api.Result {
	if step.Plugin == api.ProjectPlugin {
		return e.runProjectStep(ctx, step, wctx, params)
	}

	plugin, ok := e.plugins.Get(step.Plugin)
	if !ok {
		return api.WrapError(api.NewPluginNotFoundError(step.Plugin), "step %s", step.ID)
	}

	fn, ok := plugin.Steps()[step.Step]
	if !ok {
		return api.WrapError(api.NewStepNotFoundError(step.Plugin, step.Step), "step %s", step.ID)
	}

	return fn(ctx, wctx, params)
}

// runProjectStep executes a project-local step script from
// <workdir>/.runbook/steps. Parameters are passed as environment variables.
func (e *Executor) runProjectStep(ctx context.Context, step api.StepSpec, wctx *api.WorkflowContext, params map[string]interface{}) *api.Result {
	dir := filepath.Join(wctx.WorkDir, config.ProjectConfigDirName, config.StepsDirName)
	path, err := findStepFile(dir, step.Step)
	if err != nil {
		return api.WrapError(err, "step %s", step.ID)
	}
	return e.shell.RunScript(ctx, path, params, wctx)
}

func (e *Executor) runNestedWorkflow(ctx context.Context, step api.StepSpec, wctx *api.WorkflowContext, params map[string]interface{}, depth int) *api.Result {
	nested, err := e.workflows.Get(step.Workflow)
	if err != nil {
		return api.WrapError(err, "step %s", step.ID)
	}
	logging.Debug("Executor", "Entering nested workflow %s (depth %d)", nested.Name, depth+1)
	return e.execute(ctx, nested, wctx, params, depth+1)
}

// findStepFile locates the script for a project-local step, trying the bare
// name first and then common script extensions.
func findStepFile(dir, name string) (string, error) {
	for _, candidate := range []string{name, name + ".sh"} {
		path := filepath.Join(dir, candidate)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", api.NewStepNotFoundError(api.ProjectPlugin, name)
}

func errOf(result *api.Result) error {
	if result.Err != nil {
		return result.Err
	}
	return fmt.Errorf("%s", result.Message)
}

func (e *Executor) notifyStarted(workflowName string, step api.StepSpec, depth int) {
	if e.callback != nil {
		e.callback.OnStepStarted(workflowName, step, depth)
	}
}

func (e *Executor) notifyCompleted(workflowName string, step api.StepSpec, result *api.Result, depth int) {
	if e.callback != nil {
		e.callback.OnStepCompleted(workflowName, step, result, depth)
	}
}
