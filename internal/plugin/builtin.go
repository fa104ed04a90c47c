package plugin

import (
	"context"
	"fmt"
	"time"

	"runbook/internal/api"
)

// CorePluginName is the builtin plugin every installation carries.
const CorePluginName = "core"

// Builtins returns the factory table for plugins compiled into the binary.
func Builtins() map[string]api.PluginFactory {
	return map[string]api.PluginFactory{
		CorePluginName: func() api.Plugin { return &corePlugin{} },
	}
}

// BuiltinNames returns the names of plugins that are always discovered.
func BuiltinNames() []string {
	return []string{CorePluginName}
}

// corePlugin provides basic context and control-flow steps that need no
// external clients.
type corePlugin struct{}

func (p *corePlugin) Name() string           { return CorePluginName }
func (p *corePlugin) Dependencies() []string { return nil }

func (p *corePlugin) Initialize(ctx context.Context, settings map[string]interface{}, secrets map[string]string) error {
	return nil
}

func (p *corePlugin) Steps() map[string]api.StepFunc {
	return map[string]api.StepFunc{
		"set":     p.set,
		"print":   p.print,
		"confirm": p.confirm,
		"sleep":   p.sleep,
	}
}

// set merges its parameters into the shared context data.
func (p *corePlugin) set(ctx context.Context, wctx *api.WorkflowContext, params map[string]interface{}) *api.Result {
	if len(params) == 0 {
		return api.Skip("nothing to set")
	}
	return api.SuccessWithMetadata(params, "set %d context values", len(params))
}

// print writes the message parameter to the context output.
func (p *corePlugin) print(ctx context.Context, wctx *api.WorkflowContext, params map[string]interface{}) *api.Result {
	message, _ := params["message"].(string)
	if message == "" {
		return api.Errorf("print requires a message parameter")
	}
	fmt.Fprintln(wctx.Writer(), message)
	return api.Success("printed message")
}

// confirm asks the user a yes/no question and requests a clean exit on no.
func (p *corePlugin) confirm(ctx context.Context, wctx *api.WorkflowContext, params map[string]interface{}) *api.Result {
	message, _ := params["message"].(string)
	if message == "" {
		message = "Continue?"
	}
	if wctx.Prompter == nil {
		return api.Skip("no prompter available, skipping confirmation")
	}

	ok, err := wctx.Prompter.Confirm(message)
	if err != nil {
		return api.WrapError(err, "confirmation failed")
	}
	if !ok {
		return api.Exit("cancelled by user")
	}
	return api.Success("confirmed")
}

// sleep pauses for the given number of seconds, honoring cancellation.
func (p *corePlugin) sleep(ctx context.Context, wctx *api.WorkflowContext, params map[string]interface{}) *api.Result {
	seconds, ok := toFloat(params["seconds"])
	if !ok || seconds < 0 {
		return api.Errorf("sleep requires a non-negative seconds parameter")
	}

	timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer timer.Stop()

	select {
	case <-timer.C:
		return api.Success("slept %gs", seconds)
	case <-ctx.Done():
		return api.WrapError(ctx.Err(), "sleep interrupted")
	}
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case float32:
		return float64(v), true
	default:
		return 0, false
	}
}
