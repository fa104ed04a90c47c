package run

import (
	"context"
	"testing"
	"time"

	"runbook/internal/api"
	"runbook/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pluginMap map[string]api.Plugin

func (m pluginMap) Get(name string) (api.Plugin, bool) {
	p, ok := m[name]
	return p, ok
}

type workflowMap map[string]*api.ParsedWorkflow

func (m workflowMap) Get(ref string) (*api.ParsedWorkflow, error) {
	wf, ok := m[ref]
	if !ok {
		return nil, api.NewWorkflowNotFoundError(ref)
	}
	return wf, nil
}

type promptingPlugin struct{}

func (p *promptingPlugin) Name() string           { return "ask" }
func (p *promptingPlugin) Dependencies() []string { return nil }
func (p *promptingPlugin) Initialize(ctx context.Context, settings map[string]interface{}, secrets map[string]string) error {
	return nil
}

func (p *promptingPlugin) Steps() map[string]api.StepFunc {
	return map[string]api.StepFunc{
		"question": func(ctx context.Context, wctx *api.WorkflowContext, params map[string]interface{}) *api.Result {
			answer, err := wctx.Prompter.Prompt("what version?")
			if err != nil {
				return api.WrapError(err, "prompt failed")
			}
			return api.SuccessWithMetadata(map[string]interface{}{"version": answer}, "answered")
		},
		"gate": func(ctx context.Context, wctx *api.WorkflowContext, params map[string]interface{}) *api.Result {
			ok, err := wctx.Prompter.Confirm("proceed?")
			if err != nil {
				return api.WrapError(err, "confirm failed")
			}
			if !ok {
				return api.Exit("declined")
			}
			return api.Success("confirmed")
		},
	}
}

func newSessionExecutor() *workflow.Executor {
	return workflow.NewExecutor(pluginMap{"ask": &promptingPlugin{}}, workflowMap{})
}

func TestSessionServicesPrompts(t *testing.T) {
	wf := &api.ParsedWorkflow{
		Name: "interactive",
		Steps: []api.StepSpec{
			{ID: "ask", Plugin: "ask", Step: "question"},
			{ID: "gate", Plugin: "ask", Step: "gate"},
		},
	}

	wctx := api.NewWorkflowContext()
	session := Start(context.Background(), newSessionExecutor(), nil, wf, wctx, nil)

	req := <-session.Prompts()
	assert.Equal(t, "what version?", req.Message)
	assert.False(t, req.IsConfirm)
	req.Answer("1.2.3", false)

	req = <-session.Prompts()
	assert.True(t, req.IsConfirm)
	req.Answer("", true)

	result, execution := session.Wait()
	require.True(t, result.OK(), result.Error())
	assert.Equal(t, "1.2.3", wctx.Data["version"])
	assert.Equal(t, api.ExecutionCompleted, execution.Status)
	assert.Len(t, execution.Steps, 2)
}

func TestSessionDeclinedConfirmExits(t *testing.T) {
	wf := &api.ParsedWorkflow{
		Name:  "gated",
		Steps: []api.StepSpec{{ID: "gate", Plugin: "ask", Step: "gate"}},
	}

	session := Start(context.Background(), newSessionExecutor(), nil, wf, api.NewWorkflowContext(), nil)

	req := <-session.Prompts()
	req.Answer("", false)

	result, execution := session.Wait()
	assert.Equal(t, api.StatusExit, result.Status)
	assert.Equal(t, api.ExecutionCompleted, execution.Status)
}

func TestSessionCancellationUnblocksPrompt(t *testing.T) {
	wf := &api.ParsedWorkflow{
		Name:  "stuck",
		Steps: []api.StepSpec{{ID: "ask", Plugin: "ask", Step: "question"}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	session := Start(ctx, newSessionExecutor(), nil, wf, api.NewWorkflowContext(), nil)

	<-session.Prompts()
	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		result, execution := session.Wait()
		assert.Equal(t, api.StatusError, result.Status)
		assert.Equal(t, api.ExecutionCancelled, execution.Status)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not unblock after cancellation")
	}
}

func TestSessionPromptChannelClosesOnFinish(t *testing.T) {
	wf := &api.ParsedWorkflow{
		Name:  "plain",
		Steps: []api.StepSpec{{ID: "noop", Command: "true"}},
	}

	session := Start(context.Background(), newSessionExecutor(), nil, wf, api.NewWorkflowContext(), nil)

	_, open := <-session.Prompts()
	assert.False(t, open, "prompt channel closes when execution finishes")

	result, _ := session.Wait()
	assert.True(t, result.OK())
}

func TestSessionRecordsHistory(t *testing.T) {
	storage := workflow.NewExecutionStorage(t.TempDir())
	wf := &api.ParsedWorkflow{
		Name:  "tracked",
		Steps: []api.StepSpec{{ID: "noop", Command: "true"}},
	}

	session := Start(context.Background(), newSessionExecutor(), storage, wf, api.NewWorkflowContext(), nil)
	for range session.Prompts() {
	}
	_, execution := session.Wait()

	stored, err := storage.Get("tracked", execution.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, api.ExecutionCompleted, stored.Status)
}
