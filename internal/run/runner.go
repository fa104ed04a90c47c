package run

import (
	"context"
	"errors"

	"runbook/internal/api"
	"runbook/internal/workflow"
	"runbook/pkg/logging"

	"golang.org/x/sync/errgroup"
)

// PromptRequest is a blocking user-input request marshaled out of the
// execution goroutine. The owner of the session must answer every request it
// receives, via Answer or Fail, or the executing step blocks until the
// session context is cancelled.
type PromptRequest struct {
	// Message is the question to present to the user
	Message string

	// IsConfirm distinguishes yes/no questions from free-form prompts
	IsConfirm bool

	reply chan promptResponse
}

type promptResponse struct {
	answer    string
	confirmed bool
	err       error
}

// Answer resolves the request with the user's input. For confirm requests
// the answer is interpreted as the yes/no outcome.
func (r *PromptRequest) Answer(answer string, confirmed bool) {
	r.reply <- promptResponse{answer: answer, confirmed: confirmed}
}

// Fail resolves the request with an error, typically when reading input
// failed or the user aborted.
func (r *PromptRequest) Fail(err error) {
	r.reply <- promptResponse{err: err}
}

// channelPrompter implements api.Prompter by forwarding requests over the
// session's prompt channel and blocking for the reply.
type channelPrompter struct {
	ctx      context.Context
	requests chan *PromptRequest
}

func (p *channelPrompter) Prompt(message string) (string, error) {
	resp, err := p.ask(&PromptRequest{Message: message, reply: make(chan promptResponse, 1)})
	if err != nil {
		return "", err
	}
	return resp.answer, resp.err
}

func (p *channelPrompter) Confirm(message string) (bool, error) {
	resp, err := p.ask(&PromptRequest{Message: message, IsConfirm: true, reply: make(chan promptResponse, 1)})
	if err != nil {
		return false, err
	}
	return resp.confirmed, resp.err
}

func (p *channelPrompter) ask(req *PromptRequest) (promptResponse, error) {
	select {
	case p.requests <- req:
	case <-p.ctx.Done():
		return promptResponse{}, p.ctx.Err()
	}
	select {
	case resp := <-req.reply:
		return resp, nil
	case <-p.ctx.Done():
		return promptResponse{}, p.ctx.Err()
	}
}

// Session is one tracked, interactive workflow execution. The workflow runs
// on its own goroutine; prompts from steps surface on the Prompts channel so
// the caller can service them from the terminal (or a test).
type Session struct {
	prompts   chan *PromptRequest
	group     *errgroup.Group
	result    *api.Result
	execution *api.WorkflowExecution
}

// Start launches the workflow on a background goroutine. The returned session
// exposes prompt requests until execution finishes, at which point the prompt
// channel closes. Storage may be nil to skip history recording. Observers
// receive step lifecycle events in addition to the execution tracker.
func Start(ctx context.Context, executor *workflow.Executor, storage *workflow.ExecutionStorage, wf *api.ParsedWorkflow, wctx *api.WorkflowContext, params map[string]interface{}, observers ...workflow.EventCallback) *Session {
	s := &Session{
		prompts: make(chan *PromptRequest),
	}

	tracker := workflow.NewTracker(storage, wf.Name, params)
	executor.SetEventCallback(multiCallback(append([]workflow.EventCallback{tracker}, observers...)))
	wctx.Prompter = &channelPrompter{ctx: ctx, requests: s.prompts}

	g, gctx := errgroup.WithContext(ctx)
	s.group = g
	g.Go(func() error {
		defer close(s.prompts)

		logging.Info("Runner", "Starting execution %s of workflow %s", tracker.ExecutionID(), wf.Name)
		result := executor.Execute(gctx, wf, wctx, params)
		cancelled := result.Err != nil && errors.Is(result.Err, context.Canceled)

		s.result = result
		s.execution = tracker.Finish(result, cancelled)
		return nil
	})

	return s
}

// Prompts returns the channel of user-input requests. The channel closes when
// execution finishes.
func (s *Session) Prompts() <-chan *PromptRequest {
	return s.prompts
}

// Wait blocks until execution finishes and returns the final result and the
// execution record.
func (s *Session) Wait() (*api.Result, *api.WorkflowExecution) {
	// The execution goroutine never returns an error; outcomes are carried
	// in the result.
	_ = s.group.Wait()
	return s.result, s.execution
}

// multiCallback fans step events out to several callbacks in order.
type multiCallback []workflow.EventCallback

func (m multiCallback) OnStepStarted(workflowName string, step api.StepSpec, depth int) {
	for _, cb := range m {
		cb.OnStepStarted(workflowName, step, depth)
	}
}

func (m multiCallback) OnStepCompleted(workflowName string, step api.StepSpec, result *api.Result, depth int) {
	for _, cb := range m {
		cb.OnStepCompleted(workflowName, step, result, depth)
	}
}
