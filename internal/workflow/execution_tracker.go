package workflow

import (
	"time"

	"runbook/internal/api"
	"runbook/pkg/logging"

	"github.com/google/uuid"
)

// Tracker records workflow executions as they run. It implements
// EventCallback so it can be attached to an executor, collects per-step
// records for the top-level workflow, and persists the execution record at
// start and finish.
type Tracker struct {
	storage   *ExecutionStorage
	execution *api.WorkflowExecution
	started   time.Time
}

// NewTracker starts tracking one execution of the named workflow and persists
// the initial in-progress record. Persistence failures are logged, not fatal;
// an execution always runs even when its history cannot be written.
func NewTracker(storage *ExecutionStorage, workflowName string, params map[string]interface{}) *Tracker {
	t := &Tracker{
		storage: storage,
		started: time.Now(),
		execution: &api.WorkflowExecution{
			ExecutionID:  uuid.New().String(),
			WorkflowName: workflowName,
			Status:       api.ExecutionInProgress,
			StartedAt:    time.Now().UTC(),
			Params:       params,
		},
	}
	t.store()
	return t
}

// ExecutionID returns the identifier assigned to this execution.
func (t *Tracker) ExecutionID() string {
	return t.execution.ExecutionID
}

// OnStepStarted implements EventCallback.
func (t *Tracker) OnStepStarted(workflowName string, step api.StepSpec, depth int) {
	logging.Debug("Tracker", "Step %s started (workflow %s, depth %d)", step.ID, workflowName, depth)
}

// OnStepCompleted implements EventCallback. Only top-level steps are
// recorded; nested workflow steps appear as the single workflow step that
// invoked them.
func (t *Tracker) OnStepCompleted(workflowName string, step api.StepSpec, result *api.Result, depth int) {
	if depth > 0 {
		return
	}

	action, _ := step.Action()
	record := api.StepRecord{
		ID:      step.ID,
		Name:    step.Name,
		Action:  string(action),
		Target:  stepTarget(step),
		Status:  result.Status,
		Message: result.Message,
	}
	if result.Status == api.StatusError {
		record.Error = result.Error()
	}
	t.execution.Steps = append(t.execution.Steps, record)
}

// Finish closes the execution record with the final outcome and persists it.
func (t *Tracker) Finish(result *api.Result, cancelled bool) *api.WorkflowExecution {
	now := time.Now().UTC()
	t.execution.CompletedAt = &now
	t.execution.DurationMs = time.Since(t.started).Milliseconds()

	switch {
	case cancelled:
		t.execution.Status = api.ExecutionCancelled
		t.execution.Error = result.Error()
	case result.Status == api.StatusError:
		t.execution.Status = api.ExecutionHalted
		t.execution.Error = result.Error()
	default:
		t.execution.Status = api.ExecutionCompleted
	}

	t.store()
	return t.execution
}

func (t *Tracker) store() {
	if t.storage == nil {
		return
	}
	if err := t.storage.Store(t.execution); err != nil {
		logging.Warn("Tracker", "Failed to persist execution record %s: %v", t.execution.ExecutionID, err)
	}
}

func stepTarget(step api.StepSpec) string {
	switch {
	case step.Plugin != "":
		return step.Plugin + "/" + step.Step
	case step.Command != "":
		return step.Command
	case step.Workflow != "":
		return step.Workflow
	default:
		return ""
	}
}
