package workflow

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"runbook/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionStorageRoundTrip(t *testing.T) {
	storage := NewExecutionStorage(t.TempDir())

	execution := &api.WorkflowExecution{
		ExecutionID:  "exec-1",
		WorkflowName: "deploy",
		Status:       api.ExecutionCompleted,
		StartedAt:    time.Now().UTC(),
		Steps: []api.StepRecord{
			{ID: "build", Action: "command", Status: api.StatusSuccess},
		},
	}
	require.NoError(t, storage.Store(execution))

	loaded, err := storage.Get("deploy", "exec-1")
	require.NoError(t, err)
	assert.Equal(t, "deploy", loaded.WorkflowName)
	require.Len(t, loaded.Steps, 1)
	assert.Equal(t, "build", loaded.Steps[0].ID)

	_, err = storage.Get("deploy", "nope")
	assert.True(t, api.IsNotFound(err))
}

func TestExecutionStorageListNewestFirst(t *testing.T) {
	storage := NewExecutionStorage(t.TempDir())

	base := time.Now().UTC()
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, storage.Store(&api.WorkflowExecution{
			ExecutionID:  id,
			WorkflowName: "deploy",
			Status:       api.ExecutionCompleted,
			StartedAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, storage.Store(&api.WorkflowExecution{
		ExecutionID:  "other",
		WorkflowName: "cleanup",
		Status:       api.ExecutionCompleted,
		StartedAt:    base.Add(time.Hour),
	}))

	all := storage.List("", 0)
	require.Len(t, all, 4)
	assert.Equal(t, "other", all[0].ExecutionID)

	deploys := storage.List("deploy", 2)
	require.Len(t, deploys, 2)
	assert.Equal(t, "new", deploys[0].ExecutionID)
	assert.Equal(t, "mid", deploys[1].ExecutionID)
}

func TestExecutionStorageSkipsCorruptRecords(t *testing.T) {
	configDir := t.TempDir()
	storage := NewExecutionStorage(configDir)
	require.NoError(t, storage.Store(&api.WorkflowExecution{
		ExecutionID:  "good",
		WorkflowName: "deploy",
		StartedAt:    time.Now().UTC(),
	}))

	dir := filepath.Join(configDir, "executions", "deploy")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0644))

	list := storage.List("deploy", 0)
	require.Len(t, list, 1)
	assert.Equal(t, "good", list[0].ExecutionID)
}

func TestTrackerRecordsTopLevelSteps(t *testing.T) {
	storage := NewExecutionStorage(t.TempDir())
	tracker := NewTracker(storage, "deploy", map[string]interface{}{"env": "prod"})
	require.NotEmpty(t, tracker.ExecutionID())

	started, err := storage.Get("deploy", tracker.ExecutionID())
	require.NoError(t, err)
	assert.Equal(t, api.ExecutionInProgress, started.Status, "record exists while running")

	step := api.StepSpec{ID: "build", Name: "Build", Command: "make build"}
	tracker.OnStepStarted("deploy", step, 0)
	tracker.OnStepCompleted("deploy", step, api.Success("built"), 0)

	nested := api.StepSpec{ID: "inner", Command: "true"}
	tracker.OnStepCompleted("inner-wf", nested, api.Success("ok"), 1)

	execution := tracker.Finish(api.Success("workflow deploy completed"), false)
	assert.Equal(t, api.ExecutionCompleted, execution.Status)
	require.Len(t, execution.Steps, 1, "nested steps are not recorded individually")
	assert.Equal(t, "build", execution.Steps[0].ID)
	assert.Equal(t, "command", execution.Steps[0].Action)
	assert.Equal(t, "make build", execution.Steps[0].Target)
	require.NotNil(t, execution.CompletedAt)

	final, err := storage.Get("deploy", tracker.ExecutionID())
	require.NoError(t, err)
	assert.Equal(t, api.ExecutionCompleted, final.Status)
}

func TestTrackerFinishOutcomes(t *testing.T) {
	halted := NewTracker(nil, "deploy", nil).Finish(api.Errorf("step failed"), false)
	assert.Equal(t, api.ExecutionHalted, halted.Status)
	assert.Equal(t, "step failed", halted.Error)

	cancelled := NewTracker(nil, "deploy", nil).Finish(api.Errorf("interrupted"), true)
	assert.Equal(t, api.ExecutionCancelled, cancelled.Status)

	exited := NewTracker(nil, "deploy", nil).Finish(api.Exit("user said no"), false)
	assert.Equal(t, api.ExecutionCompleted, exited.Status, "a clean exit is a completed run")
}

func TestTrackerRecordsStepErrors(t *testing.T) {
	tracker := NewTracker(nil, "deploy", nil)
	step := api.StepSpec{ID: "boom", Command: "false"}
	tracker.OnStepCompleted("deploy", step, api.Errorf("exploded"), 0)

	execution := tracker.Finish(api.Errorf("halted"), false)
	require.Len(t, execution.Steps, 1)
	assert.Equal(t, api.StatusError, execution.Steps[0].Status)
	assert.Equal(t, "exploded", execution.Steps[0].Error)
}
