package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestStepSpec_Action(t *testing.T) {
	tests := []struct {
		name     string
		step     StepSpec
		expected ActionType
		wantErr  bool
	}{
		{
			name:     "plugin step",
			step:     StepSpec{Plugin: "git", Step: "commit"},
			expected: ActionPlugin,
		},
		{
			name:     "command step",
			step:     StepSpec{Command: "make build"},
			expected: ActionCommand,
		},
		{
			name:     "workflow step",
			step:     StepSpec{Workflow: "deploy"},
			expected: ActionWorkflow,
		},
		{
			name:     "hook placeholder",
			step:     StepSpec{Hook: "before_release"},
			expected: ActionHook,
		},
		{
			name:    "no action",
			step:    StepSpec{Name: "empty"},
			wantErr: true,
		},
		{
			name:    "two actions",
			step:    StepSpec{Plugin: "git", Step: "commit", Command: "ls"},
			wantErr: true,
		},
		{
			name:    "plugin without step name",
			step:    StepSpec{Plugin: "git"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, err := tt.step.Action()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, action)
		})
	}
}

func TestStepSpec_Validate_OnError(t *testing.T) {
	valid := StepSpec{Command: "ls", OnError: OnErrorContinue}
	assert.NoError(t, valid.Validate())

	defaulted := StepSpec{Command: "ls"}
	assert.NoError(t, defaulted.Validate())
	assert.Equal(t, OnErrorFail, defaulted.ErrorPolicyOrDefault())

	invalid := StepSpec{Command: "ls", OnError: "retry"}
	assert.Error(t, invalid.Validate())
}

func TestStepSpec_IsHookPlaceholder(t *testing.T) {
	assert.True(t, (&StepSpec{Hook: "after"}).IsHookPlaceholder())
	assert.False(t, (&StepSpec{Command: "ls"}).IsHookPlaceholder())
	// A step with both hook and an action is malformed, not a placeholder
	assert.False(t, (&StepSpec{Hook: "after", Command: "ls"}).IsHookPlaceholder())
}

func TestHookSet_UnmarshalYAML_Sequence(t *testing.T) {
	var def WorkflowDefinition
	data := `
name: base
hooks:
  - before_release
  - after
steps:
  - name: Build
    command: make build
`
	require.NoError(t, yaml.Unmarshal([]byte(data), &def))
	assert.Equal(t, []string{"before_release", "after"}, def.Hooks.Declared)
	assert.Empty(t, def.Hooks.Inject)
}

func TestHookSet_UnmarshalYAML_Mapping(t *testing.T) {
	var def WorkflowDefinition
	data := `
name: child
extends: base
hooks:
  before_release:
    - name: Lint
      command: make lint
    - name: Test
      command: make test
`
	require.NoError(t, yaml.Unmarshal([]byte(data), &def))
	assert.Empty(t, def.Hooks.Declared)
	require.Len(t, def.Hooks.Inject["before_release"], 2)
	assert.Equal(t, "make lint", def.Hooks.Inject["before_release"][0].Command)
}

func TestHookSet_UnmarshalYAML_Invalid(t *testing.T) {
	var def WorkflowDefinition
	err := yaml.Unmarshal([]byte("name: x\nhooks: 42\n"), &def)
	assert.Error(t, err)
}

func TestWorkflowContext_Merge(t *testing.T) {
	ctx := NewWorkflowContext()
	ctx.Data["keep"] = "original"
	ctx.Data["replace"] = "old"

	ctx.Merge(map[string]interface{}{"replace": "new", "added": 7})

	assert.Equal(t, "original", ctx.Data["keep"])
	assert.Equal(t, "new", ctx.Data["replace"])
	assert.Equal(t, 7, ctx.Data["added"])
}

func TestResult_OK(t *testing.T) {
	assert.True(t, Success("done").OK())
	assert.True(t, Skip("nothing to do").OK())
	assert.False(t, Errorf("boom").OK())
	assert.False(t, Exit("user abort").OK())
}

func TestErrors_As(t *testing.T) {
	assert.True(t, IsNotFound(NewWorkflowNotFoundError("release")))
	assert.True(t, IsCyclicExtends(&CyclicExtendsError{Chain: []string{"a", "b", "a"}}))
	assert.Contains(t, (&CyclicExtendsError{Chain: []string{"a", "b", "a"}}).Error(), "a -> b -> a")
}
