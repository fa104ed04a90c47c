package cmd

import (
	"errors"
	"fmt"
	"testing"

	"runbook/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "generic error",
			err:  errors.New("boom"),
			want: ExitCodeError,
		},
		{
			name: "workflow not found",
			err:  api.NewWorkflowNotFoundError("ghost"),
			want: ExitCodeNotFound,
		},
		{
			name: "wrapped not found",
			err:  fmt.Errorf("resolving: %w", api.NewWorkflowNotFoundError("ghost")),
			want: ExitCodeNotFound,
		},
		{
			name: "halted execution",
			err:  &api.ExecutionError{Workflow: "deploy", StepID: "build", Err: errors.New("make failed")},
			want: ExitCodeHalted,
		},
		{
			name: "interrupted run",
			err:  &interruptedError{err: errors.New("context canceled")},
			want: ExitCodeInterrupted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getExitCode(tt.err))
		})
	}
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"env=production", "version=1.2.3", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"env":     "production",
		"version": "1.2.3",
		"empty":   "",
	}, params)

	params, err = parseParams(nil)
	require.NoError(t, err)
	assert.Nil(t, params)

	_, err = parseParams([]string{"novalue"})
	assert.Error(t, err)

	_, err = parseParams([]string{"=value"})
	assert.Error(t, err)
}

func TestRootCommandWiring(t *testing.T) {
	names := make(map[string]bool)
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}
	for _, expected := range []string{"list", "show", "run", "history", "doctor", "version"} {
		assert.True(t, names[expected], "missing subcommand %s", expected)
	}
}
