package workflow

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"runbook/internal/api"
	"runbook/pkg/logging"
)

// paramEnvPrefix prefixes the environment variables project-local step
// scripts receive for their parameters.
const paramEnvPrefix = "RUNBOOK_PARAM_"

// ShellRunner executes command steps and project-local step scripts through
// the system shell. Stdout streams to the workflow context writer; stderr is
// captured and attached to error results.
type ShellRunner struct{}

// NewShellRunner creates a shell runner.
func NewShellRunner() *ShellRunner {
	return &ShellRunner{}
}

// Run executes a shell command line in the context's working directory.
func (r *ShellRunner) Run(ctx context.Context, command string, wctx *api.WorkflowContext) *api.Result {
	if strings.TrimSpace(command) == "" {
		return api.Errorf("empty command")
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	return r.runCmd(cmd, command, wctx, nil)
}

// RunScript executes a project-local step script. Parameters are passed as
// RUNBOOK_PARAM_<NAME> environment variables.
func (r *ShellRunner) RunScript(ctx context.Context, path string, params map[string]interface{}, wctx *api.WorkflowContext) *api.Result {
	cmd := exec.CommandContext(ctx, "sh", path)
	return r.runCmd(cmd, path, wctx, paramEnv(params))
}

func (r *ShellRunner) runCmd(cmd *exec.Cmd, display string, wctx *api.WorkflowContext, extraEnv []string) *api.Result {
	var stderr bytes.Buffer
	cmd.Dir = wctx.WorkDir
	cmd.Stdout = wctx.Writer()
	cmd.Stderr = &stderr
	cmd.Env = append(os.Environ(), extraEnv...)

	logging.Debug("ShellRunner", "Running: %s", display)

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return api.WrapError(err, "command failed: %s", detail)
		}
		return api.WrapError(err, "command failed: %s", display)
	}
	return api.Success("command completed: %s", display)
}

// paramEnv renders step parameters as environment variable assignments.
// Parameter names are upper-cased; non-string values use their default
// formatting.
func paramEnv(params map[string]interface{}) []string {
	env := make([]string, 0, len(params))
	for name, value := range params {
		key := paramEnvPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		env = append(env, fmt.Sprintf("%s=%v", key, value))
	}
	return env
}
