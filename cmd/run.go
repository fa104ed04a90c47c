package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"runbook/internal/api"
	"runbook/internal/app"
	"runbook/internal/run"
	"runbook/internal/workflow"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var (
	runParams []string
	runQuiet  bool
)

// newRunCmd creates the command that executes a workflow.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <workflow>",
		Short: "Execute a workflow",
		Long: `Execute a workflow by name. Parameters given with --param override the
workflow's defaults and are available to every step via ${name}
substitution. Interactive steps prompt on the terminal; Ctrl-C cancels
the run after the current step.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(runParams)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx)
			if err != nil {
				return err
			}

			wf, err := a.Workflows.Get(args[0])
			if err != nil {
				return err
			}

			return runWorkflow(ctx, a, wf, params)
		},
	}
	cmd.Flags().StringArrayVarP(&runParams, "param", "p", nil,
		"workflow parameter as key=value (repeatable)")
	cmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false,
		"suppress per-step progress output")
	return cmd
}

// parseParams converts repeated key=value flags into a parameter map.
func parseParams(pairs []string) (map[string]interface{}, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --param %q, expected key=value", pair)
		}
		params[key] = value
	}
	return params, nil
}

func runWorkflow(ctx context.Context, a *app.App, wf *api.ParsedWorkflow, params map[string]interface{}) error {
	wctx := a.NewContext()

	var observers []workflow.EventCallback
	var progress *progressReporter
	if !runQuiet {
		progress = newProgressReporter()
		observers = append(observers, progress)
	}

	session := run.Start(ctx, a.Executor, a.Storage, wf, wctx, params, observers...)

	// The spinner restarts with the next step, so it only needs stopping
	// before the terminal is used for a prompt.
	for req := range session.Prompts() {
		if progress != nil {
			progress.stop()
		}
		answerPrompt(req)
	}

	result, execution := session.Wait()
	if progress != nil {
		progress.stop()
	}

	switch {
	case execution.Status == api.ExecutionCancelled:
		fmt.Printf("%s run %s cancelled\n", text.FgYellow.Sprint("!"), execution.ExecutionID)
		return &interruptedError{err: result.Err}
	case result.Status == api.StatusError:
		fmt.Printf("%s %s\n", text.FgRed.Sprint("✗"), result.Error())
		if result.Err != nil {
			return result.Err
		}
		return fmt.Errorf("%s", result.Message)
	case result.Status == api.StatusExit:
		fmt.Printf("%s workflow %s stopped: %s\n", text.FgYellow.Sprint("!"), wf.Name, result.Message)
		return nil
	default:
		fmt.Printf("%s workflow %s completed in %dms (execution %s)\n",
			text.FgGreen.Sprint("✓"), wf.Name, execution.DurationMs, execution.ExecutionID)
		return nil
	}
}

// answerPrompt reads one prompt reply from the terminal.
func answerPrompt(req *run.PromptRequest) {
	suffix := ": "
	if req.IsConfirm {
		suffix = " [y/N]: "
	}

	rl, err := readline.New(text.FgHiCyan.Sprint("? ") + req.Message + suffix)
	if err != nil {
		req.Fail(err)
		return
	}
	defer rl.Close()

	line, err := rl.Readline()
	if err != nil {
		// Ctrl-C or Ctrl-D during a prompt declines it
		req.Fail(fmt.Errorf("prompt aborted: %w", err))
		return
	}

	answer := strings.TrimSpace(line)
	confirmed := false
	if req.IsConfirm {
		switch strings.ToLower(answer) {
		case "y", "yes":
			confirmed = true
		}
	}
	req.Answer(answer, confirmed)
}

// progressReporter renders a spinner for the step in flight and a summary
// line for every completed top-level step. It implements
// workflow.EventCallback; events arrive on the execution goroutine while
// stop is called from the prompt loop, so the spinner's own locking is
// relied on for the rare overlap.
type progressReporter struct {
	spinner *spinner.Spinner
}

func newProgressReporter() *progressReporter {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	return &progressReporter{spinner: s}
}

func (p *progressReporter) OnStepStarted(workflowName string, step api.StepSpec, depth int) {
	if depth > 0 {
		return
	}
	p.spinner.Suffix = " " + step.DisplayName()
	p.spinner.Start()
}

func (p *progressReporter) OnStepCompleted(workflowName string, step api.StepSpec, result *api.Result, depth int) {
	if depth > 0 {
		return
	}
	p.spinner.Stop()

	switch result.Status {
	case api.StatusSuccess:
		fmt.Printf("%s %s\n", text.FgGreen.Sprint("✓"), step.DisplayName())
	case api.StatusSkip:
		fmt.Printf("%s %s (skipped: %s)\n", text.FgYellow.Sprint("-"), step.DisplayName(), result.Message)
	case api.StatusExit:
		fmt.Printf("%s %s (%s)\n", text.FgYellow.Sprint("!"), step.DisplayName(), result.Message)
	case api.StatusError:
		fmt.Printf("%s %s: %s\n", text.FgRed.Sprint("✗"), step.DisplayName(), result.Error())
	}
}

func (p *progressReporter) stop() { p.spinner.Stop() }
