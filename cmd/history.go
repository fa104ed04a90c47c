package cmd

import (
	"fmt"
	"os"
	"time"

	"runbook/internal/api"
	"runbook/internal/app"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var historyLimit int

// newHistoryCmd creates the command that lists recorded executions.
func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [workflow]",
		Short: "List recorded workflow executions",
		Long: `List recorded executions, newest first. With a workflow name only that
workflow's executions are shown. Records marked in_progress belong to
runs that were killed before they could finish.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context())
			if err != nil {
				return err
			}

			workflowName := ""
			if len(args) == 1 {
				workflowName = args[0]
			}

			executions := a.Storage.List(workflowName, historyLimit)
			if len(executions) == 0 {
				fmt.Println("No executions recorded.")
				return nil
			}

			renderHistoryTable(executions)
			return nil
		},
	}
	cmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of executions to show")
	return cmd
}

func renderHistoryTable(executions []*api.WorkflowExecution) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("STARTED"),
		text.FgHiCyan.Sprint("WORKFLOW"),
		text.FgHiCyan.Sprint("STATUS"),
		text.FgHiCyan.Sprint("DURATION"),
		text.FgHiCyan.Sprint("STEPS"),
		text.FgHiCyan.Sprint("EXECUTION"),
	})
	for _, execution := range executions {
		t.AppendRow(table.Row{
			execution.StartedAt.Local().Format(time.DateTime),
			execution.WorkflowName,
			colorStatus(execution.Status),
			fmt.Sprintf("%dms", execution.DurationMs),
			len(execution.Steps),
			execution.ExecutionID,
		})
	}
	t.Render()
}

func colorStatus(status api.ExecutionStatus) string {
	switch status {
	case api.ExecutionCompleted:
		return text.FgGreen.Sprint(status)
	case api.ExecutionHalted:
		return text.FgRed.Sprint(status)
	case api.ExecutionCancelled, api.ExecutionInProgress:
		return text.FgYellow.Sprint(status)
	default:
		return string(status)
	}
}
