package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"runbook/internal/api"
	"runbook/internal/app"
	pkgstrings "runbook/pkg/strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var listWatch bool

// newListCmd creates the command that lists all discoverable workflows.
func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available workflows",
		Long: `List all workflows discoverable from the configured sources.
When the same name exists in several sources, only the highest-precedence
definition is shown (project > user > system > plugin).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context())
			if err != nil {
				return err
			}

			renderWorkflowTable(a.Workflows.Discover())
			if !listWatch {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Println("\nWatching for workflow changes, press Ctrl-C to stop.")
			err = a.Workflows.Watch(ctx, func() {
				fmt.Println()
				renderWorkflowTable(a.Workflows.Discover())
			})
			if err != nil && ctx.Err() != nil {
				// Interrupt is the normal way to leave watch mode
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVarP(&listWatch, "watch", "w", false, "re-render the list when workflow files change")
	return cmd
}

func renderWorkflowTable(infos []api.WorkflowInfo) {
	if len(infos) == 0 {
		fmt.Println("No workflows found.")
		return
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("NAME"),
		text.FgHiCyan.Sprint("SOURCE"),
		text.FgHiCyan.Sprint("CATEGORY"),
		text.FgHiCyan.Sprint("DESCRIPTION"),
	})
	for _, info := range infos {
		t.AppendRow(table.Row{
			info.Name,
			info.Source,
			info.Category,
			pkgstrings.Truncate(info.Description, pkgstrings.DefaultDescriptionMaxLen),
		})
	}
	t.Render()
}
