package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"runbook/internal/app"
	"runbook/internal/plugin"
	pkgstrings "runbook/pkg/strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// newDoctorCmd creates the command that reports plugin health.
func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Report plugin and configuration health",
		Long: `Report the state of every installed plugin. Plugins that failed to
load or initialize are listed with the failure reason, including
failures cascaded from broken dependencies.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("Configuration: %s\n", a.UserConfigDir)
			fmt.Printf("Project:       %s\n\n", a.ProjectConfigDir)

			renderPluginTable(a.Plugins.ListInstalled())

			failed := a.Plugins.ListFailed()
			if len(failed) == 0 {
				fmt.Printf("\n%s all plugins healthy\n", text.FgGreen.Sprint("✓"))
				return nil
			}

			fmt.Printf("\n%s %d plugin(s) unavailable:\n", text.FgRed.Sprint("✗"), len(failed))
			names := make([]string, 0, len(failed))
			for name := range failed {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("  %s: %v\n", text.FgRed.Sprint(name), failed[name])
			}
			return nil
		},
	}
}

func renderPluginTable(plugins []plugin.Descriptor) {
	if len(plugins) == 0 {
		fmt.Println("No plugins installed.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("PLUGIN"),
		text.FgHiCyan.Sprint("STATE"),
		text.FgHiCyan.Sprint("DEPENDS ON"),
		text.FgHiCyan.Sprint("DESCRIPTION"),
	})
	for _, p := range plugins {
		t.AppendRow(table.Row{
			p.Name,
			colorPluginState(p.State),
			strings.Join(p.Dependencies, ", "),
			pkgstrings.Truncate(p.Description, pkgstrings.DefaultDescriptionMaxLen),
		})
	}
	t.Render()
}

func colorPluginState(state plugin.State) string {
	switch state {
	case plugin.StateInitialized:
		return text.FgGreen.Sprint(state)
	case plugin.StateFailed:
		return text.FgRed.Sprint(state)
	default:
		return text.FgYellow.Sprint(state)
	}
}
