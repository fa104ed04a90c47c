package cmd

import (
	"fmt"

	"runbook/internal/app"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// newShowCmd creates the command that prints one fully-resolved workflow.
func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <workflow>",
		Short: "Show a workflow after extends and hook resolution",
		Long: `Show the fully-resolved form of a workflow: the extends chain is
merged, hook steps are injected, and every step carries its final ID.
The output is exactly what the run command will execute.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context())
			if err != nil {
				return err
			}

			wf, err := a.Workflows.Get(args[0])
			if err != nil {
				return err
			}

			data, err := yaml.Marshal(wf)
			if err != nil {
				return fmt.Errorf("failed to render workflow %s: %w", wf.Name, err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
