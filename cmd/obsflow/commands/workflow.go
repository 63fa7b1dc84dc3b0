package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"obsflow/internal/telemetry"
)

func newWorkflowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow <observation-id>",
		Short: "Show the derived workflow for an observation",
		Long: `Compute and print an observation's workflow: its derived state, the
transitions legal from that state, and any validation findings.`,
		Example: `  # Inspect an observation in a sqlite store
  obsflow workflow -c obsflow.yaml o-1234

  # Machine-readable output
  obsflow workflow -c obsflow.yaml --json o-1234`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			env, err := buildEnvironment(cmd.Context(), cfg, telemetry.NewNop())
			if err != nil {
				return err
			}
			defer env.Close()

			wf, err := env.Service.GetWorkflow(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(wf)
			}

			fmt.Printf("State:       %s\n", wf.State.Title())
			titles := make([]string, 0, len(wf.ValidTransitions))
			for _, s := range wf.ValidTransitions {
				titles = append(titles, s.Title())
			}
			if len(titles) == 0 {
				fmt.Println("Transitions: (none)")
			} else {
				fmt.Printf("Transitions: %s\n", strings.Join(titles, ", "))
			}
			if len(wf.ValidationErrors) == 0 {
				fmt.Println("Findings:    (none)")
			} else {
				fmt.Println("Findings:")
				for _, f := range wf.ValidationErrors {
					fmt.Printf("  [%s] %s\n", f.Kind, f.Message)
				}
			}
			return nil
		},
	}

	return cmd
}
