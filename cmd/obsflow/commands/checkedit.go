package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"obsflow/internal/telemetry"
	"obsflow/pkg/workflow"
)

func newCheckEditCommand() *cobra.Command {
	var (
		operation string
		actorID   string
		actorRole string
	)

	cmd := &cobra.Command{
		Use:   "check-edit <observation-id>...",
		Short: "Check whether observations accept an edit",
		Long: `Evaluate the edit eligibility gate for one or more observations without
changing anything. Prints each observation's verdict; rejected observations
include the reason.`,
		Example: `  # Can the PI retarget these observations?
  obsflow check-edit -c obsflow.yaml --op asterism --role pi o-1 o-2

  # Staff guide-target override
  obsflow check-edit -c obsflow.yaml --op guide_target --role staff o-1`,
		Args: cobra.MinimumNArgs(1),
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

			actor := workflow.Actor{ID: actorID, Role: workflow.Role(actorRole)}
			check, err := env.Service.CheckEditable(cmd.Context(), args, actor, workflow.OperationKind(operation))
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(check)
			}

			for _, id := range check.Allowed {
				fmt.Printf("%s: allowed\n", id)
			}
			for _, rej := range check.Rejections {
				fmt.Printf("%s: rejected: %s\n", rej.ID, rej.Message)
			}
			if len(check.Rejections) > 0 {
				return fmt.Errorf("%d of %d observations rejected", len(check.Rejections), len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&operation, "op", string(workflow.OpSubtitle), "operation kind to check")
	cmd.Flags().StringVar(&actorID, "actor", "cli", "acting user id")
	cmd.Flags().StringVar(&actorRole, "role", string(workflow.RolePi), "acting user role (pi, coi, staff, admin, service)")

	return cmd
}
