package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-progress-api/internal/dto"
	"github.com/noah-isme/gema-progress-api/internal/service"
)

// operator is the actor recorded in the audit trail for CLI repairs.
var operator = service.Actor{Role: "system"}

func newReconcileCmd(app *App) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "reconcile [learner-id]",
		Short: "Recompute stored totals and levels from score badges",
		Args: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return fmt.Errorf("--all does not take a learner id")
			}
			if !all && len(args) != 1 {
				return fmt.Errorf("a learner id or --all is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if all {
				results, err := app.Aggregator.ReconcileAll(ctx, operator)
				repaired := 0
				for _, result := range results {
					if result.Drift {
						repaired++
						printReconcile(cmd, result)
					}
				}
				fmt.Fprintf(out, "checked %d learners, repaired %d\n", len(results), repaired)
				return err
			}

			learnerID, err := parseLearnerID(args[0])
			if err != nil {
				return err
			}
			result, err := app.Aggregator.Reconcile(ctx, learnerID, operator)
			if err != nil {
				return fmt.Errorf("reconciling learner %d: %w", learnerID, err)
			}
			if !result.Drift {
				fmt.Fprintf(out, "learner %d consistent: total %d, level %s\n", result.LearnerID, result.TotalScore, result.Level)
				return nil
			}
			printReconcile(cmd, result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "reconcile every learner")
	return cmd
}

func printReconcile(cmd *cobra.Command, result dto.ReconcileResponse) {
	fmt.Fprintf(cmd.OutOrStdout(), "learner %d repaired: total %d -> %d, level %s -> %s\n",
		result.LearnerID, result.PreviousTotal, result.TotalScore, result.PreviousLevel, result.Level)
}

func parseLearnerID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid learner id %q", raw)
	}
	return uint(id), nil
}
