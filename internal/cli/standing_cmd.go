package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-progress-api/internal/dto"
	"github.com/noah-isme/gema-progress-api/internal/gamification"
)

func newStandingCmd(app *App) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "standing <learner-id>",
		Short: "Show a learner's total, level, milestones and badges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			learnerID, err := parseLearnerID(args[0])
			if err != nil {
				return err
			}

			standing, err := app.Standings.GetLearnerStanding(cmd.Context(), learnerID)
			if err != nil {
				return fmt.Errorf("loading standing for learner %d: %w", learnerID, err)
			}

			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(standing)
			}
			printStanding(cmd, standing)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the standing as JSON")
	return cmd
}

func printStanding(cmd *cobra.Command, standing dto.LearnerStandingResponse) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (#%d)\n", standing.Name, standing.LearnerID)
	fmt.Fprintf(out, "Total: %d  Level: %s\n", standing.TotalScore, standing.Level)
	if standing.NextLevel != "" {
		fmt.Fprintf(out, "Next:  %s in %d points\n", standing.NextLevel, standing.PointsToNextLevel)
	}

	if len(standing.EarnedMilestones) > 0 {
		fmt.Fprintln(out, "\nMilestones:")
		for _, milestone := range standing.EarnedMilestones {
			fmt.Fprintf(out, "  - %s (%s)\n", milestone.Name, milestone.ID)
		}
	}

	if len(standing.ScoreBadges) > 0 {
		fmt.Fprintln(out, "\nBadges:")
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "  ACTIVITY\tPOINTS\tGRADE")
		for _, badge := range standing.ScoreBadges {
			fmt.Fprintf(w, "  %s\t%d/%d\t%s\n", badge.ActivityTitle, badge.Points, badge.MaxScore, badge.Grade)
		}
		w.Flush()
	}
}

func newMilestonesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "milestones",
		Short: "List the milestone catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tREQUIREMENT")
			for _, milestone := range gamification.MilestoneCatalog() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", milestone.ID, milestone.Name, milestone.Requirement)
			}
			return w.Flush()
		},
	}
}
