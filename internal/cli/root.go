// Package cli implements the gemactl operator commands.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-progress-api/internal/service"
)

// App holds the services used by CLI commands.
type App struct {
	Aggregator service.ScoreAggregator
	Standings  service.StandingService
}

// NewRootCmd creates the top-level "gemactl" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "gemactl",
		Short:         "Operator tooling for learner standings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newReconcileCmd(app),
		newStandingCmd(app),
		newMilestonesCmd(),
	)

	return root
}
