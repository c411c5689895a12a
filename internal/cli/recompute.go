package cli

import (
	"github.com/spf13/cobra"

	"dividend-recon/internal/app"
)

var (
	recomputeDryRun     bool
	recomputeForce      bool
	recomputeInstrument string
)

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Recompute dividend rates from payment history",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.RecomputeOptions{
			DryRun:     recomputeDryRun,
			Force:      recomputeForce,
			Instrument: recomputeInstrument,
		}

		return getApp().Recompute(cmd.Context(), opts)
	},
}

func init() {
	recomputeCmd.Flags().BoolVar(&recomputeDryRun, "dry-run", false, "Print decisions without writing")
	recomputeCmd.Flags().BoolVar(&recomputeForce, "force", false, "Overwrite non-override rates regardless of divergence")
	recomputeCmd.Flags().StringVar(&recomputeInstrument, "instrument", "", "Restrict the run to one instrument id")
}
