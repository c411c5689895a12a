package cli

import (
	"github.com/spf13/cobra"

	"dividend-recon/internal/app"
)

var (
	refreshDryRun     bool
	refreshInstrument string
)

var refreshCmd = &cobra.Command{
	Use:   "refresh-quotes",
	Short: "Refresh declared rates from the external quote provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.RefreshOptions{
			DryRun:     refreshDryRun,
			Instrument: refreshInstrument,
		}

		return getApp().RefreshQuotes(cmd.Context(), opts)
	},
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshDryRun, "dry-run", false, "Print decisions without writing")
	refreshCmd.Flags().StringVar(&refreshInstrument, "instrument", "", "Restrict the run to one instrument id")
}
