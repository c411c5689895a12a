package cli

import (
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Report rate coverage, divergence, and staleness without writing",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Audit(cmd.Context())
	},
}
