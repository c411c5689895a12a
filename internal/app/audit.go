package app

import (
	"context"
	"os"
	"time"

	"dividend-recon/internal/audit"
)

// Audit prints the read-only findings report. It never writes, so it is safe
// to run against a live database at any time.
func (a *App) Audit(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	reporter := audit.New(a.Config, store, store, a.Logger)
	findings, err := reporter.Run(ctx, time.Now().UTC())
	if err != nil {
		return err
	}

	findings.Render(os.Stdout)
	return nil
}
