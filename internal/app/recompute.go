package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dividend-recon/internal/service"
)

// Recompute runs the trailing-twelve-month reconciliation pass over the
// instrument set and prints the per-instrument decisions. A dry run produces
// the same output without touching the database.
func (a *App) Recompute(ctx context.Context, opts RecomputeOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := a.newService(store, nil, os.Stdout)
	if err != nil {
		return err
	}

	_, err = svc.Recompute(ctx, time.Now().UTC(), service.Options{
		DryRun: opts.DryRun,
		Force:  opts.Force,
		Target: opts.Instrument,
	})
	return err
}

// RefreshQuotes runs the external-quote tier: one paced provider call per
// eligible instrument, applied over whatever the recomputation tier left
// behind.
func (a *App) RefreshQuotes(ctx context.Context, opts RefreshOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fetcher, err := a.newFetcher()
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := a.newService(store, fetcher, os.Stdout)
	if err != nil {
		return err
	}

	_, err = svc.RefreshQuotes(ctx, time.Now().UTC(), service.Options{
		DryRun: opts.DryRun,
		Target: opts.Instrument,
	})
	return err
}
