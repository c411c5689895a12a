// Package service orchestrates reconciliation runs: it drives the
// per-instrument pipeline (payments -> dedup -> frequency -> annualize ->
// resolve) across a worker pool and owns the only write path to instrument
// rate tuples.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dividend-recon/internal/config"
	"dividend-recon/internal/override"
	"dividend-recon/internal/quote"
	"dividend-recon/internal/recon"
	"dividend-recon/internal/storage"
)

// Options select the scope and mode of a run.
type Options struct {
	DryRun bool
	Force  bool
	// Target restricts the run to a single instrument id; empty means all.
	Target string
}

// Outcome is the per-instrument result of one run.
type Outcome struct {
	InstrumentID string
	Decision     recon.Decision
	Basis        recon.Basis
	PaymentCount int
	Err          error
}

// Service wires the reconciliation pipeline to its collaborators.
type Service struct {
	instruments storage.InstrumentStore
	payments    storage.PaymentStore
	fetcher     quote.Fetcher
	registry    *override.Registry
	blacklist   *override.Blacklist
	resolver    recon.Resolver
	bands       recon.Bands
	logger      zerolog.Logger
	out         io.Writer

	windowDays   int
	workers      int
	writeRetries int
}

// New constructs the reconciliation service. out receives the per-instrument
// decision lines and the run summary; it is the command surface's contract
// and must not depend on whether writes happen.
func New(cfg *config.Config, instruments storage.InstrumentStore, payments storage.PaymentStore, fetcher quote.Fetcher, registry *override.Registry, blacklist *override.Blacklist, out io.Writer, logger zerolog.Logger) *Service {
	workers := cfg.Recon.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	bands := recon.Bands{
		Monthly:       recon.Band{MinDays: cfg.Recon.MonthlyBand.MinDays, MaxDays: cfg.Recon.MonthlyBand.MaxDays},
		Quarterly:     recon.Band{MinDays: cfg.Recon.QuarterlyBand.MinDays, MaxDays: cfg.Recon.QuarterlyBand.MaxDays},
		SemiAnnual:    recon.Band{MinDays: cfg.Recon.SemiAnnualBand.MinDays, MaxDays: cfg.Recon.SemiAnnualBand.MaxDays},
		Annual:        recon.Band{MinDays: cfg.Recon.AnnualBand.MinDays, MaxDays: cfg.Recon.AnnualBand.MaxDays},
		ToleranceDays: cfg.Recon.BandToleranceDays,
	}

	return &Service{
		instruments:  instruments,
		payments:     payments,
		fetcher:      fetcher,
		registry:     registry,
		blacklist:    blacklist,
		resolver:     recon.NewResolver(decimal.NewFromFloat(cfg.Recon.DivergenceRatio)),
		bands:        bands,
		logger:       logger.With().Str("component", "service").Logger(),
		out:          out,
		windowDays:   cfg.Recon.WindowDays,
		workers:      workers,
		writeRetries: cfg.Recon.WriteRetries,
	}
}

// Recompute runs the TTM reconciliation pipeline over the target instrument
// set. Instruments are independent, so the pipeline fans out across the
// worker pool; on cancellation no new work is issued but in-flight writes
// complete. asOf anchors every trailing window and is stamped on writes, so
// the run is reproducible.
func (s *Service) Recompute(ctx context.Context, asOf time.Time, opts Options) (*Summary, error) {
	targets, err := s.targetInstruments(ctx, opts.Target)
	if err != nil {
		return nil, err
	}

	outcomes := s.runPool(ctx, targets, func(inst storage.Instrument) Outcome {
		return s.recomputeOne(ctx, inst, asOf, opts)
	})

	summary := summarize(outcomes)
	s.logRun("recompute", summary, opts)
	s.render(outcomes, summary)
	return summary, summary.Err()
}

// RefreshQuotes runs the external-quote tier. Unlike recomputation this path
// is strictly sequential: provider calls are paced by the client's limiter
// and must never fan out.
func (s *Service) RefreshQuotes(ctx context.Context, asOf time.Time, opts Options) (*Summary, error) {
	if s.fetcher == nil {
		return nil, errors.New("quote provider not configured")
	}

	targets, err := s.targetInstruments(ctx, opts.Target)
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(targets))
	for _, inst := range targets {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		outcomes = append(outcomes, s.refreshOne(ctx, inst, asOf, opts))
	}

	summary := summarize(outcomes)
	s.logRun("refresh_quotes", summary, opts)
	s.render(outcomes, summary)
	return summary, summary.Err()
}

func (s *Service) logRun(kind string, summary *Summary, opts Options) {
	s.logger.Info().
		Str("run_id", summary.RunID).
		Str("kind", kind).
		Bool("dry_run", opts.DryRun).
		Bool("force", opts.Force).
		Int("updated", summary.Updated).
		Int("skipped", summary.Skipped).
		Int("errored", summary.Errored).
		Msg("run complete")
}

func (s *Service) targetInstruments(ctx context.Context, target string) ([]storage.Instrument, error) {
	if target != "" {
		inst, err := s.instruments.GetInstrument(ctx, target)
		if err != nil {
			return nil, err
		}
		return []storage.Instrument{inst}, nil
	}
	return s.instruments.ListInstruments(ctx)
}

func (s *Service) runPool(ctx context.Context, targets []storage.Instrument, work func(storage.Instrument) Outcome) []Outcome {
	jobs := make(chan storage.Instrument)
	results := make(chan Outcome, len(targets))

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for inst := range jobs {
				results <- work(inst)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, inst := range targets {
			select {
			case <-ctx.Done():
				// Stop issuing new work; in-flight instruments finish.
				return
			case jobs <- inst:
			}
		}
	}()

	wg.Wait()
	close(results)

	outcomes := make([]Outcome, 0, len(targets))
	for outcome := range results {
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// recomputeOne is the per-instrument pipeline. Everything up to persistence
// is a pure function of the payment history and the stored state.
func (s *Service) recomputeOne(ctx context.Context, inst storage.Instrument, asOf time.Time, opts Options) Outcome {
	outcome := Outcome{InstrumentID: inst.InstrumentID}

	if entry, ok := s.registry.Get(inst.InstrumentID); ok {
		outcome.Decision = s.resolver.ResolveOverride(inst.RateTuple(), entry.Tuple())
		outcome.Err = s.persist(ctx, inst, asOf, opts, outcome.Decision, func(current recon.RateTuple) recon.Decision {
			return s.resolver.ResolveOverride(current, entry.Tuple())
		})
		return outcome
	}

	records, err := s.payments.ListPayments(ctx, inst.InstrumentID, nil, nil)
	if err != nil {
		outcome.Err = fmt.Errorf("list payments: %w", err)
		return outcome
	}

	det := s.determine(records, asOf)
	outcome.Basis = det.Basis
	outcome.PaymentCount = det.PaymentCount

	outcome.Decision = s.resolver.ResolveComputed(inst.RateTuple(), det, opts.Force)
	outcome.Err = s.persist(ctx, inst, asOf, opts, outcome.Decision, func(current recon.RateTuple) recon.Decision {
		return s.resolver.ResolveComputed(current, det, opts.Force)
	})
	return outcome
}

// determine runs the pure computation chain for one instrument.
func (s *Service) determine(records []storage.PaymentRecord, asOf time.Time) recon.RateDetermination {
	raw := make([]recon.Record, 0, len(records))
	for _, rec := range records {
		raw = append(raw, rec.ReconRecord())
	}

	payments := recon.Deduplicate(raw)
	dates := make([]time.Time, len(payments))
	for i, p := range payments {
		dates[i] = p.Date
	}
	freq := recon.DetectFrequency(dates, s.bands)
	return recon.Annualize(payments, freq, asOf, s.windowDays)
}

func (s *Service) refreshOne(ctx context.Context, inst storage.Instrument, asOf time.Time, opts Options) Outcome {
	outcome := Outcome{InstrumentID: inst.InstrumentID}
	current := inst.RateTuple()

	// Short-circuit before spending a provider call.
	if current.Source == recon.SourceOverride {
		outcome.Decision = recon.Decision{Action: recon.ActionSkip, Reason: recon.ReasonOverrideLocked}
		return outcome
	}
	if _, ok := s.registry.Get(inst.InstrumentID); ok {
		outcome.Decision = recon.Decision{Action: recon.ActionSkip, Reason: recon.ReasonOverrideLocked}
		return outcome
	}
	if s.blacklist.Contains(inst.InstrumentID) {
		outcome.Decision = recon.Decision{Action: recon.ActionSkip, Reason: recon.ReasonExternalBlacklisted}
		return outcome
	}

	q, err := s.fetcher.FetchDeclaredRate(ctx, inst.Symbol, inst.Exchange)
	if err != nil {
		// Any provider failure means no usable quote this run; the run
		// continues with other instruments and nothing is retried here.
		s.logger.Warn().Err(err).Str("instrument", inst.InstrumentID).Msg("no usable quote this run")
		outcome.Decision = recon.Decision{Action: recon.ActionSkip, Reason: ReasonProviderError}
		return outcome
	}

	s.logger.Debug().
		Str("instrument", inst.InstrumentID).
		Str("rate", q.Rate.String()).
		Str("payout_ratio", q.PayoutRatio.String()).
		Time("ex_date", q.ExDate).
		Msg("provider quote")

	quoteTuple := recon.RateTuple{Rate: q.Rate, Frequency: q.Frequency}
	outcome.Decision = s.resolver.ResolveExternal(current, quoteTuple, false)
	outcome.Err = s.persist(ctx, inst, asOf, opts, outcome.Decision, func(cur recon.RateTuple) recon.Decision {
		return s.resolver.ResolveExternal(cur, quoteTuple, false)
	})
	return outcome
}

// persist applies an apply-decision through the compare-and-set write,
// retrying against freshly read state when a concurrent writer wins the
// race. A skip decision or a dry run writes nothing.
func (s *Service) persist(ctx context.Context, inst storage.Instrument, asOf time.Time, opts Options, decision recon.Decision, reresolve func(recon.RateTuple) recon.Decision) error {
	if decision.Action != recon.ActionApply || opts.DryRun {
		return nil
	}

	expected := inst.RateUpdatedAt
	tuple := decision.Tuple

	for attempt := 0; attempt < s.writeRetries; attempt++ {
		err := s.instruments.UpdateRate(ctx, inst.InstrumentID, tuple, asOf, expected)
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			return err
		}

		fresh, readErr := s.instruments.GetInstrument(ctx, inst.InstrumentID)
		if readErr != nil {
			return fmt.Errorf("re-read after conflict: %w", readErr)
		}

		fresherDecision := reresolve(fresh.RateTuple())
		if fresherDecision.Action != recon.ActionApply {
			// The concurrent write made this one unnecessary.
			return nil
		}
		expected = fresh.RateUpdatedAt
		tuple = fresherDecision.Tuple
	}

	return fmt.Errorf("update %s: %w after %d attempts", inst.InstrumentID, storage.ErrConflict, s.writeRetries)
}
