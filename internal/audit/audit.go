// Package audit is the read-only diagnostic pass over the instrument set. It
// reuses the reconciliation chain to recompute candidate rates but never
// writes; it is safe to run at any time, including concurrently with a
// resolver pass, and tolerates reading a rate mid-update.
package audit

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dividend-recon/internal/config"
	"dividend-recon/internal/recon"
	"dividend-recon/internal/storage"
)

// Divergence is one external-vs-computed disagreement past the advisory
// threshold.
type Divergence struct {
	InstrumentID string
	ExternalRate decimal.Decimal
	ComputedRate decimal.Decimal
	RelativeGap  decimal.Decimal
}

// StaleRate is one instrument whose rate has outlived the staleness window.
type StaleRate struct {
	InstrumentID string
	UpdatedAt    *time.Time
}

// Findings holds the five independent audit results for one run.
type Findings struct {
	AsOf time.Time
	// MissingRateWithPosition lists instruments held in the portfolio with
	// no usable declared rate.
	MissingRateWithPosition []string
	// HistoryWithoutRate lists instruments with payment history but no
	// rate: candidates for recomputation.
	HistoryWithoutRate []string
	// SourceBreakdown counts instruments per provenance tag.
	SourceBreakdown map[recon.RateSource]int
	// Divergences lists external_quote rates disagreeing with a freshly
	// computed TTM rate by more than the advisory threshold.
	Divergences []Divergence
	// Stale lists instruments whose rate was last refreshed outside the
	// staleness window.
	Stale []StaleRate
}

// Reporter computes audit findings.
type Reporter struct {
	instruments storage.InstrumentStore
	payments    storage.PaymentStore
	bands       recon.Bands
	logger      zerolog.Logger

	windowDays    int
	divergencePct decimal.Decimal
	staleness     time.Duration
}

// New constructs an audit reporter.
func New(cfg *config.Config, instruments storage.InstrumentStore, payments storage.PaymentStore, logger zerolog.Logger) *Reporter {
	bands := recon.Bands{
		Monthly:       recon.Band{MinDays: cfg.Recon.MonthlyBand.MinDays, MaxDays: cfg.Recon.MonthlyBand.MaxDays},
		Quarterly:     recon.Band{MinDays: cfg.Recon.QuarterlyBand.MinDays, MaxDays: cfg.Recon.QuarterlyBand.MaxDays},
		SemiAnnual:    recon.Band{MinDays: cfg.Recon.SemiAnnualBand.MinDays, MaxDays: cfg.Recon.SemiAnnualBand.MaxDays},
		Annual:        recon.Band{MinDays: cfg.Recon.AnnualBand.MinDays, MaxDays: cfg.Recon.AnnualBand.MaxDays},
		ToleranceDays: cfg.Recon.BandToleranceDays,
	}
	return &Reporter{
		instruments:   instruments,
		payments:      payments,
		bands:         bands,
		logger:        logger.With().Str("component", "audit").Logger(),
		windowDays:    cfg.Recon.WindowDays,
		divergencePct: decimal.NewFromFloat(cfg.Audit.DivergencePct),
		staleness:     cfg.Audit.Staleness,
	}
}

// Run computes all findings as of the given time.
func (r *Reporter) Run(ctx context.Context, asOf time.Time) (*Findings, error) {
	instruments, err := r.instruments.ListInstruments(ctx)
	if err != nil {
		return nil, err
	}

	findings := &Findings{
		AsOf:            asOf,
		SourceBreakdown: make(map[recon.RateSource]int),
	}

	for _, inst := range instruments {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		source := inst.RateSource
		if source == "" {
			source = recon.SourceNone
		}
		findings.SourceBreakdown[source]++

		usable := inst.DeclaredRate != nil && inst.DeclaredRate.IsPositive()

		if !usable && inst.ActiveQuantity.IsPositive() {
			findings.MissingRateWithPosition = append(findings.MissingRateWithPosition, inst.InstrumentID)
		}

		records, err := r.payments.ListPayments(ctx, inst.InstrumentID, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("list payments for %s: %w", inst.InstrumentID, err)
		}
		payments := dedupe(records)

		if !usable && len(payments) > 0 {
			findings.HistoryWithoutRate = append(findings.HistoryWithoutRate, inst.InstrumentID)
		}

		if usable && source == recon.SourceExternal {
			if div, ok := r.checkDivergence(inst, payments, asOf); ok {
				findings.Divergences = append(findings.Divergences, div)
			}
		}

		if usable {
			if inst.RateUpdatedAt == nil || asOf.Sub(*inst.RateUpdatedAt) > r.staleness {
				findings.Stale = append(findings.Stale, StaleRate{InstrumentID: inst.InstrumentID, UpdatedAt: inst.RateUpdatedAt})
			}
		}
	}

	return findings, nil
}

// checkDivergence recomputes a TTM rate and compares it to the stored
// external one. The advisory threshold is tighter than the resolver's
// overwrite gate because this finding only warns.
func (r *Reporter) checkDivergence(inst storage.Instrument, payments []recon.Payment, asOf time.Time) (Divergence, bool) {
	dates := make([]time.Time, len(payments))
	for i, p := range payments {
		dates[i] = p.Date
	}
	freq := recon.DetectFrequency(dates, r.bands)
	det := recon.Annualize(payments, freq, asOf, r.windowDays)
	if !det.Rate.IsPositive() {
		return Divergence{}, false
	}

	gap := inst.DeclaredRate.Sub(det.Rate).Abs().Div(det.Rate)
	if gap.LessThanOrEqual(r.divergencePct) {
		return Divergence{}, false
	}
	return Divergence{
		InstrumentID: inst.InstrumentID,
		ExternalRate: *inst.DeclaredRate,
		ComputedRate: det.Rate,
		RelativeGap:  gap,
	}, true
}

func dedupe(records []storage.PaymentRecord) []recon.Payment {
	raw := make([]recon.Record, 0, len(records))
	for _, rec := range records {
		raw = append(raw, rec.ReconRecord())
	}
	return recon.Deduplicate(raw)
}

// Render writes the findings as a human-readable report.
func (f *Findings) Render(w io.Writer) {
	fmt.Fprintf(w, "audit as of %s\n\n", f.AsOf.UTC().Format(time.RFC3339))

	fmt.Fprintf(w, "active position, no usable rate (%d)\n", len(f.MissingRateWithPosition))
	for _, id := range f.MissingRateWithPosition {
		fmt.Fprintf(w, "  %s\n", id)
	}

	fmt.Fprintf(w, "\npayment history, no rate (%d)\n", len(f.HistoryWithoutRate))
	for _, id := range f.HistoryWithoutRate {
		fmt.Fprintf(w, "  %s\n", id)
	}

	fmt.Fprintf(w, "\nrate source breakdown\n")
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, source := range []recon.RateSource{recon.SourceNone, recon.SourceExternal, recon.SourceComputed, recon.SourceOverride} {
		if count, ok := f.SourceBreakdown[source]; ok {
			fmt.Fprintf(writer, "  %s\t%d\n", source, count)
		}
	}
	writer.Flush()

	fmt.Fprintf(w, "\nexternal vs computed divergence (%d)\n", len(f.Divergences))
	writer = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, div := range f.Divergences {
		fmt.Fprintf(writer, "  %s\texternal=%s\tcomputed=%s\tgap=%s%%\n",
			div.InstrumentID,
			div.ExternalRate.StringFixed(4),
			div.ComputedRate.StringFixed(4),
			div.RelativeGap.Mul(decimal.NewFromInt(100)).StringFixed(1),
		)
	}
	writer.Flush()

	fmt.Fprintf(w, "\nstale rates (%d)\n", len(f.Stale))
	for _, stale := range f.Stale {
		updated := "never"
		if stale.UpdatedAt != nil {
			updated = stale.UpdatedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "  %s\tlast refreshed %s\n", stale.InstrumentID, updated)
	}
}
