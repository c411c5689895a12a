package audit

import (
	"bytes"
	"context"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"dividend-recon/internal/config"
	"dividend-recon/internal/recon"
	"dividend-recon/internal/storage"
)

type fakeStore struct {
	instruments []storage.Instrument
	payments    map[string][]storage.PaymentRecord
}

func (f *fakeStore) ListInstruments(ctx context.Context) ([]storage.Instrument, error) {
	out := append([]storage.Instrument(nil), f.instruments...)
	sort.Slice(out, func(i, j int) bool { return out[i].InstrumentID < out[j].InstrumentID })
	return out, nil
}

func (f *fakeStore) GetInstrument(ctx context.Context, id string) (storage.Instrument, error) {
	for _, inst := range f.instruments {
		if inst.InstrumentID == id {
			return inst, nil
		}
	}
	return storage.Instrument{}, storage.ErrNotFound
}

func (f *fakeStore) ListRecentRates(ctx context.Context, limit int) ([]storage.Instrument, error) {
	return f.ListInstruments(ctx)
}

func (f *fakeStore) UpdateRate(ctx context.Context, id string, tuple recon.RateTuple, updatedAt time.Time, expected *time.Time) error {
	panic("audit must never write")
}

func (f *fakeStore) ListPayments(ctx context.Context, id string, from, to *time.Time) ([]storage.PaymentRecord, error) {
	return f.payments[id], nil
}

func testConfig() *config.Config {
	return &config.Config{
		Recon: config.ReconConfig{
			WindowDays:        365,
			DivergenceRatio:   2.0,
			WriteRetries:      3,
			BandToleranceDays: 45,
			MonthlyBand:       config.BandConfig{MinDays: 28, MaxDays: 35},
			QuarterlyBand:     config.BandConfig{MinDays: 80, MaxDays: 100},
			SemiAnnualBand:    config.BandConfig{MinDays: 170, MaxDays: 190},
			AnnualBand:        config.BandConfig{MinDays: 350, MaxDays: 380},
		},
		Audit: config.AuditConfig{
			DivergencePct: 0.30,
			Staleness:     90 * 24 * time.Hour,
		},
	}
}

func quarterlyPayments(id string, perShare float64) []storage.PaymentRecord {
	months := []time.Month{time.January, time.April, time.July, time.October}
	records := make([]storage.PaymentRecord, 0, len(months))
	for i, m := range months {
		records = append(records, storage.PaymentRecord{
			ID:             int64(i + 1),
			InstrumentID:   id,
			PayDate:        time.Date(2024, m, 15, 0, 0, 0, 0, time.UTC),
			NetAmount:      decimal.NewFromFloat(perShare * 100),
			PerShareAmount: decimal.NewFromFloat(perShare),
		})
	}
	return records
}

func decPtr(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestAuditFindings(t *testing.T) {
	asOf := time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)
	fresh := asOf.Add(-24 * time.Hour)
	old := asOf.Add(-120 * 24 * time.Hour)

	store := &fakeStore{
		instruments: []storage.Instrument{
			// Held but no rate at all: finding (a).
			{InstrumentID: "A", ActiveQuantity: decimal.NewFromInt(100), RateSource: recon.SourceNone, Frequency: recon.FreqUnknown},
			// Has history but no rate: finding (b).
			{InstrumentID: "B", RateSource: recon.SourceNone, Frequency: recon.FreqUnknown},
			// External rate far from computed 1.00: finding (d).
			{InstrumentID: "C", DeclaredRate: decPtr(1.50), RateSource: recon.SourceExternal, Frequency: recon.FreqQuarterly, RateUpdatedAt: timePtr(fresh)},
			// External rate close to computed 1.00: not in (d).
			{InstrumentID: "D", DeclaredRate: decPtr(1.10), RateSource: recon.SourceExternal, Frequency: recon.FreqQuarterly, RateUpdatedAt: timePtr(fresh)},
			// Computed but not refreshed in 120 days: finding (e).
			{InstrumentID: "E", DeclaredRate: decPtr(2.00), RateSource: recon.SourceComputed, Frequency: recon.FreqQuarterly, RateUpdatedAt: timePtr(old)},
		},
		payments: map[string][]storage.PaymentRecord{
			"B": quarterlyPayments("B", 0.10),
			"C": quarterlyPayments("C", 0.25),
			"D": quarterlyPayments("D", 0.25),
		},
	}

	reporter := New(testConfig(), store, store, zerolog.Nop())
	findings, err := reporter.Run(context.Background(), asOf)
	require.NoError(t, err)

	require.Equal(t, []string{"A"}, findings.MissingRateWithPosition)
	require.Equal(t, []string{"B"}, findings.HistoryWithoutRate)

	require.Equal(t, 2, findings.SourceBreakdown[recon.SourceNone])
	require.Equal(t, 2, findings.SourceBreakdown[recon.SourceExternal])
	require.Equal(t, 1, findings.SourceBreakdown[recon.SourceComputed])

	require.Len(t, findings.Divergences, 1)
	require.Equal(t, "C", findings.Divergences[0].InstrumentID)
	require.True(t, findings.Divergences[0].ComputedRate.Equal(decimal.NewFromFloat(1.00)))

	require.Len(t, findings.Stale, 1)
	require.Equal(t, "E", findings.Stale[0].InstrumentID)
}

func TestAuditRenderIsReadable(t *testing.T) {
	asOf := time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)
	findings := &Findings{
		AsOf:                    asOf,
		MissingRateWithPosition: []string{"A"},
		SourceBreakdown:         map[recon.RateSource]int{recon.SourceNone: 1},
		Stale:                   []StaleRate{{InstrumentID: "B"}},
	}

	var out bytes.Buffer
	findings.Render(&out)

	text := out.String()
	require.Contains(t, text, "active position, no usable rate (1)")
	require.Contains(t, text, "rate source breakdown")
	require.Contains(t, text, "last refreshed never")
}
