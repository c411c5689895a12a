package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"dividend-recon/internal/recon"
)

// Instrument is the persisted rate state for one tracked instrument. The
// rate columns (DeclaredRate through RateUpdatedAt) form a single atomic
// tuple: they are only ever written together.
type Instrument struct {
	InstrumentID    string
	Symbol          string
	Exchange        string
	ActiveQuantity  decimal.Decimal
	DeclaredRate    *decimal.Decimal
	PerPayment      *decimal.Decimal
	PaymentsPerYear *int
	Frequency       recon.Frequency
	RateSource      recon.RateSource
	RateUpdatedAt   *time.Time
	CreatedAt       time.Time
}

// RateTuple converts the nullable columns to the resolver's value form.
// A NULL rate maps to zero, which the resolver treats as no existing rate.
func (i Instrument) RateTuple() recon.RateTuple {
	tuple := recon.RateTuple{
		Frequency: i.Frequency,
		Source:    i.RateSource,
	}
	if tuple.Frequency == "" {
		tuple.Frequency = recon.FreqUnknown
	}
	if tuple.Source == "" {
		tuple.Source = recon.SourceNone
	}
	if i.DeclaredRate != nil {
		tuple.Rate = *i.DeclaredRate
	}
	if i.PerPayment != nil {
		tuple.PerPayment = *i.PerPayment
	}
	if i.PaymentsPerYear != nil {
		tuple.PaymentsPerYear = *i.PaymentsPerYear
	}
	return tuple
}

// PaymentRecord is one row of ingested dividend payment history. Rows are
// immutable; this engine only reads them.
type PaymentRecord struct {
	ID                int64
	InstrumentID      string
	PayDate           time.Time
	NetAmount         decimal.Decimal
	PerShareAmount    decimal.Decimal
	QuantityAtPayment decimal.Decimal
	CreatedAt         time.Time
}

// ReconRecord converts a stored row into the reconciliation input form.
func (p PaymentRecord) ReconRecord() recon.Record {
	return recon.Record{
		Date:     p.PayDate,
		Net:      p.NetAmount,
		PerShare: p.PerShareAmount,
		Quantity: p.QuantityAtPayment,
	}
}
