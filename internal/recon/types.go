package recon

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Frequency classifies a payment cadence.
type Frequency string

const (
	FreqMonthly    Frequency = "monthly"
	FreqQuarterly  Frequency = "quarterly"
	FreqSemiAnnual Frequency = "semi_annual"
	FreqAnnual     Frequency = "annual"
	FreqIrregular  Frequency = "irregular"
	FreqUnknown    Frequency = "unknown"
)

// PaymentsPerYear returns the expected payment count for one year.
// Irregular and unknown cadences have no expectation and return zero.
func (f Frequency) PaymentsPerYear() int {
	switch f {
	case FreqMonthly:
		return 12
	case FreqQuarterly:
		return 4
	case FreqSemiAnnual:
		return 2
	case FreqAnnual:
		return 1
	default:
		return 0
	}
}

// ParseFrequency validates a stored or provider-supplied frequency label.
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case FreqMonthly, FreqQuarterly, FreqSemiAnnual, FreqAnnual, FreqIrregular, FreqUnknown:
		return Frequency(s), nil
	}
	return FreqUnknown, fmt.Errorf("unknown frequency %q", s)
}

// RateSource records which mechanism last set an instrument's declared rate.
type RateSource string

const (
	SourceNone     RateSource = "none"
	SourceExternal RateSource = "external_quote"
	SourceComputed RateSource = "computed"
	SourceOverride RateSource = "declared_override"
)

// ParseRateSource validates a stored provenance tag. An empty tag maps to
// SourceNone so legacy rows without provenance resolve like fresh instruments.
func ParseRateSource(s string) (RateSource, error) {
	if s == "" {
		return SourceNone, nil
	}
	switch RateSource(s) {
	case SourceNone, SourceExternal, SourceComputed, SourceOverride:
		return RateSource(s), nil
	}
	return SourceNone, fmt.Errorf("unknown rate source %q", s)
}

// Record is one raw payment row as ingested from broker exports. PerShare may
// be zero when the source only reported net cash and position size.
type Record struct {
	Date     time.Time
	Net      decimal.Decimal
	PerShare decimal.Decimal
	Quantity decimal.Decimal
}

// Payment is one deduplicated economic payment.
type Payment struct {
	Date     time.Time
	PerShare decimal.Decimal
}

// Basis tags how a candidate rate was derived.
type Basis string

const (
	BasisTrailingWindow Basis = "trailing_window"
	BasisExtrapolated   Basis = "extrapolated_short_window"
	BasisZero           Basis = "zero"
)

// RateDetermination is the transient result of annualizing one instrument's
// payment history in one run.
type RateDetermination struct {
	Rate         decimal.Decimal
	Frequency    Frequency
	Basis        Basis
	PaymentCount int
}

// RateTuple is the atomic set of rate fields persisted per instrument. The
// six columns in storage always change together; this is the in-memory shape.
type RateTuple struct {
	Rate            decimal.Decimal
	PerPayment      decimal.Decimal
	PaymentsPerYear int
	Frequency       Frequency
	Source          RateSource
}
