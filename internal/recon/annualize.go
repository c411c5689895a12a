package recon

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultWindowDays is the nominal trailing window for annualization.
const DefaultWindowDays = 365

// Annualize turns a deduplicated payment sequence into an annualized
// per-share candidate rate.
//
// The primary window trails asOf by windowDays. When it holds at least the
// expected payment count for the cadence, the rate is the plain window sum.
// A shorter-than-expected history (newly listed instrument, payer that
// started mid-year) extrapolates the average payment to a full cycle instead
// of undercounting. An empty trailing window re-anchors on the most recent
// payment date, so a semi-annual payer observed mid-cycle still annualizes
// from its last complete window. Irregular and unknown cadences have
// expected count zero, which disables extrapolation: the rate is the raw
// window sum with no scaling.
//
// asOf is an explicit parameter; this function never reads the clock.
func Annualize(payments []Payment, freq Frequency, asOf time.Time, windowDays int) RateDetermination {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	inWindow := window(payments, asOf, windowDays)
	if len(inWindow) == 0 && len(payments) > 0 {
		anchor := payments[len(payments)-1].Date
		inWindow = window(payments, anchor, windowDays)
	}
	if len(inWindow) == 0 {
		return RateDetermination{Rate: decimal.Zero, Frequency: freq, Basis: BasisZero}
	}

	sum := decimal.Zero
	for _, p := range inWindow {
		sum = sum.Add(p.PerShare)
	}

	expected := freq.PaymentsPerYear()
	count := len(inWindow)

	if expected > 0 && count < expected {
		avg := sum.Div(decimal.NewFromInt(int64(count)))
		return RateDetermination{
			Rate:         avg.Mul(decimal.NewFromInt(int64(expected))),
			Frequency:    freq,
			Basis:        BasisExtrapolated,
			PaymentCount: count,
		}
	}

	return RateDetermination{
		Rate:         sum,
		Frequency:    freq,
		Basis:        BasisTrailingWindow,
		PaymentCount: count,
	}
}

// window returns payments with date in (end-windowDays, end]. The input is
// already chronological per Deduplicate.
func window(payments []Payment, end time.Time, windowDays int) []Payment {
	start := end.AddDate(0, 0, -windowDays)
	out := make([]Payment, 0, len(payments))
	for _, p := range payments {
		if p.Date.After(start) && !p.Date.After(end) {
			out = append(out, p)
		}
	}
	return out
}
