package recon

import (
	"github.com/shopspring/decimal"
)

// Divergence classifies the relationship between a stored rate and a freshly
// computed candidate.
type Divergence string

const (
	NoExistingRate     Divergence = "no_existing_rate"
	DivergesMaterially Divergence = "diverges_materially"
	WithinTolerance    Divergence = "within_tolerance"
)

// DefaultDivergenceRatio is the resolver's overwrite gate. The 2x band is
// deliberately wide: it catches unit- and currency-mismatch-class errors
// (a monthly amount reported as annual) rather than measurement noise.
var DefaultDivergenceRatio = decimal.NewFromInt(2)

// ClassifyDivergence compares current against candidate using a symmetric
// ratio band. A missing or zero current rate is its own class. The caller
// guarantees candidate is strictly positive. The band bounds are exclusive:
// a ratio of exactly maxRatio (or its inverse) is within tolerance.
func ClassifyDivergence(current, candidate, maxRatio decimal.Decimal) Divergence {
	if current.IsZero() {
		return NoExistingRate
	}
	ratio := current.Div(candidate)
	if ratio.GreaterThan(maxRatio) || ratio.LessThan(decimal.NewFromInt(1).Div(maxRatio)) {
		return DivergesMaterially
	}
	return WithinTolerance
}
