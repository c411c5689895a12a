package recon

import (
	"sort"
	"time"
)

// Band is an inclusive range of day gaps mapped to one cadence label.
type Band struct {
	MinDays int
	MaxDays int
}

func (b Band) contains(days float64) bool {
	return days >= float64(b.MinDays) && days <= float64(b.MaxDays)
}

// Bands holds the day-gap classification boundaries. These are configuration,
// not invariants; the defaults follow observed ex-date drift around calendar
// anniversaries.
type Bands struct {
	Monthly    Band
	Quarterly  Band
	SemiAnnual Band
	Annual     Band
	// ToleranceDays bounds the spread between the shortest and longest gap.
	// A wider spread means the schedule is not on a fixed cycle and the
	// sequence classifies as irregular rather than force-fit to a band.
	ToleranceDays int
}

// DefaultBands returns the standard band boundaries.
func DefaultBands() Bands {
	return Bands{
		Monthly:       Band{MinDays: 28, MaxDays: 35},
		Quarterly:     Band{MinDays: 80, MaxDays: 100},
		SemiAnnual:    Band{MinDays: 170, MaxDays: 190},
		Annual:        Band{MinDays: 350, MaxDays: 380},
		ToleranceDays: 45,
	}
}

// DetectFrequency infers a payment cadence from chronological, distinct
// payment dates. Fewer than two dates carry no cadence signal and return
// unknown. The median gap in days picks the band; the bands are disjoint, so
// at most one label matches and borderline gaps resolve deterministically.
func DetectFrequency(dates []time.Time, bands Bands) Frequency {
	if len(dates) < 2 {
		return FreqUnknown
	}

	gaps := make([]float64, 0, len(dates)-1)
	for i := 1; i < len(dates); i++ {
		gaps = append(gaps, dates[i].Sub(dates[i-1]).Hours()/24)
	}
	sort.Float64s(gaps)

	if bands.ToleranceDays > 0 && gaps[len(gaps)-1]-gaps[0] > float64(bands.ToleranceDays) {
		return FreqIrregular
	}

	median := medianGap(gaps)
	switch {
	case bands.Monthly.contains(median):
		return FreqMonthly
	case bands.Quarterly.contains(median):
		return FreqQuarterly
	case bands.SemiAnnual.contains(median):
		return FreqSemiAnnual
	case bands.Annual.contains(median):
		return FreqAnnual
	default:
		return FreqIrregular
	}
}

func medianGap(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
