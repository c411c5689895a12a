package recon

import (
	"sort"
)

// Deduplicate collapses raw payment rows into one entry per economic payment.
//
// Broker exports frequently carry the same payment twice: a gross leg and a
// withholding-tax leg, or a reissue under a new internal identifier. After
// per-share normalization those legs resolve to the same (date, per-share)
// pair, which is the dedup key. Zero-amount rows are corrections or
// placeholders and are dropped, as are rows missing a usable date or amount;
// a bad row never aborts the instrument.
//
// The result is sorted by (date, per-share), so the output is a pure function
// of the input multiset regardless of input ordering.
func Deduplicate(records []Record) []Payment {
	payments := make([]Payment, 0, len(records))
	for _, rec := range records {
		if rec.Date.IsZero() {
			continue
		}
		perShare := rec.PerShare
		if perShare.IsZero() && rec.Quantity.IsPositive() {
			perShare = rec.Net.Div(rec.Quantity)
		}
		if !perShare.IsPositive() {
			continue
		}
		payments = append(payments, Payment{Date: rec.Date, PerShare: perShare})
	}

	sort.Slice(payments, func(i, j int) bool {
		if !payments[i].Date.Equal(payments[j].Date) {
			return payments[i].Date.Before(payments[j].Date)
		}
		return payments[i].PerShare.LessThan(payments[j].PerShare)
	})

	deduped := payments[:0]
	for _, p := range payments {
		if len(deduped) > 0 {
			last := deduped[len(deduped)-1]
			if last.Date.Equal(p.Date) && last.PerShare.Equal(p.PerShare) {
				continue
			}
		}
		deduped = append(deduped, p)
	}
	return deduped
}
