package recon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDeduplicateCollapsesGrossAndTaxLegs(t *testing.T) {
	payDate := day(2024, time.March, 15)
	records := []Record{
		{Date: payDate, Net: decimal.NewFromFloat(100), PerShare: decimal.NewFromFloat(0.25)},
		{Date: payDate, Net: decimal.NewFromFloat(85), PerShare: decimal.NewFromFloat(0.25)},
	}

	got := Deduplicate(records)
	require.Len(t, got, 1)
	require.True(t, got[0].PerShare.Equal(decimal.NewFromFloat(0.25)))
	require.True(t, got[0].Date.Equal(payDate))
}

func TestDeduplicateDropsZeroAmountRecords(t *testing.T) {
	records := []Record{
		{Date: day(2024, time.March, 15), PerShare: decimal.Zero},
		{Date: day(2024, time.June, 15), PerShare: decimal.NewFromFloat(0.30)},
	}

	got := Deduplicate(records)
	require.Len(t, got, 1)
	require.True(t, got[0].Date.Equal(day(2024, time.June, 15)))
}

func TestDeduplicateDerivesPerShareFromNetAndQuantity(t *testing.T) {
	records := []Record{
		{Date: day(2024, time.March, 15), Net: decimal.NewFromFloat(50), Quantity: decimal.NewFromInt(200)},
	}

	got := Deduplicate(records)
	require.Len(t, got, 1)
	require.True(t, got[0].PerShare.Equal(decimal.NewFromFloat(0.25)))
}

func TestDeduplicateSkipsUnusableRows(t *testing.T) {
	records := []Record{
		{Date: time.Time{}, PerShare: decimal.NewFromFloat(0.25)},
		{Date: day(2024, time.March, 15), Net: decimal.NewFromFloat(50)}, // no quantity, no per-share
		{Date: day(2024, time.June, 15), PerShare: decimal.NewFromFloat(-0.10)},
	}
	require.Empty(t, Deduplicate(records))
}

func TestDeduplicateIsOrderIndependent(t *testing.T) {
	records := []Record{
		{Date: day(2024, time.September, 15), PerShare: decimal.NewFromFloat(0.30)},
		{Date: day(2024, time.March, 15), PerShare: decimal.NewFromFloat(0.25)},
		{Date: day(2024, time.March, 15), PerShare: decimal.NewFromFloat(0.25)},
		{Date: day(2024, time.June, 15), PerShare: decimal.NewFromFloat(0.25)},
	}
	reversed := []Record{records[3], records[2], records[1], records[0]}

	a := Deduplicate(records)
	b := Deduplicate(reversed)

	require.Len(t, a, 3)
	require.Equal(t, len(a), len(b))
	for i := range a {
		require.True(t, a[i].Date.Equal(b[i].Date))
		require.True(t, a[i].PerShare.Equal(b[i].PerShare))
	}
	require.True(t, a[0].Date.Before(a[1].Date))
	require.True(t, a[1].Date.Before(a[2].Date))
}

func TestDeduplicateKeepsDistinctAmountsOnSameDate(t *testing.T) {
	payDate := day(2024, time.March, 15)
	records := []Record{
		{Date: payDate, PerShare: decimal.NewFromFloat(0.25)},
		{Date: payDate, PerShare: decimal.NewFromFloat(0.10)}, // special dividend same day
	}

	got := Deduplicate(records)
	require.Len(t, got, 2)
	require.True(t, got[0].PerShare.LessThan(got[1].PerShare))
}
