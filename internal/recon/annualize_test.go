package recon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func pay(y int, m time.Month, d int, amount float64) Payment {
	return Payment{Date: day(y, m, d), PerShare: decimal.NewFromFloat(amount)}
}

func TestAnnualizeFullQuarterlyWindow(t *testing.T) {
	payments := []Payment{
		pay(2024, time.January, 15, 0.25),
		pay(2024, time.April, 15, 0.25),
		pay(2024, time.July, 15, 0.25),
		pay(2024, time.October, 15, 0.25),
	}

	det := Annualize(payments, FreqQuarterly, day(2024, time.November, 1), DefaultWindowDays)
	require.True(t, det.Rate.Equal(decimal.NewFromFloat(1.00)), "rate = %s", det.Rate)
	require.Equal(t, BasisTrailingWindow, det.Basis)
	require.Equal(t, 4, det.PaymentCount)
	require.Equal(t, FreqQuarterly, det.Frequency)
}

func TestAnnualizeExtrapolatesShortMonthlyHistory(t *testing.T) {
	payments := []Payment{
		pay(2024, time.September, 10, 0.10),
		pay(2024, time.October, 10, 0.10),
	}

	det := Annualize(payments, FreqMonthly, day(2024, time.November, 1), DefaultWindowDays)
	require.True(t, det.Rate.Equal(decimal.NewFromFloat(1.20)), "rate = %s", det.Rate)
	require.Equal(t, BasisExtrapolated, det.Basis)
	require.Equal(t, 2, det.PaymentCount)
}

func TestAnnualizeReanchorsOnStaleHistory(t *testing.T) {
	// No payments in the trailing year as of 2026; the window re-anchors on
	// the most recent payment and annualizes the 2024 history.
	payments := []Payment{
		pay(2024, time.April, 15, 0.50),
		pay(2024, time.October, 15, 0.50),
	}

	det := Annualize(payments, FreqSemiAnnual, day(2026, time.March, 1), DefaultWindowDays)
	require.True(t, det.Rate.Equal(decimal.NewFromFloat(1.00)), "rate = %s", det.Rate)
	require.Equal(t, BasisTrailingWindow, det.Basis)
	require.Equal(t, 2, det.PaymentCount)
}

func TestAnnualizeNoHistory(t *testing.T) {
	det := Annualize(nil, FreqUnknown, day(2024, time.November, 1), DefaultWindowDays)
	require.True(t, det.Rate.IsZero())
	require.Equal(t, BasisZero, det.Basis)
	require.Equal(t, 0, det.PaymentCount)
}

func TestAnnualizeIrregularDisablesExtrapolation(t *testing.T) {
	payments := []Payment{
		pay(2024, time.February, 1, 0.40),
		pay(2024, time.August, 20, 0.15),
	}

	det := Annualize(payments, FreqIrregular, day(2024, time.November, 1), DefaultWindowDays)
	require.True(t, det.Rate.Equal(decimal.NewFromFloat(0.55)), "rate = %s", det.Rate)
	require.Equal(t, BasisTrailingWindow, det.Basis)
}

func TestAnnualizeExcludesPaymentsAfterAsOf(t *testing.T) {
	payments := []Payment{
		pay(2024, time.April, 15, 0.25),
		pay(2024, time.July, 15, 0.25),
		pay(2024, time.October, 15, 0.25),
	}

	det := Annualize(payments, FreqQuarterly, day(2024, time.May, 1), DefaultWindowDays)
	require.Equal(t, 1, det.PaymentCount)
	require.Equal(t, BasisExtrapolated, det.Basis)
	require.True(t, det.Rate.Equal(decimal.NewFromFloat(1.00)), "rate = %s", det.Rate)
}
