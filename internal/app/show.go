package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// Show prints the most recently updated instrument rates.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	instruments, err := store.ListRecentRates(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(instruments) == 0 {
		fmt.Fprintln(os.Stdout, "no instruments found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Instrument\tSymbol\tRate\tPer Payment\tPer Year\tFrequency\tSource\tUpdated (UTC)")

	for _, inst := range instruments {
		rate, perPayment, perYear := "-", "-", "-"
		if inst.DeclaredRate != nil {
			rate = formatDecimal(*inst.DeclaredRate, 4)
		}
		if inst.PerPayment != nil {
			perPayment = formatDecimal(*inst.PerPayment, 4)
		}
		if inst.PaymentsPerYear != nil {
			perYear = fmt.Sprintf("%d", *inst.PaymentsPerYear)
		}
		updated := "never"
		if inst.RateUpdatedAt != nil {
			updated = inst.RateUpdatedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			inst.InstrumentID,
			inst.Symbol,
			rate,
			perPayment,
			perYear,
			inst.Frequency,
			inst.RateSource,
			updated,
		)
	}

	writer.Flush()
	return nil
}
