package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"dividend-recon/internal/recon"
)

// exportPoint is one payment date with the trailing annualized rate the
// pipeline would have produced on that date.
type exportPoint struct {
	Date     time.Time
	PerShare decimal.Decimal
	Trailing decimal.Decimal
	Basis    recon.Basis
}

// Export renders one instrument's deduplicated payment history, and the
// trailing annualized rate it implies, as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.Instrument == "" {
		return errors.New("--instrument is required")
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.From != nil && opts.To != nil && !opts.From.Before(*opts.To) {
		return errors.New("from must be before to")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	// Fails with ErrNotFound on an unknown id rather than exporting an
	// empty file.
	if _, err := store.GetInstrument(ctx, opts.Instrument); err != nil {
		return err
	}

	records, err := store.ListPayments(ctx, opts.Instrument, opts.From, opts.To)
	if err != nil {
		return err
	}

	raw := make([]recon.Record, 0, len(records))
	for _, rec := range records {
		raw = append(raw, rec.ReconRecord())
	}
	payments := recon.Deduplicate(raw)
	if len(payments) == 0 {
		a.Logger.Info().Str("instrument", opts.Instrument).Msg("no payments found for export window")
		return nil
	}

	points := a.buildPoints(payments)
	downsampled := downsamplePoints(points, opts.MaxPoints)
	a.Logger.Info().
		Str("instrument", opts.Instrument).
		Int("total", len(points)).
		Int("exported", len(downsampled)).
		Msg("exporting payments")

	if opts.CSVPath != "" {
		if err := writePointsCSV(opts.CSVPath, opts.Instrument, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if len(downsampled) < 2 {
			return errors.New("png export needs at least two payments")
		}
		if err := writePointsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

// buildPoints replays the annualization at every payment date so the chart
// shows how the computed rate evolved, not just the final figure.
func (a *App) buildPoints(payments []recon.Payment) []exportPoint {
	bands := recon.Bands{
		Monthly:       recon.Band{MinDays: a.Config.Recon.MonthlyBand.MinDays, MaxDays: a.Config.Recon.MonthlyBand.MaxDays},
		Quarterly:     recon.Band{MinDays: a.Config.Recon.QuarterlyBand.MinDays, MaxDays: a.Config.Recon.QuarterlyBand.MaxDays},
		SemiAnnual:    recon.Band{MinDays: a.Config.Recon.SemiAnnualBand.MinDays, MaxDays: a.Config.Recon.SemiAnnualBand.MaxDays},
		Annual:        recon.Band{MinDays: a.Config.Recon.AnnualBand.MinDays, MaxDays: a.Config.Recon.AnnualBand.MaxDays},
		ToleranceDays: a.Config.Recon.BandToleranceDays,
	}

	dates := make([]time.Time, len(payments))
	for i, p := range payments {
		dates[i] = p.Date
	}
	freq := recon.DetectFrequency(dates, bands)

	points := make([]exportPoint, 0, len(payments))
	for _, p := range payments {
		det := recon.Annualize(payments, freq, p.Date, a.Config.Recon.WindowDays)
		points = append(points, exportPoint{
			Date:     p.Date,
			PerShare: p.PerShare,
			Trailing: det.Rate,
			Basis:    det.Basis,
		})
	}
	return points
}

func downsamplePoints(points []exportPoint, max int) []exportPoint {
	if max <= 0 || len(points) <= max {
		return points
	}

	result := make([]exportPoint, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

func writePointsCSV(path, instrumentID string, points []exportPoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"instrument_id", "pay_date", "per_share_amount", "trailing_annualized_rate", "basis"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, point := range points {
		record := []string{
			instrumentID,
			point.Date.Format("2006-01-02"),
			point.PerShare.String(),
			point.Trailing.String(),
			string(point.Basis),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writePointsPNG(path string, points []exportPoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(points))
	perShare := make([]float64, len(points))
	trailing := make([]float64, len(points))

	for i, point := range points {
		x[i] = point.Date
		perShare[i] = point.PerShare.InexactFloat64()
		trailing[i] = point.Trailing.InexactFloat64()
	}

	rateFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.3f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Annualized rate",
			ValueFormatter: rateFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Per-share payment",
			ValueFormatter: rateFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Trailing annualized",
				XValues: x,
				YValues: trailing,
			},
			chart.TimeSeries{
				Name:    "Per-share payment",
				XValues: x,
				YValues: perShare,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
