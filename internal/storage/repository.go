package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"dividend-recon/internal/recon"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrNotFound indicates the requested instrument does not exist.
	ErrNotFound = errors.New("storage: instrument not found")
	// ErrConflict indicates a concurrent writer changed the rate tuple
	// between read and write.
	ErrConflict = errors.New("storage: rate tuple changed concurrently")
)

const (
	instrumentColumns = `instrument_id,
        symbol,
        exchange,
        active_quantity,
        declared_rate,
        per_payment_amount,
        payments_per_year,
        frequency,
        rate_source,
        rate_updated_at,
        created_at`

	listInstrumentsSQL = `SELECT ` + instrumentColumns + `
    FROM instruments
    ORDER BY instrument_id;`

	getInstrumentSQL = `SELECT ` + instrumentColumns + `
    FROM instruments
    WHERE instrument_id = $1;`

	listRecentRatesSQL = `SELECT ` + instrumentColumns + `
    FROM instruments
    ORDER BY rate_updated_at DESC NULLS LAST, instrument_id
    LIMIT $1;`

	updateRateSQL = `UPDATE instruments
    SET declared_rate      = $2,
        per_payment_amount = $3,
        payments_per_year  = $4,
        frequency          = $5,
        rate_source        = $6,
        rate_updated_at    = $7
    WHERE instrument_id = $1
      AND rate_updated_at IS NOT DISTINCT FROM $8;`

	listPaymentsSQL = `SELECT
        id,
        instrument_id,
        pay_date,
        net_amount,
        per_share_amount,
        quantity_at_payment,
        created_at
    FROM dividend_payments
    WHERE instrument_id = $1
      AND ($2::date IS NULL OR pay_date >= $2)
      AND ($3::date IS NULL OR pay_date <= $3)
    ORDER BY pay_date;`
)

// InstrumentStore defines read and atomic write access to instrument rate
// tuples.
type InstrumentStore interface {
	ListInstruments(ctx context.Context) ([]Instrument, error)
	GetInstrument(ctx context.Context, instrumentID string) (Instrument, error)
	ListRecentRates(ctx context.Context, limit int) ([]Instrument, error)
	// UpdateRate writes the whole rate tuple in one statement, guarded by a
	// compare-and-set on the previous rate_updated_at. Returns ErrConflict
	// when a concurrent writer got there first.
	UpdateRate(ctx context.Context, instrumentID string, tuple recon.RateTuple, updatedAt time.Time, expectedUpdatedAt *time.Time) error
}

// PaymentStore defines read-only access to ingested payment history.
type PaymentStore interface {
	ListPayments(ctx context.Context, instrumentID string, from, to *time.Time) ([]PaymentRecord, error)
}

// Store aggregates instrument and payment persistence over one pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// ListInstruments returns every tracked instrument.
func (s *Store) ListInstruments(ctx context.Context) ([]Instrument, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listInstrumentsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list instruments: %w", queryErr)
	}
	defer rows.Close()

	return collectInstruments(rows)
}

// GetInstrument reads one instrument's current state.
func (s *Store) GetInstrument(ctx context.Context, instrumentID string) (Instrument, error) {
	pool, err := s.getPool()
	if err != nil {
		return Instrument{}, err
	}

	rows, queryErr := pool.Query(ctx, getInstrumentSQL, instrumentID)
	if queryErr != nil {
		return Instrument{}, fmt.Errorf("get instrument: %w", queryErr)
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return Instrument{}, rows.Err()
		}
		return Instrument{}, ErrNotFound
	}
	return scanInstrument(rows)
}

// ListRecentRates lists instruments ordered by most recent rate update.
func (s *Store) ListRecentRates(ctx context.Context, limit int) ([]Instrument, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentRatesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent rates: %w", queryErr)
	}
	defer rows.Close()

	return collectInstruments(rows)
}

// UpdateRate persists the atomic rate tuple.
func (s *Store) UpdateRate(ctx context.Context, instrumentID string, tuple recon.RateTuple, updatedAt time.Time, expectedUpdatedAt *time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var expected interface{}
	if expectedUpdatedAt != nil {
		expected = *expectedUpdatedAt
	}

	cmdTag, execErr := pool.Exec(ctx, updateRateSQL,
		instrumentID,
		tuple.Rate.String(),
		nullableDecimal(tuple.PerPayment),
		nullableInt(tuple.PaymentsPerYear),
		string(tuple.Frequency),
		string(tuple.Source),
		updatedAt,
		expected,
	)
	if execErr != nil {
		return fmt.Errorf("update rate tuple: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// ListPayments returns payment rows for an instrument, ascending by pay
// date, optionally bounded by an inclusive date range.
func (s *Store) ListPayments(ctx context.Context, instrumentID string, from, to *time.Time) ([]PaymentRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var fromArg, toArg interface{}
	if from != nil {
		fromArg = *from
	}
	if to != nil {
		toArg = *to
	}

	rows, queryErr := pool.Query(ctx, listPaymentsSQL, instrumentID, fromArg, toArg)
	if queryErr != nil {
		return nil, fmt.Errorf("list payments: %w", queryErr)
	}
	defer rows.Close()

	records := make([]PaymentRecord, 0)
	for rows.Next() {
		rec, scanErr := scanPayment(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func collectInstruments(rows pgx.Rows) ([]Instrument, error) {
	instruments := make([]Instrument, 0)
	for rows.Next() {
		inst, scanErr := scanInstrument(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		instruments = append(instruments, inst)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return instruments, nil
}

func scanInstrument(rows pgx.Rows) (Instrument, error) {
	var (
		instrumentID  string
		symbol        string
		exchange      string
		quantityStr   string
		rateStr       sql.NullString
		perPaymentStr sql.NullString
		perYear       sql.NullInt32
		frequency     string
		rateSource    string
		rateUpdatedAt sql.NullTime
		createdAt     time.Time
	)

	if err := rows.Scan(
		&instrumentID,
		&symbol,
		&exchange,
		&quantityStr,
		&rateStr,
		&perPaymentStr,
		&perYear,
		&frequency,
		&rateSource,
		&rateUpdatedAt,
		&createdAt,
	); err != nil {
		return Instrument{}, err
	}

	quantity, err := decimal.NewFromString(quantityStr)
	if err != nil {
		return Instrument{}, fmt.Errorf("parse active quantity: %w", err)
	}

	freq, err := recon.ParseFrequency(frequency)
	if err != nil {
		return Instrument{}, err
	}
	source, err := recon.ParseRateSource(rateSource)
	if err != nil {
		return Instrument{}, err
	}

	inst := Instrument{
		InstrumentID:   instrumentID,
		Symbol:         symbol,
		Exchange:       exchange,
		ActiveQuantity: quantity,
		Frequency:      freq,
		RateSource:     source,
		CreatedAt:      createdAt,
	}

	if rateStr.Valid {
		rate, convErr := decimal.NewFromString(rateStr.String)
		if convErr != nil {
			return Instrument{}, fmt.Errorf("parse declared rate: %w", convErr)
		}
		inst.DeclaredRate = &rate
	}
	if perPaymentStr.Valid {
		perPayment, convErr := decimal.NewFromString(perPaymentStr.String)
		if convErr != nil {
			return Instrument{}, fmt.Errorf("parse per-payment amount: %w", convErr)
		}
		inst.PerPayment = &perPayment
	}
	if perYear.Valid {
		value := int(perYear.Int32)
		inst.PaymentsPerYear = &value
	}
	if rateUpdatedAt.Valid {
		value := rateUpdatedAt.Time
		inst.RateUpdatedAt = &value
	}

	return inst, nil
}

func scanPayment(rows pgx.Rows) (PaymentRecord, error) {
	var (
		id           int64
		instrumentID string
		payDate      time.Time
		netStr       string
		perShareStr  sql.NullString
		quantityStr  sql.NullString
		createdAt    time.Time
	)

	if err := rows.Scan(
		&id,
		&instrumentID,
		&payDate,
		&netStr,
		&perShareStr,
		&quantityStr,
		&createdAt,
	); err != nil {
		return PaymentRecord{}, err
	}

	net, err := decimal.NewFromString(netStr)
	if err != nil {
		return PaymentRecord{}, fmt.Errorf("parse net amount: %w", err)
	}

	rec := PaymentRecord{
		ID:           id,
		InstrumentID: instrumentID,
		PayDate:      payDate,
		NetAmount:    net,
		CreatedAt:    createdAt,
	}

	if perShareStr.Valid {
		perShare, convErr := decimal.NewFromString(perShareStr.String)
		if convErr != nil {
			return PaymentRecord{}, fmt.Errorf("parse per-share amount: %w", convErr)
		}
		rec.PerShareAmount = perShare
	}
	if quantityStr.Valid {
		quantity, convErr := decimal.NewFromString(quantityStr.String)
		if convErr != nil {
			return PaymentRecord{}, fmt.Errorf("parse quantity: %w", convErr)
		}
		rec.QuantityAtPayment = quantity
	}

	return rec, nil
}

func nullableDecimal(d decimal.Decimal) interface{} {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func nullableInt(v int) interface{} {
	if v == 0 {
		return nil
	}
	return v
}

var _ InstrumentStore = (*Store)(nil)
var _ PaymentStore = (*Store)(nil)
