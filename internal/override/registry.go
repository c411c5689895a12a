// Package override holds the hand-curated configuration that outranks the
// automatic reconciliation pipeline: the declared-rate override registry and
// the external-refresh blacklist. Both are loaded once at startup, validated
// fatally, and read-only afterwards, so they are safe to share across
// workers without locking.
package override

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"dividend-recon/internal/recon"
)

// roundingTolerance bounds the accepted difference between a hand-authored
// declared_rate and per_payment_amount x payments_per_year.
var roundingTolerance = decimal.NewFromFloat(0.0001)

// Entry is one validated override: the exact rate tuple an instrument must
// carry, immune to automatic recomputation.
type Entry struct {
	InstrumentID    string
	PerPayment      decimal.Decimal
	PaymentsPerYear int
	DeclaredRate    decimal.Decimal
	Frequency       recon.Frequency
}

// Tuple returns the entry as the rate tuple the resolver persists verbatim.
func (e Entry) Tuple() recon.RateTuple {
	return recon.RateTuple{
		Rate:            e.DeclaredRate,
		PerPayment:      e.PerPayment,
		PaymentsPerYear: e.PaymentsPerYear,
		Frequency:       e.Frequency,
		Source:          recon.SourceOverride,
	}
}

// Registry is the read-only instrument -> override lookup.
type Registry struct {
	version int
	entries map[string]Entry
}

// Get looks up the override for an instrument.
func (r *Registry) Get(instrumentID string) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	entry, ok := r.entries[instrumentID]
	return entry, ok
}

// Version reports the configuration version of the loaded file.
func (r *Registry) Version() int {
	if r == nil {
		return 0
	}
	return r.version
}

// Len reports the number of loaded overrides.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

type registryFile struct {
	Version int            `yaml:"version"`
	Entries []registryItem `yaml:"entries"`
}

// Amounts are YAML strings, not floats, so the file round-trips exact
// decimals.
type registryItem struct {
	InstrumentID    string `yaml:"instrument_id"`
	PerPayment      string `yaml:"per_payment_amount"`
	PaymentsPerYear int    `yaml:"payments_per_year"`
	DeclaredRate    string `yaml:"declared_rate"`
	Frequency       string `yaml:"frequency"`
}

// LoadRegistry reads and validates the override file. Any violation is a
// configuration error and must abort the run before persistence: a silent
// mismatch here corrupts every consumer that trusts declared_rate. An empty
// path or absent file yields an empty registry; only a present, malformed
// file is fatal.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return &Registry{entries: map[string]Entry{}}, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Registry{entries: map[string]Entry{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read override registry: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse override registry: %w", err)
	}

	entries := make(map[string]Entry, len(file.Entries))
	for i, item := range file.Entries {
		entry, err := validateItem(item)
		if err != nil {
			return nil, fmt.Errorf("override registry entry %d (%s): %w", i, item.InstrumentID, err)
		}
		if _, dup := entries[entry.InstrumentID]; dup {
			return nil, fmt.Errorf("override registry entry %d: duplicate instrument %s", i, entry.InstrumentID)
		}
		entries[entry.InstrumentID] = entry
	}

	return &Registry{version: file.Version, entries: entries}, nil
}

func validateItem(item registryItem) (Entry, error) {
	if item.InstrumentID == "" {
		return Entry{}, fmt.Errorf("instrument_id is required")
	}

	perPayment, err := decimal.NewFromString(item.PerPayment)
	if err != nil {
		return Entry{}, fmt.Errorf("parse per_payment_amount: %w", err)
	}
	if !perPayment.IsPositive() {
		return Entry{}, fmt.Errorf("per_payment_amount must be positive")
	}

	if item.PaymentsPerYear < 1 {
		return Entry{}, fmt.Errorf("payments_per_year must be at least 1")
	}

	freq, err := recon.ParseFrequency(item.Frequency)
	if err != nil {
		return Entry{}, err
	}

	computed := perPayment.Mul(decimal.NewFromInt(int64(item.PaymentsPerYear)))
	declared := computed
	if item.DeclaredRate != "" {
		declared, err = decimal.NewFromString(item.DeclaredRate)
		if err != nil {
			return Entry{}, fmt.Errorf("parse declared_rate: %w", err)
		}
		if declared.Sub(computed).Abs().GreaterThan(roundingTolerance) {
			return Entry{}, fmt.Errorf("declared_rate %s does not equal per_payment_amount x payments_per_year = %s", declared, computed)
		}
	}

	return Entry{
		InstrumentID:    item.InstrumentID,
		PerPayment:      perPayment,
		PaymentsPerYear: item.PaymentsPerYear,
		DeclaredRate:    declared,
		Frequency:       freq,
	}, nil
}
