package quote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dividend-recon/internal/recon"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestFetchDeclaredRateMissingConfig(t *testing.T) {
	c := NewClient(Options{}, noopLogger())
	if _, err := c.FetchDeclaredRate(context.Background(), "ABC", "NYSE"); err == nil {
		t.Fatal("missing base url should return an error")
	}

	c = NewClient(Options{BaseURL: "http://localhost"}, noopLogger())
	if _, err := c.FetchDeclaredRate(context.Background(), "", "NYSE"); err == nil {
		t.Fatal("missing symbol should return an error")
	}
}

func TestFetchDeclaredRateHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"errorType": "not_found", "description": "unknown ticker"})
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, Timeout: time.Second, MinCallInterval: time.Millisecond}, noopLogger())
	if _, err := c.FetchDeclaredRate(context.Background(), "NOPE", "NYSE"); err == nil {
		t.Fatal("HTTP 404 should return an error")
	}
}

func TestFetchDeclaredRateSuccess(t *testing.T) {
	var requestedPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"symbol":            "KESKOB.HE",
			"dividendRate":      1.14,
			"dividendFrequency": "quarterly",
			"exDividendDate":    "2025-03-20",
			"payoutRatio":       0.82,
			"currency":          "EUR",
		})
	}))
	defer srv.Close()

	overrides := map[string]string{"KEK@HEX": "KESKOB.HE"}
	c := NewClient(Options{BaseURL: srv.URL, Timeout: time.Second, MinCallInterval: time.Millisecond, SymbolOverrides: overrides}, noopLogger())

	q, err := c.FetchDeclaredRate(context.Background(), "KEK", "HEX")
	if err != nil {
		t.Fatalf("successful response should not error: %v", err)
	}
	if requestedPath != "/profile/KESKOB.HE" {
		t.Fatalf("symbol override not applied, requested %s", requestedPath)
	}
	if !q.Rate.Equal(decimal.NewFromFloat(1.14)) {
		t.Fatalf("expected rate 1.14, got %s", q.Rate)
	}
	if q.Frequency != recon.FreqQuarterly {
		t.Fatalf("expected quarterly frequency, got %s", q.Frequency)
	}
	if q.ExDate.IsZero() {
		t.Fatal("expected ex-date to be parsed")
	}
}

func TestFetchDeclaredRateNonPositiveRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"dividendRate": 0})
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, Timeout: time.Second, MinCallInterval: time.Millisecond}, noopLogger())
	if _, err := c.FetchDeclaredRate(context.Background(), "ABC", "NYSE"); err == nil {
		t.Fatal("zero rate should be unusable")
	}
}

func TestFetchDeclaredRateLenientContextFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"dividendRate":      2.40,
			"dividendFrequency": "whenever",
			"exDividendDate":    "not a date",
		})
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, Timeout: time.Second, MinCallInterval: time.Millisecond}, noopLogger())
	q, err := c.FetchDeclaredRate(context.Background(), "ABC", "NYSE")
	if err != nil {
		t.Fatalf("bad context fields should not fail the quote: %v", err)
	}
	if q.Frequency != recon.FreqUnknown {
		t.Fatalf("unparsable frequency should map to unknown, got %s", q.Frequency)
	}
	if !q.ExDate.IsZero() {
		t.Fatal("unparsable ex-date should stay zero")
	}
}

func TestProviderSymbol(t *testing.T) {
	cases := []struct {
		symbol   string
		exchange string
		want     string
	}{
		{"KESKOB", "HEX", "KESKOB.HE"},
		{"STEAVh", "HEX", "STEAV.HE"},
		{"EQNRo", "OSE", "EQNR.OL"},
		{"700", "SEHK", "0700.HK"},
		{"SGR.UN", "TSE", "SGR-UN.TO"},
		{"CIM PRA", "NYSE", "CIM-PA"},
		{"AAPL", "NASDAQ", "AAPL"},
		{"8750.T", "TSEJ", "8750.T"},
	}

	for _, tc := range cases {
		if got := ProviderSymbol(tc.symbol, tc.exchange, nil); got != tc.want {
			t.Errorf("ProviderSymbol(%q, %q) = %q, want %q", tc.symbol, tc.exchange, got, tc.want)
		}
	}
}
