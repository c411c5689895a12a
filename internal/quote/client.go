package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"dividend-recon/internal/recon"
)

const profilePath = "/profile/"

// Options parameterise the provider client.
type Options struct {
	BaseURL         string
	Timeout         time.Duration
	UserAgent       string
	MinCallInterval time.Duration
	SymbolOverrides map[string]string
}

// Client fetches declared dividend rates over HTTP. Calls are serialized and
// paced through a shared limiter to respect the provider's usage policy, so
// a single Client must be used for all instruments in a run.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
}

// NewClient constructs a provider client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	interval := opts.MinCallInterval
	if interval <= 0 {
		interval = time.Second
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "quote_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

type profileResponse struct {
	Symbol            string      `json:"symbol"`
	DividendRate      json.Number `json:"dividendRate"`
	DividendFrequency string      `json:"dividendFrequency"`
	ExDividendDate    string      `json:"exDividendDate"`
	PayoutRatio       json.Number `json:"payoutRatio"`
	Currency          string      `json:"currency"`
}

type errorResponse struct {
	ErrorType   string `json:"errorType"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

// FetchDeclaredRate retrieves the provider's declared annual rate for one
// instrument. It blocks on the pacing limiter before issuing the request.
func (c *Client) FetchDeclaredRate(ctx context.Context, symbol, exchange string) (Quote, error) {
	if c.baseURL == "" {
		return Quote{}, errors.New("provider base url not configured")
	}
	if symbol == "" {
		return Quote{}, errors.New("symbol required")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return Quote{}, err
	}

	ticker := ProviderSymbol(symbol, exchange, c.opts.SymbolOverrides)
	endpoint := c.baseURL + profilePath + url.PathEscape(ticker)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Quote{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "divrecon/1.0")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Quote{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Quote{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return Quote{}, parseHTTPError(resp.StatusCode, payload)
	}

	var profile profileResponse
	if err := json.Unmarshal(payload, &profile); err != nil {
		return Quote{}, err
	}

	if profile.DividendRate == "" {
		return Quote{}, fmt.Errorf("provider returned no dividend rate for %s", ticker)
	}
	declared, err := decimal.NewFromString(profile.DividendRate.String())
	if err != nil {
		return Quote{}, fmt.Errorf("parse dividend rate: %w", err)
	}
	if !declared.IsPositive() {
		return Quote{}, fmt.Errorf("provider returned non-positive rate %s for %s", declared, ticker)
	}

	q := Quote{Rate: declared, Frequency: recon.FreqUnknown}

	// Frequency, ex-date, and payout ratio are best-effort context fields;
	// a missing or unparsable value never fails the quote.
	if freq, err := recon.ParseFrequency(profile.DividendFrequency); err == nil {
		q.Frequency = freq
	}
	if profile.ExDividendDate != "" {
		if exDate, err := time.Parse("2006-01-02", profile.ExDividendDate); err == nil {
			q.ExDate = exDate
		}
	}
	if profile.PayoutRatio != "" {
		if ratio, err := decimal.NewFromString(profile.PayoutRatio.String()); err == nil {
			q.PayoutRatio = ratio
		}
	}

	return q, nil
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Description != "" {
			return fmt.Errorf("provider error (%d): %s", status, apiErr.Description)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("provider error (%d): %s", status, apiErr.Message)
		}
		if apiErr.ErrorType != "" {
			return fmt.Errorf("provider error (%d): %s", status, apiErr.ErrorType)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("provider error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("provider error (%d)", status)
}

var _ Fetcher = (*Client)(nil)
