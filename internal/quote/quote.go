// Package quote talks to the external declared-rate provider. The provider
// is itself a fallback-chain dispatcher on the far side of an HTTP API; this
// package treats every failure uniformly as "no usable quote this run" and
// never retries — retry and backoff policy belongs to the dispatcher.
package quote

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"dividend-recon/internal/recon"
)

// Quote is one declared-rate figure from the provider.
type Quote struct {
	Rate        decimal.Decimal
	Frequency   recon.Frequency
	ExDate      time.Time
	PayoutRatio decimal.Decimal
}

// Fetcher retrieves a provider-declared annual dividend rate for a listed
// symbol.
type Fetcher interface {
	FetchDeclaredRate(ctx context.Context, symbol, exchange string) (Quote, error)
}
