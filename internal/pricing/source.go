// Package pricing implements the price cache: the authoritative read path
// for "current price of ticker T", with TTL freshness, stale-on-failure
// fallback, chunked batch fetching, and size-bounded eviction.
package pricing

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrSourceUnavailable is returned by a Source when the upstream price
// provider cannot be reached at all. Callers degrade to stale cache.
var ErrSourceUnavailable = errors.New("pricing: price source unavailable")

// SourceQuote is the raw price pair returned by a Source. A zero
// PreviousClose marks a degraded single-point series; the cache treats
// the latest price as its own previous close in that case.
type SourceQuote struct {
	Price         decimal.Decimal
	PreviousClose decimal.Decimal
}

// Source fetches latest prices for a set of tickers. Implementations may
// return a partial map (some tickers missing) without returning an error;
// an error means the fetch failed entirely.
type Source interface {
	FetchLatest(ctx context.Context, tickers []string) (map[string]SourceQuote, error)
}
