package pricing

import (
	"context"
	"fmt"

	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"
)

// YahooSource fetches quotes from Yahoo Finance via piquette/finance-go.
// The batch endpoint accepts many symbols per call, so one FetchLatest is
// one HTTP request regardless of ticker count.
type YahooSource struct{}

// NewYahooSource creates a Yahoo-backed price source.
func NewYahooSource() *YahooSource {
	return &YahooSource{}
}

// FetchLatest implements Source. Tickers Yahoo does not recognize are
// simply missing from the result map.
func (s *YahooSource) FetchLatest(ctx context.Context, tickers []string) (map[string]SourceQuote, error) {
	if len(tickers) == 0 {
		return map[string]SourceQuote{}, nil
	}
	// finance-go does not take a context; honor cancellation up front.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]SourceQuote, len(tickers))
	iter := quote.List(tickers)
	for iter.Next() {
		q := iter.Quote()
		if q == nil || q.RegularMarketPrice == 0 {
			continue
		}
		out[q.Symbol] = SourceQuote{
			Price:         decimal.NewFromFloat(q.RegularMarketPrice),
			PreviousClose: decimal.NewFromFloat(q.RegularMarketPreviousClose),
		}
	}
	if err := iter.Err(); err != nil && len(out) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return out, nil
}
