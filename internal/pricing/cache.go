package pricing

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Ntexler/trendvest/internal/metrics"
	"github.com/Ntexler/trendvest/internal/model"
)

const (
	// DefaultTTL is how long a cached quote is considered fresh.
	DefaultTTL = 5 * time.Minute

	// DefaultMaxEntries is the hard cap on cached quotes.
	DefaultMaxEntries = 200

	// StaleCeiling is the maximum age of any cached quote. Entries older
	// than this are swept even if never re-requested, and callers that
	// refuse stale data use the same bound.
	StaleCeiling = staleFactor * DefaultTTL

	// staleFactor sets the stale ceiling relative to the TTL.
	staleFactor = 3

	// chunkSize bounds the number of tickers per source call.
	chunkSize = 30

	// maxConcurrentChunks bounds parallel source calls during a batch.
	maxConcurrentChunks = 4
)

// ErrPriceUnavailable is returned when no quote — fresh or stale — exists
// for a ticker.
var ErrPriceUnavailable = errors.New("pricing: no quote available")

// Result is a quote lookup outcome. Degraded marks a stale value served
// after a source failure, so callers can distinguish fresh from last-known
// data where it matters (display tolerates stale; trade execution caps it).
type Result struct {
	Quote    model.PriceQuote
	Degraded bool
}

// Cache serves up-to-date-enough price quotes while bounding the rate and
// volume of calls to the underlying source. It is safe for concurrent use;
// the lock covers only map access, never the source call itself, so two
// concurrent misses on the same ticker may both fetch — the second insert
// simply supersedes the first.
type Cache struct {
	source       Source
	ttl          time.Duration
	staleCeiling time.Duration
	maxEntries   int
	now          func() time.Time

	mu      sync.RWMutex
	entries map[string]model.PriceQuote
}

// NewCache creates a price cache over the given source.
func NewCache(source Source) *Cache {
	return NewCacheWithClock(source, time.Now)
}

// NewCacheWithClock creates a price cache with an explicit time source,
// so freshness and eviction can be driven deterministically in tests.
func NewCacheWithClock(source Source, now func() time.Time) *Cache {
	return &Cache{
		source:       source,
		ttl:          DefaultTTL,
		staleCeiling: StaleCeiling,
		maxEntries:   DefaultMaxEntries,
		now:          now,
		entries:      make(map[string]model.PriceQuote),
	}
}

// GetPrice returns the current quote for one ticker. A cached quote
// younger than the TTL is returned as-is with no source call. Otherwise
// the source is consulted; if it fails and any prior quote exists (even
// stale), that quote is returned marked Degraded rather than erroring —
// a temporarily unreachable source must not blank out the UI.
func (c *Cache) GetPrice(ctx context.Context, ticker string) (Result, error) {
	ticker = normalize(ticker)

	if q, ok := c.lookup(ticker); ok && c.fresh(q) {
		metrics.PriceCacheHits.Inc()
		return Result{Quote: q}, nil
	}
	metrics.PriceCacheMisses.Inc()

	fetched, err := c.source.FetchLatest(ctx, []string{ticker})
	if err == nil {
		if sq, ok := fetched[ticker]; ok {
			return Result{Quote: c.insert(ticker, sq)}, nil
		}
	} else {
		slog.Warn("price fetch failed", "ticker", ticker, "err", err)
	}

	if q, ok := c.lookup(ticker); ok {
		metrics.PriceStaleFallbacks.Inc()
		return Result{Quote: q, Degraded: true}, nil
	}
	return Result{}, ErrPriceUnavailable
}

// GetPricesBatch returns quotes for a set of tickers. Already-fresh
// entries are served from cache; the rest are fetched from the source in
// chunks of at most chunkSize tickers, with bounded parallelism. One
// chunk's failure degrades only its own tickers (falling back to their
// prior cached value if present) and never blocks other chunks. Tickers
// the source knows nothing about are omitted from the result.
func (c *Cache) GetPricesBatch(ctx context.Context, tickers []string) map[string]Result {
	results := make(map[string]Result, len(tickers))

	var toFetch []string
	seen := make(map[string]bool, len(tickers))
	for _, raw := range tickers {
		t := normalize(raw)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true

		if q, ok := c.lookup(t); ok && c.fresh(q) {
			metrics.PriceCacheHits.Inc()
			results[t] = Result{Quote: q}
			continue
		}
		metrics.PriceCacheMisses.Inc()
		toFetch = append(toFetch, t)
	}

	if len(toFetch) > 0 {
		var rmu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxConcurrentChunks)

		for start := 0; start < len(toFetch); start += chunkSize {
			end := start + chunkSize
			if end > len(toFetch) {
				end = len(toFetch)
			}
			chunk := toFetch[start:end]

			g.Go(func() error {
				fetched, err := c.source.FetchLatest(gctx, chunk)
				if err != nil {
					slog.Warn("price chunk fetch failed", "tickers", len(chunk), "err", err)
					for _, t := range chunk {
						if q, ok := c.lookup(t); ok {
							metrics.PriceStaleFallbacks.Inc()
							rmu.Lock()
							results[t] = Result{Quote: q, Degraded: true}
							rmu.Unlock()
						}
					}
					return nil
				}
				for _, t := range chunk {
					sq, ok := fetched[t]
					if !ok {
						continue // no data points: omit rather than fail the chunk
					}
					q := c.insert(t, sq)
					rmu.Lock()
					results[t] = Result{Quote: q}
					rmu.Unlock()
				}
				return nil
			})
		}
		g.Wait()

		// Eviction runs once per batch cycle, not per read, to keep the
		// read path cheap.
		c.evict()
	}

	return results
}

// Clear purges the cache. Administrative: tests and cache-warming resets.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]model.PriceQuote)
	metrics.PriceCacheSize.Set(0)
}

// Len reports the current entry count.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) lookup(ticker string) (model.PriceQuote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.entries[ticker]
	return q, ok
}

func (c *Cache) fresh(q model.PriceQuote) bool {
	return c.now().Sub(q.FetchedAt) < c.ttl
}

// insert rounds all monetary figures to 2 decimal places here, at the
// point of cache insertion, so repeated reads are byte-identical.
func (c *Cache) insert(ticker string, sq SourceQuote) model.PriceQuote {
	price := sq.Price.Round(2)
	prev := sq.PreviousClose.Round(2)
	if prev.IsZero() {
		// Single-point series: the latest price is its own previous close.
		prev = price
	}

	changeAbs := price.Sub(prev)
	changePct := decimal.Zero
	if !prev.IsZero() {
		changePct = changeAbs.Div(prev).Mul(decimal.NewFromInt(100)).Round(2)
	}

	q := model.PriceQuote{
		Ticker:        ticker,
		Price:         price,
		PreviousClose: prev,
		ChangeAbs:     changeAbs,
		ChangePct:     changePct,
		FetchedAt:     c.now().UTC(),
	}

	c.mu.Lock()
	c.entries[ticker] = q
	metrics.PriceCacheSize.Set(float64(len(c.entries)))
	c.mu.Unlock()
	return q
}

// evict applies both bounding passes: (a) sweep entries older than the
// stale ceiling, (b) if still over the hard cap, drop the oldest-fetched
// entries until under it.
func (c *Cache) evict() {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for t, q := range c.entries {
		if now.Sub(q.FetchedAt) > c.staleCeiling {
			delete(c.entries, t)
			metrics.PriceCacheEvictions.WithLabelValues("stale").Inc()
		}
	}

	if len(c.entries) > c.maxEntries {
		byAge := make([]model.PriceQuote, 0, len(c.entries))
		for _, q := range c.entries {
			byAge = append(byAge, q)
		}
		sort.Slice(byAge, func(i, j int) bool {
			return byAge[i].FetchedAt.Before(byAge[j].FetchedAt)
		})
		for _, q := range byAge[:len(c.entries)-c.maxEntries] {
			delete(c.entries, q.Ticker)
			metrics.PriceCacheEvictions.WithLabelValues("capacity").Inc()
		}
	}

	metrics.PriceCacheSize.Set(float64(len(c.entries)))
}

func normalize(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
