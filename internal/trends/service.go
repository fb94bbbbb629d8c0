// Package trends serves the topic-discovery read API: topics ranked by
// momentum, per-topic detail with live stock prices, and the price
// endpoints backed by the cache.
package trends

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Ntexler/trendvest/internal/model"
	"github.com/Ntexler/trendvest/internal/pricing"
	"github.com/Ntexler/trendvest/internal/store"
)

const (
	defaultTrendLimit = 20
	maxTrendLimit     = 50
	maxBatchTickers   = 100
)

// Service composes topic, momentum, and price reads.
type Service struct {
	store  store.Store
	prices *pricing.Cache
}

// NewService creates a new trends service.
func NewService(st store.Store, prices *pricing.Cache) *Service {
	return &Service{store: st, prices: prices}
}

// --- Response types ---

// StockView is one ticker attached to a topic, optionally priced.
type StockView struct {
	Ticker        string           `json:"ticker"`
	CompanyName   string           `json:"company_name"`
	RelevanceNote string           `json:"relevance_note,omitempty"`
	CurrentPrice  *decimal.Decimal `json:"current_price,omitempty"`
	ChangePct     *decimal.Decimal `json:"change_pct,omitempty"`
}

// TopicView is a topic with its momentum score and mapped stocks.
type TopicView struct {
	Slug          string      `json:"slug"`
	Name          string      `json:"name"`
	Sector        string      `json:"sector"`
	Score         float64     `json:"momentum_score"`
	Direction     string      `json:"direction"`
	MentionsToday int64       `json:"mentions_today"`
	AvgMentions7d float64     `json:"avg_mentions_7d"`
	Stocks        []StockView `json:"stocks"`
}

// QuoteView is a PriceQuote plus its degraded flag.
type QuoteView struct {
	model.PriceQuote
	Degraded bool `json:"degraded,omitempty"`
}

// --- HTTP Handlers ---

// ListTrends handles GET /api/v1/trends?sector=X&limit=N.
// Topics are sorted by momentum score, highest first.
func (s *Service) ListTrends(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	topics, err := s.store.ListTopics(ctx)
	if err != nil {
		writeError(w, "failed to list topics", http.StatusInternalServerError)
		return
	}
	scores, err := s.store.ListMomentumScores(ctx)
	if err != nil {
		writeError(w, "failed to load momentum scores", http.StatusInternalServerError)
		return
	}
	byTopic := make(map[int64]model.MomentumScore, len(scores))
	for _, sc := range scores {
		byTopic[sc.TopicID] = sc
	}

	sector := r.URL.Query().Get("sector")
	limit := defaultTrendLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= maxTrendLimit {
			limit = n
		}
	}

	views := make([]TopicView, 0, len(topics))
	for _, t := range topics {
		if sector != "" && t.Sector != sector {
			continue
		}
		views = append(views, s.topicView(ctx, t, byTopic[t.ID], false))
	}

	sort.Slice(views, func(i, j int) bool { return views[i].Score > views[j].Score })
	if len(views) > limit {
		views = views[:limit]
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(views)
}

// GetTrend handles GET /api/v1/trends/{slug}. The single-topic view
// includes live prices for the topic's stocks.
func (s *Service) GetTrend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := chi.URLParam(r, "slug")

	topic, err := s.store.GetTopicBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "topic not found", http.StatusNotFound)
		} else {
			writeError(w, "failed to load topic", http.StatusInternalServerError)
		}
		return
	}

	var score model.MomentumScore
	scores, err := s.store.ListMomentumScores(ctx)
	if err != nil {
		writeError(w, "failed to load momentum scores", http.StatusInternalServerError)
		return
	}
	for _, sc := range scores {
		if sc.TopicID == topic.ID {
			score = sc
			break
		}
	}

	view := s.topicView(ctx, *topic, score, true)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}

// topicView assembles one topic's view; withPrices attaches a fresh
// batch price lookup for its stocks.
func (s *Service) topicView(ctx context.Context, t model.Topic, sc model.MomentumScore, withPrices bool) TopicView {
	direction := sc.Direction
	if direction == "" {
		direction = model.DirectionStable
	}

	stocks, err := s.store.ListTopicStocks(ctx, t.ID)
	if err != nil {
		slog.Warn("failed to load topic stocks", "topic", t.Slug, "err", err)
	}

	var prices map[string]pricing.Result
	if withPrices && len(stocks) > 0 {
		tickers := make([]string, 0, len(stocks))
		for _, st := range stocks {
			tickers = append(tickers, st.Ticker)
		}
		prices = s.prices.GetPricesBatch(ctx, tickers)
	}

	views := make([]StockView, 0, len(stocks))
	for _, st := range stocks {
		v := StockView{
			Ticker:        st.Ticker,
			CompanyName:   st.CompanyName,
			RelevanceNote: st.RelevanceNote,
		}
		if res, ok := prices[st.Ticker]; ok {
			price := res.Quote.Price
			pct := res.Quote.ChangePct
			v.CurrentPrice = &price
			v.ChangePct = &pct
		}
		views = append(views, v)
	}

	return TopicView{
		Slug:          t.Slug,
		Name:          t.Name,
		Sector:        t.Sector,
		Score:         sc.Score,
		Direction:     direction,
		MentionsToday: sc.MentionsToday,
		AvgMentions7d: sc.AvgMentions7d,
		Stocks:        views,
	}
}

// GetStockPrice handles GET /api/v1/stocks/{ticker}/price.
func (s *Service) GetStockPrice(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	res, err := s.prices.GetPrice(r.Context(), ticker)
	if err != nil {
		writeError(w, "no price available for "+ticker, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(QuoteView{PriceQuote: res.Quote, Degraded: res.Degraded})
}

// BatchPrices handles POST /api/v1/prices with body {"tickers": [...]}.
// Tickers with no available quote are omitted from the response map.
func (s *Service) BatchPrices(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tickers []string `json:"tickers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Tickers) == 0 || len(req.Tickers) > maxBatchTickers {
		writeError(w, "tickers must contain 1-100 symbols", http.StatusBadRequest)
		return
	}

	results := s.prices.GetPricesBatch(r.Context(), req.Tickers)
	out := make(map[string]QuoteView, len(results))
	for t, res := range results {
		out[t] = QuoteView{PriceQuote: res.Quote, Degraded: res.Degraded}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// ClearCache handles POST /api/v1/admin/cache/clear.
func (s *Service) ClearCache(w http.ResponseWriter, r *http.Request) {
	s.prices.Clear()
	slog.Info("price cache cleared")
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"cleared"}`))
}

// Health handles GET /api/health.
func (s *Service) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	topicsCount := 0
	var lastRun *time.Time
	if topics, err := s.store.ListTopics(ctx); err == nil {
		topicsCount = len(topics)
	}
	if scores, err := s.store.ListMomentumScores(ctx); err == nil {
		for _, sc := range scores {
			if lastRun == nil || sc.UpdatedAt.After(*lastRun) {
				t := sc.UpdatedAt
				lastRun = &t
			}
		}
	}

	resp := map[string]any{
		"status":       "ok",
		"service":      "trendvest",
		"topics_count": topicsCount,
		"timestamp":    time.Now().UTC(),
	}
	if lastRun != nil {
		resp["last_momentum_run"] = lastRun
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
