// Package trade implements the paper-trading ledger: simulated buy/sell
// execution against a per-session cash balance and position book, with
// average-cost-basis accounting.
//
// All monetary values use shopspring/decimal — never float64 for money.
package trade

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Ntexler/trendvest/internal/metrics"
	"github.com/Ntexler/trendvest/internal/model"
	"github.com/Ntexler/trendvest/internal/pricing"
	"github.com/Ntexler/trendvest/internal/store"
	"github.com/Ntexler/trendvest/internal/stream"
)

// StartingBalance is the fixed virtual cash a new session begins with.
var StartingBalance = decimal.NewFromInt(100000)

// maxDegradedQuoteAge caps how old a stale fallback quote may be and
// still be executable. Display tolerates older data; trades do not.
// Tied to the cache's stale ceiling: a quote the cache would sweep is
// not a price worth filling an order at.
const maxDegradedQuoteAge = pricing.StaleCeiling

const defaultHistoryLimit = 50

var tickerPattern = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)

// Service executes paper trades and serves portfolio state. Trades for
// the same session are serialized by a per-session lock; different
// sessions never block each other.
type Service struct {
	store  store.Store
	prices *pricing.Cache
	hub    *stream.Hub // optional WebSocket hub for broadcasts
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*sync.Mutex
}

// NewService creates a new paper-trading service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, prices *pricing.Cache, hub *stream.Hub) *Service {
	return &Service{
		store:    st,
		prices:   prices,
		hub:      hub,
		now:      time.Now,
		sessions: make(map[string]*sync.Mutex),
	}
}

// sessionLock returns the mutex for one session, creating it on first use.
// Locks are never removed; the session population is small and bounded by
// real users.
func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.sessions[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.sessions[sessionID] = l
	}
	return l
}

// --- Request/Response types ---

// TradeRequest is the JSON body for POST /api/v1/paper/trade.
type TradeRequest struct {
	SessionID string `json:"session_id"`
	Ticker    string `json:"ticker"`
	Action    string `json:"action"` // "buy" or "sell"
	Quantity  int64  `json:"quantity"`
}

// TradeResponse is the JSON body returned from POST /api/v1/paper/trade.
type TradeResponse struct {
	Status     string          `json:"status"`
	TradeID    string          `json:"trade_id"`
	Ticker     string          `json:"ticker"`
	Action     string          `json:"action"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Total      decimal.Decimal `json:"total"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// HoldingResponse is one position in the portfolio view, marked to the
// freshest available price.
type HoldingResponse struct {
	Ticker        string          `json:"ticker"`
	Quantity      int64           `json:"quantity"`
	AvgCost       decimal.Decimal `json:"avg_cost"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	PnL           decimal.Decimal `json:"pnl"`
	PnLPct        decimal.Decimal `json:"pnl_pct"`
	PriceDegraded bool            `json:"price_degraded,omitempty"`
}

// PortfolioResponse is the JSON body for GET /api/v1/paper/portfolio/{sessionID}.
type PortfolioResponse struct {
	SessionID   string            `json:"session_id"`
	CashBalance decimal.Decimal   `json:"cash_balance"`
	TotalValue  decimal.Decimal   `json:"total_value"`
	TotalPnL    decimal.Decimal   `json:"total_pnl"`
	Holdings    []HoldingResponse `json:"holdings"`
}

// --- Core execution ---

// Execute runs one market order at the current cached price. The whole
// operation — price resolution, balance check, holding update, trade
// append — is one atomic unit per session: a rejected trade leaves cash,
// holdings, and history completely untouched.
func (s *Service) Execute(ctx context.Context, sessionID, ticker, action string, quantity int64) (*model.TradeRecord, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	// Price resolves at execution time, never a locked-in prior quote.
	res, err := s.prices.GetPrice(ctx, ticker)
	if err != nil {
		metrics.TradeRejections.WithLabelValues("price_unavailable").Inc()
		return nil, ErrPriceUnavailable
	}
	if res.Degraded && s.now().Sub(res.Quote.FetchedAt) > maxDegradedQuoteAge {
		// Display may show last-known values this old; execution may not.
		metrics.TradeRejections.WithLabelValues("price_unavailable").Inc()
		return nil, ErrPriceUnavailable
	}

	price := res.Quote.Price
	qty := decimal.NewFromInt(quantity)
	total := price.Mul(qty)

	if err := s.store.EnsurePortfolio(ctx, sessionID, StartingBalance); err != nil {
		return nil, err
	}
	portfolio, err := s.store.GetPortfolio(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	holding, err := s.store.GetHolding(ctx, sessionID, ticker)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	var (
		newCash       decimal.Decimal
		newHolding    *model.Holding
		deleteHolding bool
	)

	switch action {
	case model.ActionBuy:
		if portfolio.CashBalance.LessThan(total) {
			metrics.TradeRejections.WithLabelValues("insufficient_funds").Inc()
			return nil, &InsufficientFundsError{Need: total, Have: portfolio.CashBalance}
		}
		newCash = portfolio.CashBalance.Sub(total)

		if holding == nil {
			newHolding = &model.Holding{
				SessionID: sessionID,
				Ticker:    ticker,
				Quantity:  quantity,
				AvgCost:   price,
			}
		} else {
			// Quantity-weighted blend of old and new cost, not a running
			// average of trade prices.
			oldQty := decimal.NewFromInt(holding.Quantity)
			newQty := holding.Quantity + quantity
			newAvg := holding.AvgCost.Mul(oldQty).Add(total).Div(decimal.NewFromInt(newQty))
			newHolding = &model.Holding{
				SessionID: sessionID,
				Ticker:    ticker,
				Quantity:  newQty,
				AvgCost:   newAvg,
			}
		}

	case model.ActionSell:
		var held int64
		if holding != nil {
			held = holding.Quantity
		}
		if held < quantity {
			metrics.TradeRejections.WithLabelValues("insufficient_shares").Inc()
			return nil, &InsufficientSharesError{Ticker: ticker, Requested: quantity, Held: held}
		}
		newCash = portfolio.CashBalance.Add(total)

		remaining := held - quantity
		if remaining == 0 {
			// A zero-quantity row is not a valid resting state.
			deleteHolding = true
		} else {
			newHolding = &model.Holding{
				SessionID: sessionID,
				Ticker:    ticker,
				Quantity:  remaining,
				AvgCost:   holding.AvgCost, // untouched on sells
			}
		}

	default:
		return nil, errors.New("trade: action must be buy or sell")
	}

	rec := &model.TradeRecord{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		Ticker:     ticker,
		Action:     action,
		Quantity:   quantity,
		Price:      price,
		Total:      total,
		ExecutedAt: s.now().UTC(),
	}
	if err := s.store.ApplyTrade(ctx, rec, newCash, newHolding, deleteHolding); err != nil {
		return nil, err
	}

	metrics.TradesTotal.WithLabelValues(action).Inc()
	slog.Info("trade executed",
		"trade_id", rec.ID,
		"session", sessionID,
		"ticker", ticker,
		"action", action,
		"qty", quantity,
		"price", price.String(),
		"total", total.String(),
	)

	if s.hub != nil {
		s.hub.Broadcast(stream.Message{
			Type:     "trade_executed",
			Ticker:   ticker,
			Action:   action,
			Quantity: quantity,
			Price:    price.String(),
		})
	}

	return rec, nil
}

// --- HTTP Handlers ---

// ExecuteTrade handles POST /api/v1/paper/trade.
func (s *Service) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.SessionID == "" {
		writeError(w, "session_id is required", http.StatusBadRequest)
		return
	}
	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if !tickerPattern.MatchString(ticker) {
		writeError(w, "invalid ticker: "+req.Ticker, http.StatusBadRequest)
		return
	}
	if req.Action != model.ActionBuy && req.Action != model.ActionSell {
		writeError(w, "action must be buy or sell", http.StatusBadRequest)
		return
	}
	if req.Quantity <= 0 {
		writeError(w, "quantity must be positive", http.StatusBadRequest)
		return
	}

	rec, err := s.Execute(r.Context(), req.SessionID, ticker, req.Action, req.Quantity)
	if err != nil {
		var fundsErr *InsufficientFundsError
		var sharesErr *InsufficientSharesError
		switch {
		case errors.Is(err, ErrPriceUnavailable):
			writeError(w, "could not get price for "+ticker, http.StatusBadRequest)
		case errors.As(err, &fundsErr), errors.As(err, &sharesErr):
			writeError(w, err.Error(), http.StatusBadRequest)
		default:
			slog.Error("trade failed", "session", req.SessionID, "err", err)
			writeError(w, "trade execution failed", http.StatusInternalServerError)
		}
		return
	}

	resp := TradeResponse{
		Status:     "executed",
		TradeID:    rec.ID,
		Ticker:     rec.Ticker,
		Action:     rec.Action,
		Quantity:   rec.Quantity,
		Price:      rec.Price,
		Total:      rec.Total.Round(2),
		ExecutedAt: rec.ExecutedAt,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetPortfolio handles GET /api/v1/paper/portfolio/{sessionID}.
// Prices come from a fresh batch lookup, not the execution-time quotes.
// A holding whose price is currently unavailable degrades to its average
// cost (zero P&L shown) rather than failing the whole view.
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	ctx := r.Context()

	if err := s.store.EnsurePortfolio(ctx, sessionID, StartingBalance); err != nil {
		writeError(w, "failed to load portfolio", http.StatusInternalServerError)
		return
	}
	portfolio, err := s.store.GetPortfolio(ctx, sessionID)
	if err != nil {
		writeError(w, "failed to load portfolio", http.StatusInternalServerError)
		return
	}
	holdings, err := s.store.ListHoldings(ctx, sessionID)
	if err != nil {
		writeError(w, "failed to load holdings", http.StatusInternalServerError)
		return
	}

	tickers := make([]string, 0, len(holdings))
	for _, h := range holdings {
		tickers = append(tickers, h.Ticker)
	}
	var prices map[string]pricing.Result
	if len(tickers) > 0 {
		prices = s.prices.GetPricesBatch(ctx, tickers)
	}

	hundred := decimal.NewFromInt(100)
	totalMarketValue := decimal.Zero
	out := make([]HoldingResponse, 0, len(holdings))

	for _, h := range holdings {
		qty := decimal.NewFromInt(h.Quantity)
		currentPrice := h.AvgCost
		degraded := true
		if res, ok := prices[h.Ticker]; ok {
			currentPrice = res.Quote.Price
			degraded = res.Degraded
		}

		marketValue := currentPrice.Mul(qty)
		costBasis := h.AvgCost.Mul(qty)
		pnl := marketValue.Sub(costBasis)
		pnlPct := decimal.Zero
		if costBasis.IsPositive() {
			pnlPct = pnl.Div(costBasis).Mul(hundred)
		}
		totalMarketValue = totalMarketValue.Add(marketValue)

		out = append(out, HoldingResponse{
			Ticker:        h.Ticker,
			Quantity:      h.Quantity,
			AvgCost:       h.AvgCost.Round(2),
			CurrentPrice:  currentPrice.Round(2),
			MarketValue:   marketValue.Round(2),
			PnL:           pnl.Round(2),
			PnLPct:        pnlPct.Round(2),
			PriceDegraded: degraded,
		})
	}

	totalValue := portfolio.CashBalance.Add(totalMarketValue)
	resp := PortfolioResponse{
		SessionID:   sessionID,
		CashBalance: portfolio.CashBalance.Round(2),
		TotalValue:  totalValue.Round(2),
		TotalPnL:    totalValue.Sub(StartingBalance).Round(2),
		Holdings:    out,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetHistory handles GET /api/v1/paper/history/{sessionID}?limit=N.
// Pure read: most recent trades first.
func (s *Service) GetHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	trades, err := s.store.ListTrades(r.Context(), sessionID, limit)
	if err != nil {
		writeError(w, "failed to load trade history", http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []model.TradeRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trades)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
