// Package model defines the core domain types shared across trendvest.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trend directions produced by the momentum engine.
const (
	DirectionRising  = "rising"
	DirectionStable  = "stable"
	DirectionFalling = "falling"
)

// Trade actions accepted by the paper-trading ledger.
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
)

// PriceQuote is a priced snapshot of a ticker. Quotes are immutable once
// created; a fresher fetch supersedes the old quote, it never mutates it.
// All monetary fields are rounded to 2 decimal places at creation so
// repeated reads are byte-identical.
type PriceQuote struct {
	Ticker        string          `json:"ticker"`
	Price         decimal.Decimal `json:"price"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	ChangeAbs     decimal.Decimal `json:"change"`
	ChangePct     decimal.Decimal `json:"change_pct"`
	FetchedAt     time.Time       `json:"fetched_at"`
}

// Topic is a curated theme ("AI", "nuclear", ...) mapped to a set of
// tickers. Topics are seeded reference data and rarely mutated.
type Topic struct {
	ID         int64    `json:"id" db:"id"`
	Slug       string   `json:"slug" db:"slug"`
	Name       string   `json:"name" db:"name"`
	Sector     string   `json:"sector" db:"sector"`
	Keywords   []string `json:"keywords" db:"keywords"`
	Subreddits []string `json:"subreddits" db:"subreddits"`
	Active     bool     `json:"active" db:"active"`
}

// TopicStock links a topic to one ticker.
type TopicStock struct {
	TopicID       int64  `json:"topic_id" db:"topic_id"`
	Ticker        string `json:"ticker" db:"ticker"`
	CompanyName   string `json:"company_name" db:"company_name"`
	RelevanceNote string `json:"relevance_note" db:"relevance_note"`
	Priority      int    `json:"priority" db:"priority"`
}

// MentionRecord is an append-only fact: one source counted Count mentions
// of a topic during [PeriodStart, PeriodEnd). Never updated or deleted —
// the accumulated history is the input to momentum scoring.
type MentionRecord struct {
	TopicID     int64     `json:"topic_id" db:"topic_id"`
	Source      string    `json:"source" db:"source"`
	Count       int64     `json:"count" db:"mention_count"`
	CollectedAt time.Time `json:"collected_at" db:"collected_at"`
	PeriodStart time.Time `json:"period_start" db:"period_start"`
	PeriodEnd   time.Time `json:"period_end" db:"period_end"`
}

// MomentumScore is a derived, idempotent projection of MentionRecord
// history. One row per topic, replaced entirely on every scoring run.
type MomentumScore struct {
	TopicID       int64     `json:"topic_id" db:"topic_id"`
	Score         float64   `json:"score" db:"score"`
	MentionsToday int64     `json:"mentions_today" db:"mention_count_today"`
	AvgMentions7d float64   `json:"avg_mentions_7d" db:"mention_avg_7d"`
	Direction     string    `json:"direction" db:"direction"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Portfolio holds the virtual cash balance for one paper-trading session.
// Created lazily on first trade. Invariant: CashBalance >= 0.
type Portfolio struct {
	SessionID   string          `json:"session_id" db:"session_id"`
	CashBalance decimal.Decimal `json:"cash_balance" db:"cash_balance"`
}

// Holding is a position in one ticker for one session. At most one row
// per (session, ticker); Quantity > 0 always — a position sold down to
// zero is deleted, never kept at zero. AvgCost is the quantity-weighted
// average purchase price, recomputed on buys and untouched on sells.
type Holding struct {
	SessionID string          `json:"session_id" db:"session_id"`
	Ticker    string          `json:"ticker" db:"ticker"`
	Quantity  int64           `json:"quantity" db:"quantity"`
	AvgCost   decimal.Decimal `json:"avg_cost" db:"avg_cost"`
}

// TradeRecord is an immutable record of one executed paper trade.
// Once created, these are never modified or deleted.
type TradeRecord struct {
	ID         string          `json:"id" db:"id"`
	SessionID  string          `json:"session_id" db:"session_id"`
	Ticker     string          `json:"ticker" db:"ticker"`
	Action     string          `json:"action" db:"action"` // "buy" or "sell"
	Quantity   int64           `json:"quantity" db:"quantity"`
	Price      decimal.Decimal `json:"price" db:"price"`
	Total      decimal.Decimal `json:"total" db:"total"`
	ExecutedAt time.Time       `json:"executed_at" db:"executed_at"`
}
