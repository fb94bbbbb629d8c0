// Package store defines the persistence interface for trendvest.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache for topic and momentum reads), and in-memory (for testing).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ntexler/trendvest/internal/model"
)

// ErrNotFound is returned when a topic, portfolio, or holding does not
// exist. Callers distinguish it from infrastructure failures with errors.Is.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer for topic/momentum reads.
type Store interface {
	// --- Topic registry (seeded reference data) ---

	// UpsertTopic inserts or updates a topic keyed by slug and returns its ID.
	UpsertTopic(ctx context.Context, t *model.Topic) (int64, error)

	// UpsertTopicStock inserts or updates a topic↔ticker link.
	UpsertTopicStock(ctx context.Context, s *model.TopicStock) error

	// ListTopics returns all active topics.
	ListTopics(ctx context.Context) ([]model.Topic, error)

	// GetTopicBySlug returns one active topic or ErrNotFound.
	GetTopicBySlug(ctx context.Context, slug string) (*model.Topic, error)

	// ListTopicStocks returns the tickers mapped to a topic, by priority.
	ListTopicStocks(ctx context.Context, topicID int64) ([]model.TopicStock, error)

	// --- Mention history (append-only) ---

	// InsertMentionRecords appends mention records. Records are never
	// updated or deleted afterwards.
	InsertMentionRecords(ctx context.Context, recs []model.MentionRecord) error

	// SumMentionsSince sums mention counts for a topic collected at or
	// after the given instant.
	SumMentionsSince(ctx context.Context, topicID int64, since time.Time) (int64, error)

	// DailyMentionTotals returns per-calendar-day (UTC) mention totals for
	// records collected in [from, to). Only days that have at least one
	// record appear in the result.
	DailyMentionTotals(ctx context.Context, topicID int64, from, to time.Time) ([]int64, error)

	// --- Momentum scores (derived projection) ---

	// UpsertMomentumScore replaces the topic's score row in full.
	UpsertMomentumScore(ctx context.Context, sc *model.MomentumScore) error

	// ListMomentumScores returns the current score row for every topic.
	ListMomentumScores(ctx context.Context) ([]model.MomentumScore, error)

	// --- Paper-trading ledger ---

	// EnsurePortfolio creates the session's portfolio with the given
	// starting balance if it does not exist. Idempotent: an existing
	// balance is never reset.
	EnsurePortfolio(ctx context.Context, sessionID string, startingBalance decimal.Decimal) error

	// GetPortfolio returns the session's portfolio or ErrNotFound.
	GetPortfolio(ctx context.Context, sessionID string) (*model.Portfolio, error)

	// GetHolding returns the session's position in one ticker or ErrNotFound.
	GetHolding(ctx context.Context, sessionID, ticker string) (*model.Holding, error)

	// ListHoldings returns all positions for a session.
	ListHoldings(ctx context.Context, sessionID string) ([]model.Holding, error)

	// ApplyTrade applies one executed trade as a single atomic unit:
	// set the session's cash balance to newCash, upsert the holding (or
	// delete it when deleteHolding is set), and append the trade record.
	// A partial application is a correctness violation, so implementations
	// must commit all three or none.
	ApplyTrade(ctx context.Context, rec *model.TradeRecord, newCash decimal.Decimal, holding *model.Holding, deleteHolding bool) error

	// ListTrades returns the most recent trades for a session, newest first.
	ListTrades(ctx context.Context, sessionID string, limit int) ([]model.TradeRecord, error)
}
