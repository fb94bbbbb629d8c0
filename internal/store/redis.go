package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/Ntexler/trendvest/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for the hot read paths: topics and momentum scores. Writes go to
// the primary store and invalidate the cache. The paper-trading ledger is
// never cached — trade state must always come from the source of truth.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetTopicBySlug(ctx context.Context, slug string) (*model.Topic, error) {
	data, err := s.rdb.Get(ctx, topicKey(slug)).Bytes()
	if err == nil {
		var t model.Topic
		if json.Unmarshal(data, &t) == nil {
			return &t, nil
		}
	}

	t, err := s.primary.GetTopicBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(t); err == nil {
		s.rdb.Set(ctx, topicKey(slug), data, s.ttl)
	}
	return t, nil
}

func (s *CachedStore) ListMomentumScores(ctx context.Context) ([]model.MomentumScore, error) {
	data, err := s.rdb.Get(ctx, scoresKey()).Bytes()
	if err == nil {
		var scores []model.MomentumScore
		if json.Unmarshal(data, &scores) == nil {
			return scores, nil
		}
	}

	scores, err := s.primary.ListMomentumScores(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(scores); err == nil {
		s.rdb.Set(ctx, scoresKey(), data, s.ttl)
	}
	return scores, nil
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) UpsertTopic(ctx context.Context, t *model.Topic) (int64, error) {
	id, err := s.primary.UpsertTopic(ctx, t)
	if err != nil {
		return 0, err
	}
	s.rdb.Del(ctx, topicKey(t.Slug))
	return id, nil
}

func (s *CachedStore) UpsertMomentumScore(ctx context.Context, sc *model.MomentumScore) error {
	if err := s.primary.UpsertMomentumScore(ctx, sc); err != nil {
		return err
	}
	// Invalidate the aggregate; next read re-populates.
	s.rdb.Del(ctx, scoresKey())
	return nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) UpsertTopicStock(ctx context.Context, ts *model.TopicStock) error {
	return s.primary.UpsertTopicStock(ctx, ts)
}

func (s *CachedStore) ListTopics(ctx context.Context) ([]model.Topic, error) {
	return s.primary.ListTopics(ctx)
}

func (s *CachedStore) ListTopicStocks(ctx context.Context, topicID int64) ([]model.TopicStock, error) {
	return s.primary.ListTopicStocks(ctx, topicID)
}

func (s *CachedStore) InsertMentionRecords(ctx context.Context, recs []model.MentionRecord) error {
	return s.primary.InsertMentionRecords(ctx, recs)
}

func (s *CachedStore) SumMentionsSince(ctx context.Context, topicID int64, since time.Time) (int64, error) {
	return s.primary.SumMentionsSince(ctx, topicID, since)
}

func (s *CachedStore) DailyMentionTotals(ctx context.Context, topicID int64, from, to time.Time) ([]int64, error) {
	return s.primary.DailyMentionTotals(ctx, topicID, from, to)
}

func (s *CachedStore) EnsurePortfolio(ctx context.Context, sessionID string, startingBalance decimal.Decimal) error {
	return s.primary.EnsurePortfolio(ctx, sessionID, startingBalance)
}

func (s *CachedStore) GetPortfolio(ctx context.Context, sessionID string) (*model.Portfolio, error) {
	return s.primary.GetPortfolio(ctx, sessionID)
}

func (s *CachedStore) GetHolding(ctx context.Context, sessionID, ticker string) (*model.Holding, error) {
	return s.primary.GetHolding(ctx, sessionID, ticker)
}

func (s *CachedStore) ListHoldings(ctx context.Context, sessionID string) ([]model.Holding, error) {
	return s.primary.ListHoldings(ctx, sessionID)
}

func (s *CachedStore) ApplyTrade(ctx context.Context, rec *model.TradeRecord, newCash decimal.Decimal, holding *model.Holding, deleteHolding bool) error {
	return s.primary.ApplyTrade(ctx, rec, newCash, holding, deleteHolding)
}

func (s *CachedStore) ListTrades(ctx context.Context, sessionID string, limit int) ([]model.TradeRecord, error) {
	return s.primary.ListTrades(ctx, sessionID, limit)
}

// --- Cache keys ---

func topicKey(slug string) string { return fmt.Sprintf("topic:%s", slug) }
func scoresKey() string           { return "momentum:all" }
