package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ntexler/trendvest/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu          sync.RWMutex
	nextTopicID int64
	topics      map[int64]*model.Topic
	topicStocks map[int64][]model.TopicStock
	mentions    []model.MentionRecord
	scores      map[int64]*model.MomentumScore
	portfolios  map[string]*model.Portfolio
	holdings    map[string]map[string]*model.Holding // sessionID → ticker → holding
	trades      []model.TradeRecord
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextTopicID: 1,
		topics:      make(map[int64]*model.Topic),
		topicStocks: make(map[int64][]model.TopicStock),
		scores:      make(map[int64]*model.MomentumScore),
		portfolios:  make(map[string]*model.Portfolio),
		holdings:    make(map[string]map[string]*model.Holding),
	}
}

// --- Topics ---

func (s *MemoryStore) UpsertTopic(_ context.Context, t *model.Topic) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.topics {
		if existing.Slug == t.Slug {
			updated := *t
			updated.ID = id
			s.topics[id] = &updated
			return id, nil
		}
	}

	id := s.nextTopicID
	s.nextTopicID++
	created := *t
	created.ID = id
	s.topics[id] = &created
	return id, nil
}

func (s *MemoryStore) UpsertTopicStock(_ context.Context, ts *model.TopicStock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stocks := s.topicStocks[ts.TopicID]
	for i, existing := range stocks {
		if existing.Ticker == ts.Ticker {
			stocks[i] = *ts
			return nil
		}
	}
	s.topicStocks[ts.TopicID] = append(stocks, *ts)
	return nil
}

func (s *MemoryStore) ListTopics(_ context.Context) ([]model.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	topics := make([]model.Topic, 0, len(s.topics))
	for _, t := range s.topics {
		if t.Active {
			topics = append(topics, *t)
		}
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].ID < topics[j].ID })
	return topics, nil
}

func (s *MemoryStore) GetTopicBySlug(_ context.Context, slug string) (*model.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.topics {
		if t.Slug == slug && t.Active {
			copy := *t
			return &copy, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListTopicStocks(_ context.Context, topicID int64) ([]model.TopicStock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stocks := append([]model.TopicStock(nil), s.topicStocks[topicID]...)
	sort.Slice(stocks, func(i, j int) bool { return stocks[i].Priority < stocks[j].Priority })
	return stocks, nil
}

// --- Mentions ---

func (s *MemoryStore) InsertMentionRecords(_ context.Context, recs []model.MentionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mentions = append(s.mentions, recs...)
	return nil
}

func (s *MemoryStore) SumMentionsSince(_ context.Context, topicID int64, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, m := range s.mentions {
		if m.TopicID == topicID && !m.CollectedAt.Before(since) {
			total += m.Count
		}
	}
	return total, nil
}

func (s *MemoryStore) DailyMentionTotals(_ context.Context, topicID int64, from, to time.Time) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := make(map[string]int64)
	for _, m := range s.mentions {
		if m.TopicID != topicID {
			continue
		}
		if m.CollectedAt.Before(from) || !m.CollectedAt.Before(to) {
			continue
		}
		day := m.CollectedAt.UTC().Format("2006-01-02")
		byDay[day] += m.Count
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	totals := make([]int64, 0, len(days))
	for _, day := range days {
		totals = append(totals, byDay[day])
	}
	return totals, nil
}

// --- Momentum scores ---

func (s *MemoryStore) UpsertMomentumScore(_ context.Context, sc *model.MomentumScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *sc
	s.scores[sc.TopicID] = &copy
	return nil
}

func (s *MemoryStore) ListMomentumScores(_ context.Context) ([]model.MomentumScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scores := make([]model.MomentumScore, 0, len(s.scores))
	for _, sc := range s.scores {
		scores = append(scores, *sc)
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].TopicID < scores[j].TopicID })
	return scores, nil
}

// --- Ledger ---

func (s *MemoryStore) EnsurePortfolio(_ context.Context, sessionID string, startingBalance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.portfolios[sessionID]; ok {
		return nil
	}
	s.portfolios[sessionID] = &model.Portfolio{
		SessionID:   sessionID,
		CashBalance: startingBalance,
	}
	return nil
}

func (s *MemoryStore) GetPortfolio(_ context.Context, sessionID string) (*model.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.portfolios[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *p
	return &copy, nil
}

func (s *MemoryStore) GetHolding(_ context.Context, sessionID, ticker string) (*model.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.holdings[sessionID][strings.ToUpper(ticker)]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *h
	return &copy, nil
}

func (s *MemoryStore) ListHoldings(_ context.Context, sessionID string) ([]model.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	holdings := make([]model.Holding, 0, len(s.holdings[sessionID]))
	for _, h := range s.holdings[sessionID] {
		holdings = append(holdings, *h)
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Ticker < holdings[j].Ticker })
	return holdings, nil
}

func (s *MemoryStore) ApplyTrade(_ context.Context, rec *model.TradeRecord, newCash decimal.Decimal, holding *model.Holding, deleteHolding bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.portfolios[rec.SessionID]
	if !ok {
		return ErrNotFound
	}

	// All three mutations happen under one lock: cash, holding, trade log.
	p.CashBalance = newCash

	if deleteHolding {
		delete(s.holdings[rec.SessionID], rec.Ticker)
	} else if holding != nil {
		if s.holdings[rec.SessionID] == nil {
			s.holdings[rec.SessionID] = make(map[string]*model.Holding)
		}
		copy := *holding
		s.holdings[rec.SessionID][holding.Ticker] = &copy
	}

	s.trades = append(s.trades, *rec)
	return nil
}

func (s *MemoryStore) ListTrades(_ context.Context, sessionID string, limit int) ([]model.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.TradeRecord
	for i := len(s.trades) - 1; i >= 0; i-- {
		if s.trades[i].SessionID != sessionID {
			continue
		}
		result = append(result, s.trades[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}
