package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ntexler/trendvest/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestUpsertTopic_UpdatesBySlug(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	id1, err := st.UpsertTopic(ctx, &model.Topic{Slug: "ai", Name: "AI", Active: true})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	id2, err := st.UpsertTopic(ctx, &model.Topic{Slug: "ai", Name: "Artificial Intelligence", Active: true})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id1 != id2 {
		t.Errorf("same slug should keep the same id: %d vs %d", id1, id2)
	}

	topic, err := st.GetTopicBySlug(ctx, "ai")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if topic.Name != "Artificial Intelligence" {
		t.Errorf("name = %q, update not applied", topic.Name)
	}

	topics, err := st.ListTopics(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(topics) != 1 {
		t.Errorf("upsert created a duplicate: %d topics", len(topics))
	}
}

func TestListTopics_ExcludesInactive(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	if _, err := st.UpsertTopic(ctx, &model.Topic{Slug: "active", Name: "Active", Active: true}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := st.UpsertTopic(ctx, &model.Topic{Slug: "dormant", Name: "Dormant", Active: false}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	topics, err := st.ListTopics(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(topics) != 1 || topics[0].Slug != "active" {
		t.Errorf("expected only the active topic, got %+v", topics)
	}

	if _, err := st.GetTopicBySlug(ctx, "dormant"); !errors.Is(err, ErrNotFound) {
		t.Errorf("inactive topic lookup should return ErrNotFound, got %v", err)
	}
}

func TestGetTopicBySlug_NotFound(t *testing.T) {
	st := NewMemoryStore()
	if _, err := st.GetTopicBySlug(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListTopicStocks_SortedByPriority(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	id, err := st.UpsertTopic(ctx, &model.Topic{Slug: "ai", Name: "AI", Active: true})
	if err != nil {
		t.Fatalf("upsert topic: %v", err)
	}
	for _, ts := range []model.TopicStock{
		{TopicID: id, Ticker: "MSFT", Priority: 2},
		{TopicID: id, Ticker: "NVDA", Priority: 1},
	} {
		if err := st.UpsertTopicStock(ctx, &ts); err != nil {
			t.Fatalf("upsert stock: %v", err)
		}
	}

	stocks, err := st.ListTopicStocks(ctx, id)
	if err != nil {
		t.Fatalf("list stocks: %v", err)
	}
	if len(stocks) != 2 || stocks[0].Ticker != "NVDA" {
		t.Errorf("expected priority order [NVDA MSFT], got %+v", stocks)
	}
}

func TestDailyMentionTotals_GroupsByCalendarDay(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	day := func(d, hour int) time.Time {
		return time.Date(2026, 3, d, hour, 0, 0, 0, time.UTC)
	}
	recs := []model.MentionRecord{
		{TopicID: 1, Source: "reddit", Count: 5, CollectedAt: day(3, 9)},
		{TopicID: 1, Source: "news", Count: 3, CollectedAt: day(3, 21)}, // same day, second source
		{TopicID: 1, Source: "reddit", Count: 7, CollectedAt: day(5, 12)},
		{TopicID: 2, Source: "reddit", Count: 99, CollectedAt: day(4, 12)}, // other topic
		{TopicID: 1, Source: "reddit", Count: 50, CollectedAt: day(9, 12)}, // outside range
	}
	if err := st.InsertMentionRecords(ctx, recs); err != nil {
		t.Fatalf("insert: %v", err)
	}

	totals, err := st.DailyMentionTotals(ctx, 1, day(1, 0), day(8, 0))
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	// Two days with records: 5+3 on the 3rd, 7 on the 5th. Days without
	// records contribute nothing.
	if len(totals) != 2 || totals[0] != 8 || totals[1] != 7 {
		t.Errorf("totals = %v, want [8 7]", totals)
	}
}

func TestSumMentionsSince(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	recs := []model.MentionRecord{
		{TopicID: 1, Source: "reddit", Count: 4, CollectedAt: base.Add(2 * time.Hour)},
		{TopicID: 1, Source: "news", Count: 6, CollectedAt: base.Add(8 * time.Hour)},
		{TopicID: 1, Source: "reddit", Count: 9, CollectedAt: base.Add(-1 * time.Hour)},
	}
	if err := st.InsertMentionRecords(ctx, recs); err != nil {
		t.Fatalf("insert: %v", err)
	}

	total, err := st.SumMentionsSince(ctx, 1, base)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if total != 10 {
		t.Errorf("total = %d, want 10", total)
	}
}

func TestEnsurePortfolio_Idempotent(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	if err := st.EnsurePortfolio(ctx, "s1", d(100000)); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	// Drain some cash, then ensure again: balance must not reset.
	rec := &model.TradeRecord{ID: "t1", SessionID: "s1", Ticker: "AAPL", Action: model.ActionBuy, Quantity: 1, Price: d(500), Total: d(500)}
	h := &model.Holding{SessionID: "s1", Ticker: "AAPL", Quantity: 1, AvgCost: d(500)}
	if err := st.ApplyTrade(ctx, rec, d(99500), h, false); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := st.EnsurePortfolio(ctx, "s1", d(100000)); err != nil {
		t.Fatalf("re-ensure: %v", err)
	}

	p, err := st.GetPortfolio(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !p.CashBalance.Equal(d(99500)) {
		t.Errorf("cash = %s, re-ensure must not reset the balance", p.CashBalance)
	}
}

func TestApplyTrade_DeleteHolding(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	if err := st.EnsurePortfolio(ctx, "s1", d(100000)); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	buy := &model.TradeRecord{ID: "t1", SessionID: "s1", Ticker: "AAPL", Action: model.ActionBuy, Quantity: 2, Price: d(50), Total: d(100)}
	if err := st.ApplyTrade(ctx, buy, d(99900), &model.Holding{SessionID: "s1", Ticker: "AAPL", Quantity: 2, AvgCost: d(50)}, false); err != nil {
		t.Fatalf("buy: %v", err)
	}

	sell := &model.TradeRecord{ID: "t2", SessionID: "s1", Ticker: "AAPL", Action: model.ActionSell, Quantity: 2, Price: d(55), Total: d(110)}
	if err := st.ApplyTrade(ctx, sell, d(100010), nil, true); err != nil {
		t.Fatalf("sell: %v", err)
	}

	if _, err := st.GetHolding(ctx, "s1", "AAPL"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected holding removed, got %v", err)
	}
	holdings, err := st.ListHoldings(ctx, "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(holdings) != 0 {
		t.Errorf("expected no holdings, got %d", len(holdings))
	}
}

func TestApplyTrade_UnknownSession(t *testing.T) {
	st := NewMemoryStore()
	rec := &model.TradeRecord{ID: "t1", SessionID: "ghost", Ticker: "AAPL", Action: model.ActionBuy, Quantity: 1, Price: d(50), Total: d(50)}
	if err := st.ApplyTrade(context.Background(), rec, d(99950), nil, false); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing portfolio, got %v", err)
	}
}

func TestListTrades_NewestFirstWithLimit(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	if err := st.EnsurePortfolio(ctx, "s1", d(100000)); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := st.EnsurePortfolio(ctx, "s2", d(100000)); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	for i, session := range []string{"s1", "s2", "s1", "s1"} {
		rec := &model.TradeRecord{
			ID:        string(rune('a' + i)),
			SessionID: session,
			Ticker:    "AAPL",
			Action:    model.ActionBuy,
			Quantity:  int64(i + 1),
			Price:     d(50),
			Total:     d(50),
		}
		if err := st.ApplyTrade(ctx, rec, d(100000), nil, false); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}

	trades, err := st.ListTrades(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	if trades[0].Quantity != 4 || trades[1].Quantity != 3 {
		t.Errorf("expected newest-first [4 3], got [%d %d]", trades[0].Quantity, trades[1].Quantity)
	}
}

func TestMomentumScores_UpsertReplaces(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	if err := st.UpsertMomentumScore(ctx, &model.MomentumScore{TopicID: 1, Score: 120, Direction: model.DirectionStable}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := st.UpsertMomentumScore(ctx, &model.MomentumScore{TopicID: 1, Score: 180, Direction: model.DirectionRising}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	scores, err := st.ListMomentumScores(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(scores) != 1 {
		t.Fatalf("expected one score row per topic, got %d", len(scores))
	}
	if scores[0].Score != 180 || scores[0].Direction != model.DirectionRising {
		t.Errorf("upsert did not replace: %+v", scores[0])
	}
}
