package seed

import (
	"context"
	"testing"

	"github.com/Ntexler/trendvest/internal/store"
)

func TestTopics_SeedsEmbeddedCatalog(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	n, err := Topics(ctx, st)
	if err != nil {
		t.Fatalf("Topics: %v", err)
	}
	if n == 0 {
		t.Fatal("expected at least one seeded topic")
	}

	topics, err := st.ListTopics(ctx)
	if err != nil {
		t.Fatalf("ListTopics: %v", err)
	}
	if len(topics) != n {
		t.Errorf("seeded %d topics but store lists %d", n, len(topics))
	}

	// Every topic must be searchable and carry at least one mapped stock.
	for _, topic := range topics {
		if len(topic.Keywords) == 0 {
			t.Errorf("topic %s has no keywords", topic.Slug)
		}
		stocks, err := st.ListTopicStocks(ctx, topic.ID)
		if err != nil {
			t.Fatalf("ListTopicStocks(%s): %v", topic.Slug, err)
		}
		if len(stocks) == 0 {
			t.Errorf("topic %s has no mapped stocks", topic.Slug)
		}
	}

	ai, err := st.GetTopicBySlug(ctx, "ai")
	if err != nil {
		t.Fatalf("expected the ai topic in the catalog: %v", err)
	}
	if ai.Sector == "" {
		t.Error("seeded topic missing sector")
	}
}

func TestTopics_Idempotent(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	first, err := Topics(ctx, st)
	if err != nil {
		t.Fatalf("first seed: %v", err)
	}
	second, err := Topics(ctx, st)
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if first != second {
		t.Errorf("seed counts differ across runs: %d vs %d", first, second)
	}

	topics, err := st.ListTopics(ctx)
	if err != nil {
		t.Fatalf("ListTopics: %v", err)
	}
	if len(topics) != first {
		t.Errorf("re-seeding duplicated topics: %d listed, %d seeded", len(topics), first)
	}

	for _, topic := range topics {
		stocks, err := st.ListTopicStocks(ctx, topic.ID)
		if err != nil {
			t.Fatalf("ListTopicStocks: %v", err)
		}
		seen := make(map[string]bool, len(stocks))
		for _, s := range stocks {
			if seen[s.Ticker] {
				t.Errorf("topic %s has duplicate stock %s after re-seed", topic.Slug, s.Ticker)
			}
			seen[s.Ticker] = true
		}
	}
}
