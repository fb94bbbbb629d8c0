// Package seed loads the curated topic registry into the store. The
// registry ships embedded in the binary and seeding is idempotent, so it
// runs safely on every startup.
package seed

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Ntexler/trendvest/internal/model"
	"github.com/Ntexler/trendvest/internal/store"
)

//go:embed topics.json
var topicsJSON []byte

type topicFile struct {
	Topics []topicEntry `json:"topics"`
}

type topicEntry struct {
	Slug       string       `json:"slug"`
	Name       string       `json:"name"`
	Sector     string       `json:"sector"`
	Keywords   []string     `json:"keywords"`
	Subreddits []string     `json:"subreddits"`
	Stocks     []stockEntry `json:"stocks"`
}

type stockEntry struct {
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	Note     string `json:"note"`
	Priority int    `json:"priority"`
}

// Topics upserts every embedded topic and its stock mappings. Returns the
// number of topics seeded.
func Topics(ctx context.Context, st store.Store) (int, error) {
	var file topicFile
	if err := json.Unmarshal(topicsJSON, &file); err != nil {
		return 0, fmt.Errorf("parse embedded topics: %w", err)
	}

	for _, entry := range file.Topics {
		id, err := st.UpsertTopic(ctx, &model.Topic{
			Slug:       entry.Slug,
			Name:       entry.Name,
			Sector:     entry.Sector,
			Keywords:   entry.Keywords,
			Subreddits: entry.Subreddits,
			Active:     true,
		})
		if err != nil {
			return 0, fmt.Errorf("seed topic %s: %w", entry.Slug, err)
		}

		for _, stock := range entry.Stocks {
			if err := st.UpsertTopicStock(ctx, &model.TopicStock{
				TopicID:       id,
				Ticker:        stock.Ticker,
				CompanyName:   stock.Name,
				RelevanceNote: stock.Note,
				Priority:      stock.Priority,
			}); err != nil {
				return 0, fmt.Errorf("seed stock %s/%s: %w", entry.Slug, stock.Ticker, err)
			}
		}
	}

	slog.Info("topics seeded", "count", len(file.Topics))
	return len(file.Topics), nil
}
