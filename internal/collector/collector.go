// Package collector gathers per-source mention counts for topics and
// feeds them to the momentum engine. Collectors are independent,
// best-effort producers: a failing source is logged and skipped, never
// fatal to the run.
package collector

import (
	"context"
	"strings"

	"github.com/Ntexler/trendvest/internal/model"
)

// Collector counts mentions of one topic from one data source over one
// time period.
type Collector interface {
	// Name identifies the source ("reddit", "news", ...).
	Name() string

	// Collect returns a mention record for the topic. Partial failures
	// inside a source (one subreddit erroring) reduce the count rather
	// than failing the call; a returned error means the source produced
	// nothing usable for this topic.
	Collect(ctx context.Context, topic model.Topic) (model.MentionRecord, error)
}

// buildQuery joins the topic's strongest keywords into a search query.
// Multi-word keywords are quoted.
func buildQuery(keywords []string) string {
	if len(keywords) > 5 {
		keywords = keywords[:5]
	}
	parts := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if strings.Contains(kw, " ") {
			parts = append(parts, `"`+kw+`"`)
		} else {
			parts = append(parts, kw)
		}
	}
	return strings.Join(parts, " OR ")
}
