package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/Ntexler/trendvest/internal/model"
)

const redditSearchURL = "https://www.reddit.com/r/%s/search.json"

var defaultSubreddits = []string{"wallstreetbets", "stocks", "investing"}

// RedditCollector counts keyword mentions in subreddit search results
// over the last day, via Reddit's public JSON search endpoint.
type RedditCollector struct {
	client    *http.Client
	userAgent string
	delay     time.Duration // pause between subreddit requests
}

// NewRedditCollector creates a Reddit mention collector.
func NewRedditCollector() *RedditCollector {
	return &RedditCollector{
		client:    &http.Client{Timeout: 10 * time.Second},
		userAgent: "trendvest/1.0",
		delay:     time.Second,
	}
}

func (c *RedditCollector) Name() string { return "reddit" }

// Collect counts mentions across the topic's subreddits. A subreddit
// that errors contributes zero and the rest still count.
func (c *RedditCollector) Collect(ctx context.Context, topic model.Topic) (model.MentionRecord, error) {
	now := time.Now().UTC()
	query := buildQuery(topic.Keywords)

	subreddits := topic.Subreddits
	if len(subreddits) == 0 {
		subreddits = defaultSubreddits
	}

	var total int64
	for i, sub := range subreddits {
		if i > 0 {
			select {
			case <-time.After(c.delay):
			case <-ctx.Done():
				return model.MentionRecord{}, ctx.Err()
			}
		}

		count, err := c.searchSubreddit(ctx, sub, query)
		if err != nil {
			slog.Warn("reddit search failed", "subreddit", sub, "topic", topic.Slug, "err", err)
			continue
		}
		total += count
	}

	return model.MentionRecord{
		TopicID:     topic.ID,
		Source:      c.Name(),
		Count:       total,
		CollectedAt: now,
		PeriodStart: now.Add(-24 * time.Hour),
		PeriodEnd:   now,
	}, nil
}

func (c *RedditCollector) searchSubreddit(ctx context.Context, subreddit, query string) (int64, error) {
	params := url.Values{
		"q":           {query},
		"restrict_sr": {"1"},
		"sort":        {"new"},
		"t":           {"day"},
		"limit":       {"100"},
	}
	endpoint := fmt.Sprintf(redditSearchURL, url.PathEscape(subreddit)) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("reddit returned %d", resp.StatusCode)
	}

	var body struct {
		Data struct {
			Children []json.RawMessage `json:"children"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	return int64(len(body.Data.Children)), nil
}
