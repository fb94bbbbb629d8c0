package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Ntexler/trendvest/internal/model"
)

const newsEverythingURL = "https://newsapi.org/v2/everything"

// ErrNotConfigured means the collector is missing credentials and should
// be skipped.
var ErrNotConfigured = errors.New("collector: not configured")

// NewsCollector counts article matches on NewsAPI over the last day.
type NewsCollector struct {
	client *http.Client
	apiKey string
}

// NewNewsCollector creates a NewsAPI mention collector. An empty apiKey
// yields a collector that reports ErrNotConfigured on every Collect.
func NewNewsCollector(apiKey string) *NewsCollector {
	return &NewsCollector{
		client: &http.Client{Timeout: 10 * time.Second},
		apiKey: apiKey,
	}
}

func (c *NewsCollector) Name() string { return "news" }

// Collect uses the API's totalResults as the mention count; one request
// per topic with pageSize=1 keeps the payload minimal.
func (c *NewsCollector) Collect(ctx context.Context, topic model.Topic) (model.MentionRecord, error) {
	if c.apiKey == "" {
		return model.MentionRecord{}, ErrNotConfigured
	}

	now := time.Now().UTC()
	from := now.Add(-24 * time.Hour)

	params := url.Values{
		"q":        {buildQuery(topic.Keywords)},
		"from":     {from.Format(time.RFC3339)},
		"language": {"en"},
		"pageSize": {"1"},
	}
	endpoint := newsEverythingURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.MentionRecord{}, err
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return model.MentionRecord{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.MentionRecord{}, fmt.Errorf("newsapi returned %d", resp.StatusCode)
	}

	var body struct {
		TotalResults int64 `json:"totalResults"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.MentionRecord{}, err
	}

	return model.MentionRecord{
		TopicID:     topic.ID,
		Source:      c.Name(),
		Count:       body.TotalResults,
		CollectedAt: now,
		PeriodStart: from,
		PeriodEnd:   now,
	}, nil
}
