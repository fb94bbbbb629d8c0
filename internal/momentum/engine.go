// Package momentum converts accumulated mention history into a normalized
// score and a 3-way trend direction per topic.
//
// Formula: score = (mentionsToday / avgMentions7d) * 100
//
// Direction:
//
//	score > 150  →  rising   (50%+ above the weekly baseline)
//	score > 80   →  stable   (within normal range)
//	score <= 80  →  falling  (below the baseline)
package momentum

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Ntexler/trendvest/internal/metrics"
	"github.com/Ntexler/trendvest/internal/model"
	"github.com/Ntexler/trendvest/internal/store"
)

const (
	// RisingThreshold is the score above which a topic is classified rising.
	RisingThreshold = 150.0

	// FallingThreshold is the score at or below which a topic is falling.
	FallingThreshold = 80.0

	// coldStartScore is assigned to a topic with current mentions but no
	// prior-week history: a strong signal, not a division by zero.
	coldStartScore = 200.0

	maxConcurrentTopics = 4
)

// Engine recomputes momentum scores from mention history. Scoring is a
// pure function of the history as of "now": re-running it over the same
// records always produces the same rows except for UpdatedAt.
type Engine struct {
	store store.Store
	now   func() time.Time
}

// NewEngine creates a momentum engine over the given store.
func NewEngine(st store.Store) *Engine {
	return &Engine{store: st, now: time.Now}
}

// CalculateAll recomputes the score for every active topic and upserts the
// results. Topics are scored concurrently; a single topic's failure is
// logged and skipped, never propagated — momentum computation does not
// fail outward. The returned slice holds the scores that were written.
func (e *Engine) CalculateAll(ctx context.Context) ([]model.MomentumScore, error) {
	start := e.now()

	topics, err := e.store.ListTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}

	var (
		mu      sync.Mutex
		results []model.MomentumScore
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentTopics)
	for _, topic := range topics {
		topic := topic
		g.Go(func() error {
			sc, err := e.calculateTopic(gctx, topic.ID)
			if err != nil {
				slog.Warn("momentum calculation failed", "topic", topic.Slug, "err", err)
				return nil
			}
			mu.Lock()
			results = append(results, *sc)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	var rising, stable, falling int
	for _, r := range results {
		switch r.Direction {
		case model.DirectionRising:
			rising++
		case model.DirectionStable:
			stable++
		default:
			falling++
		}
	}
	metrics.MomentumRunDuration.Observe(e.now().Sub(start).Seconds())
	slog.Info("momentum run complete",
		"topics", len(results),
		"rising", rising,
		"stable", stable,
		"falling", falling,
	)

	return results, nil
}

// calculateTopic scores one topic against its full mention history and
// replaces its score row. The upsert is a whole-row replace, so concurrent
// recomputation of the same topic resolves as last-writer-wins.
func (e *Engine) calculateTopic(ctx context.Context, topicID int64) (*model.MomentumScore, error) {
	now := e.now().UTC()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekAgo := todayStart.AddDate(0, 0, -7)

	// Today = calendar day in UTC, not a rolling 24h window.
	today, err := e.store.SumMentionsSince(ctx, topicID, todayStart)
	if err != nil {
		return nil, fmt.Errorf("sum today: %w", err)
	}

	// Baseline = mean of daily totals over the 7 calendar days strictly
	// preceding today. Zero records in the whole window means avg7d = 0.
	dailyTotals, err := e.store.DailyMentionTotals(ctx, topicID, weekAgo, todayStart)
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}

	avg7d := 0.0
	if len(dailyTotals) > 0 {
		var sum int64
		for _, t := range dailyTotals {
			sum += t
		}
		avg7d = float64(sum) / float64(len(dailyTotals))
	}

	var score float64
	switch {
	case avg7d > 0:
		score = float64(today) / avg7d * 100
	case today > 0:
		score = coldStartScore
	default:
		score = 0
	}

	direction := model.DirectionFalling
	switch {
	case score > RisingThreshold:
		direction = model.DirectionRising
	case score > FallingThreshold:
		direction = model.DirectionStable
	}

	sc := &model.MomentumScore{
		TopicID:       topicID,
		Score:         round1(score),
		MentionsToday: today,
		AvgMentions7d: round1(avg7d),
		Direction:     direction,
		UpdatedAt:     now,
	}
	if err := e.store.UpsertMomentumScore(ctx, sc); err != nil {
		return nil, fmt.Errorf("upsert score: %w", err)
	}
	return sc, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
