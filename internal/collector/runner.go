package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Ntexler/trendvest/internal/metrics"
	"github.com/Ntexler/trendvest/internal/model"
	"github.com/Ntexler/trendvest/internal/momentum"
	"github.com/Ntexler/trendvest/internal/store"
	"github.com/Ntexler/trendvest/internal/stream"
)

// Runner drives one collection cycle: gather mention counts from every
// collector for every topic, persist them, then recompute momentum.
// It runs decoupled from request serving, on a fixed cadence.
type Runner struct {
	store      store.Store
	engine     *momentum.Engine
	collectors []Collector
	hub        *stream.Hub // optional; nil disables broadcasts
}

// NewRunner creates a collection runner.
func NewRunner(st store.Store, engine *momentum.Engine, collectors []Collector, hub *stream.Hub) *Runner {
	return &Runner{
		store:      st,
		engine:     engine,
		collectors: collectors,
		hub:        hub,
	}
}

// Run performs one full cycle. Collector failures are absorbed per
// (source, topic) pair; only store/listing failures propagate.
func (r *Runner) Run(ctx context.Context) error {
	start := time.Now()

	topics, err := r.store.ListTopics(ctx)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}

	var records []model.MentionRecord
	for _, c := range r.collectors {
		for _, topic := range topics {
			rec, err := c.Collect(ctx, topic)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				metrics.CollectorFailures.WithLabelValues(c.Name()).Inc()
				slog.Warn("collection failed", "source", c.Name(), "topic", topic.Slug, "err", err)
				continue
			}
			records = append(records, rec)
		}
	}

	if len(records) > 0 {
		if err := r.store.InsertMentionRecords(ctx, records); err != nil {
			return fmt.Errorf("save mentions: %w", err)
		}
	}

	scores, err := r.engine.CalculateAll(ctx)
	if err != nil {
		return fmt.Errorf("momentum: %w", err)
	}

	if r.hub != nil {
		slugByID := make(map[int64]string, len(topics))
		for _, t := range topics {
			slugByID[t.ID] = t.Slug
		}
		for _, sc := range scores {
			r.hub.Broadcast(stream.Message{
				Type:      "momentum_updated",
				Topic:     slugByID[sc.TopicID],
				Score:     sc.Score,
				Direction: sc.Direction,
			})
		}
	}

	slog.Info("collection cycle complete",
		"topics", len(topics),
		"mentions_saved", len(records),
		"scored", len(scores),
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
	return nil
}

// Start runs collection cycles on a fixed interval until ctx is done.
// Intended to be called in a goroutine from the server.
func (r *Runner) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Run(ctx); err != nil {
				slog.Error("collection cycle failed", "err", err)
			}
		}
	}
}
