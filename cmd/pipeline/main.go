// Command pipeline runs one collection + momentum cycle against the
// database and exits. Intended for cron or manual runs.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/Ntexler/trendvest/internal/collector"
	"github.com/Ntexler/trendvest/internal/momentum"
	"github.com/Ntexler/trendvest/internal/seed"
	"github.com/Ntexler/trendvest/internal/store"
)

func main() {
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	source := flag.String("source", "", "run only one collector: reddit or news")
	momentumOnly := flag.Bool("momentum-only", false, "skip collection, recompute momentum only")
	seedOnly := flag.Bool("seed-only", false, "seed the topic registry and exit")
	timeout := flag.Duration("timeout", 15*time.Minute, "overall run timeout")
	flag.Parse()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		slog.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	st := store.NewPostgresStore(pool)

	if _, err := seed.Topics(ctx, st); err != nil {
		slog.Error("topic seeding failed", "err", err)
		os.Exit(1)
	}
	if *seedOnly {
		return
	}

	engine := momentum.NewEngine(st)

	if *momentumOnly {
		if _, err := engine.CalculateAll(ctx); err != nil {
			slog.Error("momentum run failed", "err", err)
			os.Exit(1)
		}
		return
	}

	var collectors []collector.Collector
	if *source == "" || *source == "reddit" {
		collectors = append(collectors, collector.NewRedditCollector())
	}
	newsKey := os.Getenv("NEWS_API_KEY")
	if *source == "news" && newsKey == "" {
		slog.Error("NEWS_API_KEY is required for the news source")
		os.Exit(1)
	}
	if *source == "news" || (*source == "" && newsKey != "") {
		collectors = append(collectors, collector.NewNewsCollector(newsKey))
	}
	if len(collectors) == 0 {
		slog.Error("unknown source", "source", *source)
		os.Exit(1)
	}

	runner := collector.NewRunner(st, engine, collectors, nil)
	if err := runner.Run(ctx); err != nil {
		slog.Error("pipeline failed", "err", err)
		os.Exit(1)
	}
}
