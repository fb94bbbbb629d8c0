package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/Ntexler/trendvest/internal/collector"
	"github.com/Ntexler/trendvest/internal/metrics"
	"github.com/Ntexler/trendvest/internal/momentum"
	"github.com/Ntexler/trendvest/internal/pricing"
	"github.com/Ntexler/trendvest/internal/seed"
	"github.com/Ntexler/trendvest/internal/store"
	"github.com/Ntexler/trendvest/internal/stream"
	"github.com/Ntexler/trendvest/internal/trade"
	"github.com/Ntexler/trendvest/internal/trends"
)

func main() {
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Seed topic registry (idempotent) ---
	if _, err := seed.Topics(context.Background(), st); err != nil {
		slog.Error("topic seeding failed", "err", err)
		os.Exit(1)
	}

	// --- Price cache over Yahoo Finance ---
	priceCache := pricing.NewCache(pricing.NewYahooSource())

	// --- WebSocket hub ---
	hub := stream.NewHub()
	go hub.Run()

	// --- Services ---
	tradeSvc := trade.NewService(st, priceCache, hub)
	trendsSvc := trends.NewService(st, priceCache)
	engine := momentum.NewEngine(st)

	// --- Background collection, decoupled from request serving ---
	collectors := []collector.Collector{collector.NewRedditCollector()}
	if key := os.Getenv("NEWS_API_KEY"); key != "" {
		collectors = append(collectors, collector.NewNewsCollector(key))
	}
	runner := collector.NewRunner(st, engine, collectors, hub)

	runCtx, stopRunner := context.WithCancel(context.Background())
	defer stopRunner()
	if raw := os.Getenv("COLLECT_INTERVAL"); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil {
			slog.Error("invalid COLLECT_INTERVAL", "value", raw, "err", err)
			os.Exit(1)
		}
		go runner.Start(runCtx, interval)
		slog.Info("collection scheduler started", "interval", interval.String())
	}

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/api/health", trendsSvc.Health)

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time trade/momentum updates.
		r.Get("/ws", hub.HandleWS)

		// Topic discovery.
		r.Get("/trends", trendsSvc.ListTrends)
		r.Get("/trends/{slug}", trendsSvc.GetTrend)

		// Prices.
		r.Get("/stocks/{ticker}/price", trendsSvc.GetStockPrice)
		r.Post("/prices", trendsSvc.BatchPrices)
		r.Post("/admin/cache/clear", trendsSvc.ClearCache)

		// Paper trading.
		r.Post("/paper/trade", tradeSvc.ExecuteTrade)
		r.Get("/paper/portfolio/{sessionID}", tradeSvc.GetPortfolio)
		r.Get("/paper/history/{sessionID}", tradeSvc.GetHistory)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("trendvest listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopRunner()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down trendvest...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("trendvest stopped")
}
