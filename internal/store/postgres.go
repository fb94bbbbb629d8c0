package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Ntexler/trendvest/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// --- Topics ---

func (s *PostgresStore) UpsertTopic(ctx context.Context, t *model.Topic) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO topics (slug, name, sector, keywords, subreddits, active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (slug) DO UPDATE SET
		     name = EXCLUDED.name,
		     sector = EXCLUDED.sector,
		     keywords = EXCLUDED.keywords,
		     subreddits = EXCLUDED.subreddits,
		     active = EXCLUDED.active
		 RETURNING id`,
		t.Slug, t.Name, t.Sector, t.Keywords, t.Subreddits, t.Active,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert topic %s: %w", t.Slug, err)
	}
	return id, nil
}

func (s *PostgresStore) UpsertTopicStock(ctx context.Context, ts *model.TopicStock) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO topic_stocks (topic_id, ticker, company_name, relevance_note, priority)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (topic_id, ticker) DO UPDATE SET
		     company_name = EXCLUDED.company_name,
		     relevance_note = EXCLUDED.relevance_note,
		     priority = EXCLUDED.priority`,
		ts.TopicID, ts.Ticker, ts.CompanyName, ts.RelevanceNote, ts.Priority,
	)
	return err
}

func (s *PostgresStore) ListTopics(ctx context.Context) ([]model.Topic, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, slug, name, sector, keywords, subreddits, active
		 FROM topics WHERE active = true ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topics []model.Topic
	for rows.Next() {
		var t model.Topic
		if err := rows.Scan(&t.ID, &t.Slug, &t.Name, &t.Sector, &t.Keywords, &t.Subreddits, &t.Active); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

func (s *PostgresStore) GetTopicBySlug(ctx context.Context, slug string) (*model.Topic, error) {
	var t model.Topic
	err := s.pool.QueryRow(ctx,
		`SELECT id, slug, name, sector, keywords, subreddits, active
		 FROM topics WHERE slug = $1 AND active = true`, slug).
		Scan(&t.ID, &t.Slug, &t.Name, &t.Sector, &t.Keywords, &t.Subreddits, &t.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get topic %s: %w", slug, err)
	}
	return &t, nil
}

func (s *PostgresStore) ListTopicStocks(ctx context.Context, topicID int64) ([]model.TopicStock, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT topic_id, ticker, company_name, relevance_note, priority
		 FROM topic_stocks WHERE topic_id = $1 ORDER BY priority`, topicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stocks []model.TopicStock
	for rows.Next() {
		var ts model.TopicStock
		if err := rows.Scan(&ts.TopicID, &ts.Ticker, &ts.CompanyName, &ts.RelevanceNote, &ts.Priority); err != nil {
			return nil, err
		}
		stocks = append(stocks, ts)
	}
	return stocks, rows.Err()
}

// --- Mentions ---

func (s *PostgresStore) InsertMentionRecords(ctx context.Context, recs []model.MentionRecord) error {
	for _, m := range recs {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO topic_mentions (topic_id, source, mention_count, collected_at, period_start, period_end)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			m.TopicID, m.Source, m.Count, m.CollectedAt, m.PeriodStart, m.PeriodEnd,
		)
		if err != nil {
			return fmt.Errorf("insert mention for topic %d: %w", m.TopicID, err)
		}
	}
	return nil
}

func (s *PostgresStore) SumMentionsSince(ctx context.Context, topicID int64, since time.Time) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(mention_count), 0)
		 FROM topic_mentions
		 WHERE topic_id = $1 AND collected_at >= $2`, topicID, since).Scan(&total)
	return total, err
}

func (s *PostgresStore) DailyMentionTotals(ctx context.Context, topicID int64, from, to time.Time) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT SUM(mention_count)
		 FROM topic_mentions
		 WHERE topic_id = $1 AND collected_at >= $2 AND collected_at < $3
		 GROUP BY DATE(collected_at AT TIME ZONE 'UTC')
		 ORDER BY DATE(collected_at AT TIME ZONE 'UTC')`, topicID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []int64
	for rows.Next() {
		var total int64
		if err := rows.Scan(&total); err != nil {
			return nil, err
		}
		totals = append(totals, total)
	}
	return totals, rows.Err()
}

// --- Momentum scores ---

func (s *PostgresStore) UpsertMomentumScore(ctx context.Context, sc *model.MomentumScore) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO momentum_scores (topic_id, score, mention_count_today, mention_avg_7d, direction, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (topic_id) DO UPDATE SET
		     score = EXCLUDED.score,
		     mention_count_today = EXCLUDED.mention_count_today,
		     mention_avg_7d = EXCLUDED.mention_avg_7d,
		     direction = EXCLUDED.direction,
		     updated_at = EXCLUDED.updated_at`,
		sc.TopicID, sc.Score, sc.MentionsToday, sc.AvgMentions7d, sc.Direction, sc.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) ListMomentumScores(ctx context.Context) ([]model.MomentumScore, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT topic_id, score, mention_count_today, mention_avg_7d, direction, updated_at
		 FROM momentum_scores ORDER BY topic_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []model.MomentumScore
	for rows.Next() {
		var sc model.MomentumScore
		if err := rows.Scan(&sc.TopicID, &sc.Score, &sc.MentionsToday, &sc.AvgMentions7d, &sc.Direction, &sc.UpdatedAt); err != nil {
			return nil, err
		}
		scores = append(scores, sc)
	}
	return scores, rows.Err()
}

// --- Ledger ---

func (s *PostgresStore) EnsurePortfolio(ctx context.Context, sessionID string, startingBalance decimal.Decimal) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO paper_portfolios (session_id, cash_balance)
		 VALUES ($1, $2::NUMERIC)
		 ON CONFLICT (session_id) DO NOTHING`,
		sessionID, startingBalance.String(),
	)
	return err
}

func (s *PostgresStore) GetPortfolio(ctx context.Context, sessionID string) (*model.Portfolio, error) {
	var p model.Portfolio
	var cash string
	err := s.pool.QueryRow(ctx,
		`SELECT session_id, cash_balance::TEXT FROM paper_portfolios WHERE session_id = $1`,
		sessionID).Scan(&p.SessionID, &cash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get portfolio %s: %w", sessionID, err)
	}
	p.CashBalance, _ = decimal.NewFromString(cash)
	return &p, nil
}

func (s *PostgresStore) GetHolding(ctx context.Context, sessionID, ticker string) (*model.Holding, error) {
	var h model.Holding
	var avgCost string
	err := s.pool.QueryRow(ctx,
		`SELECT session_id, ticker, quantity, avg_cost::TEXT
		 FROM paper_holdings WHERE session_id = $1 AND ticker = $2`,
		sessionID, ticker).Scan(&h.SessionID, &h.Ticker, &h.Quantity, &avgCost)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get holding %s/%s: %w", sessionID, ticker, err)
	}
	h.AvgCost, _ = decimal.NewFromString(avgCost)
	return &h, nil
}

func (s *PostgresStore) ListHoldings(ctx context.Context, sessionID string) ([]model.Holding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT session_id, ticker, quantity, avg_cost::TEXT
		 FROM paper_holdings WHERE session_id = $1 ORDER BY ticker`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holdings []model.Holding
	for rows.Next() {
		var h model.Holding
		var avgCost string
		if err := rows.Scan(&h.SessionID, &h.Ticker, &h.Quantity, &avgCost); err != nil {
			return nil, err
		}
		h.AvgCost, _ = decimal.NewFromString(avgCost)
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// ApplyTrade commits the cash update, holding upsert/delete, and trade
// insert in one transaction: all three land or none do. Serialization of
// same-session trades is the trade service's job (per-session lock).
func (s *PostgresStore) ApplyTrade(ctx context.Context, rec *model.TradeRecord, newCash decimal.Decimal, holding *model.Holding, deleteHolding bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin trade tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE paper_portfolios SET cash_balance = $2::NUMERIC WHERE session_id = $1`,
		rec.SessionID, newCash.String(),
	)
	if err != nil {
		return fmt.Errorf("update cash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	switch {
	case deleteHolding:
		if _, err := tx.Exec(ctx,
			`DELETE FROM paper_holdings WHERE session_id = $1 AND ticker = $2`,
			rec.SessionID, rec.Ticker); err != nil {
			return fmt.Errorf("delete holding: %w", err)
		}
	case holding != nil:
		if _, err := tx.Exec(ctx,
			`INSERT INTO paper_holdings (session_id, ticker, quantity, avg_cost)
			 VALUES ($1, $2, $3, $4::NUMERIC)
			 ON CONFLICT (session_id, ticker) DO UPDATE SET
			     quantity = EXCLUDED.quantity,
			     avg_cost = EXCLUDED.avg_cost`,
			holding.SessionID, holding.Ticker, holding.Quantity, holding.AvgCost.String()); err != nil {
			return fmt.Errorf("upsert holding: %w", err)
		}
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO paper_trades (id, session_id, ticker, action, quantity, price, total, executed_at)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8)`,
		rec.ID, rec.SessionID, rec.Ticker, rec.Action, rec.Quantity,
		rec.Price.String(), rec.Total.String(), rec.ExecutedAt); err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) ListTrades(ctx context.Context, sessionID string, limit int) ([]model.TradeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, ticker, action, quantity, price::TEXT, total::TEXT, executed_at
		 FROM paper_trades
		 WHERE session_id = $1
		 ORDER BY executed_at DESC
		 LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []model.TradeRecord
	for rows.Next() {
		var t model.TradeRecord
		var price, total string
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Ticker, &t.Action, &t.Quantity, &price, &total, &t.ExecutedAt); err != nil {
			return nil, err
		}
		t.Price, _ = decimal.NewFromString(price)
		t.Total, _ = decimal.NewFromString(total)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
