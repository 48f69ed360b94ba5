package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sid0791/Health-AI-V1-sub003/pkg/models"
)

// Store records and queries per-request usage, cost, and savings.
type Store interface {
	// Record stores a usage record.
	Record(ctx context.Context, rec models.UsageRecord) error
	// CountByUserSince returns how many requests a user made since a given time.
	CountByUserSince(ctx context.Context, userID string, since time.Time) (int, error)
	// TotalTokensByUser returns total tokens used by a user since a given time.
	TotalTokensByUser(ctx context.Context, userID string, since time.Time) (int64, error)
	// Summary returns aggregated usage, optionally filtered by user.
	Summary(ctx context.Context, userID string) ([]models.UsageSummary, error)
	// CostMetrics returns the per-user cost and savings view.
	CostMetrics(ctx context.Context, userID string) (models.CostMetrics, error)
	// Close releases resources.
	Close() error
}

// SQLiteStore implements Store with a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS usage_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	category TEXT NOT NULL,
	model TEXT NOT NULL,
	source TEXT NOT NULL,
	prompt_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	total_tokens INTEGER NOT NULL,
	cost REAL NOT NULL DEFAULT 0,
	saved_cost REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_usage_user_time ON usage_records(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_usage_source ON usage_records(source);
`

// New creates a SQLiteStore and runs auto-migration.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open usage db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate usage db: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Record stores a usage record.
func (s *SQLiteStore) Record(ctx context.Context, rec models.UsageRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_records (user_id, category, model, source, prompt_tokens, completion_tokens, total_tokens, cost, saved_cost, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.Category, rec.Model, string(rec.Source),
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens,
		rec.Cost, rec.SavedCost, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// CountByUserSince returns how many requests a user made since a given time.
func (s *SQLiteStore) CountByUserSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM usage_records WHERE user_id = ? AND created_at >= ?`,
		userID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count usage: %w", err)
	}
	return count, nil
}

// TotalTokensByUser returns total tokens used by a user since a given time.
func (s *SQLiteStore) TotalTokensByUser(ctx context.Context, userID string, since time.Time) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_tokens), 0) FROM usage_records WHERE user_id = ? AND created_at >= ?`,
		userID, since,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total tokens: %w", err)
	}
	return total, nil
}

// Summary returns aggregated usage grouped by user and category.
func (s *SQLiteStore) Summary(ctx context.Context, userID string) ([]models.UsageSummary, error) {
	query := `SELECT user_id, category, COUNT(*), COALESCE(SUM(total_tokens),0), COALESCE(SUM(cost),0), COALESCE(SUM(saved_cost),0)
		 FROM usage_records`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` GROUP BY user_id, category ORDER BY user_id, category`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.UsageSummary
	for rows.Next() {
		var u models.UsageSummary
		if err := rows.Scan(&u.UserID, &u.Category, &u.RequestCount, &u.TotalTokens, &u.TotalCost, &u.TotalSaved); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, u)
	}
	return summaries, rows.Err()
}

// CostMetrics returns the per-user cost and savings view, split by the
// path that served each request.
func (s *SQLiteStore) CostMetrics(ctx context.Context, userID string) (models.CostMetrics, error) {
	m := models.CostMetrics{UserID: userID}

	rows, err := s.db.QueryContext(ctx,
		`SELECT source, COUNT(*), COALESCE(SUM(total_tokens),0), COALESCE(SUM(cost),0), COALESCE(SUM(saved_cost),0)
		 FROM usage_records WHERE user_id = ? GROUP BY source`,
		userID,
	)
	if err != nil {
		return m, fmt.Errorf("cost metrics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var source string
		var count, tokens int
		var cost, saved float64
		if err := rows.Scan(&source, &count, &tokens, &cost, &saved); err != nil {
			return m, fmt.Errorf("scan cost metrics: %w", err)
		}
		m.RequestCount += count
		m.TotalTokens += tokens
		m.TotalCost += cost
		m.TotalSaved += saved
		switch models.UsageSource(source) {
		case models.UsageCache:
			m.CacheHits = count
			m.CacheSaved = saved
		case models.UsageDedup:
			m.DedupedCount = count
			m.DedupSaved = saved
		case models.UsageBatch:
			m.BatchedCount = count
			m.BatchSaved = saved
		case models.UsageDirect:
			m.DirectCount = count
		}
	}
	return m, rows.Err()
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
