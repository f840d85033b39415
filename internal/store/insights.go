package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"moodlog/internal/models"
)

// InsightStore persists one AI-generated narrative per (user, month). The
// UNIQUE (user_id, month) constraint resolves concurrent generation: the
// loser gets ErrConflict and re-fetches the winner's row.
type InsightStore struct {
	db *sqlx.DB
}

func NewInsightStore(db *sqlx.DB) *InsightStore {
	return &InsightStore{db: db}
}

// Find returns the stored insight for (user, month) or ErrNotFound.
func (s *InsightStore) Find(ctx context.Context, userID int, month string) (*models.MonthlyInsight, error) {
	var ins models.MonthlyInsight
	err := s.db.QueryRowxContext(ctx, `
		SELECT id, user_id, month, insight, total_entries, avg_mood, created_at
		FROM monthly_insights
		WHERE user_id = $1 AND month = $2`, userID, month).StructScan(&ins)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find insight: %w", err)
	}
	return &ins, nil
}

// Create inserts a new insight; ErrConflict when (user, month) already exists.
func (s *InsightStore) Create(ctx context.Context, userID int, month, text string, totalEntries int, avgMood float64) (*models.MonthlyInsight, error) {
	var ins models.MonthlyInsight
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO monthly_insights (user_id, month, insight, total_entries, avg_mood)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, month, insight, total_entries, avg_mood, created_at`,
		userID, month, text, totalEntries, avgMood).StructScan(&ins)
	if isUniqueViolation(err) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("create insight: %w", err)
	}
	return &ins, nil
}

// CountAll powers the admin dashboard.
func (s *InsightStore) CountAll(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowxContext(ctx, `SELECT COUNT(*) FROM monthly_insights`).Scan(&n)
	return n, err
}
