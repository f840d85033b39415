package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"moodlog/internal/models"
)

// UsageStore records one row per AI summarization attempt. The admin console
// reads it for cost and reliability telemetry; nothing in the request path
// ever depends on it.
type UsageStore struct {
	db *sqlx.DB
}

func NewUsageStore(db *sqlx.DB) *UsageStore {
	return &UsageStore{db: db}
}

func (s *UsageStore) Record(ctx context.Context, u models.AIUsage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_usage (id, user_id, provider, month, prompt_tokens, response_tokens,
			total_tokens, response_time_ms, success, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID, u.UserID, u.Provider, u.Month, u.PromptTokens, u.ResponseTokens,
		u.TotalTokens, u.ResponseTimeMs, u.Success, u.ErrorMessage)
	if err != nil {
		return fmt.Errorf("record ai usage: %w", err)
	}
	return nil
}

// UsageFilter narrows admin queries; zero values mean "any".
type UsageFilter struct {
	UserID   int
	Provider string
	Since    time.Time
	Until    time.Time
}

func (f UsageFilter) where() (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != 0 {
		add("user_id = $%d", f.UserID)
	}
	if f.Provider != "" {
		add("provider = $%d", f.Provider)
	}
	if !f.Since.IsZero() {
		add("created_at >= $%d", f.Since)
	}
	if !f.Until.IsZero() {
		add("created_at <= $%d", f.Until)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns a page of usage rows, newest first, plus the unpaged total.
func (s *UsageStore) List(ctx context.Context, f UsageFilter, limit, offset int) ([]models.AIUsage, int, error) {
	where, args := f.where()

	var total int
	if err := s.db.QueryRowxContext(ctx, `SELECT COUNT(*) FROM ai_usage`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ai usage: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, provider, month, prompt_tokens, response_tokens,
			total_tokens, response_time_ms, success, error_message, created_at
		FROM ai_usage%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	var out []models.AIUsage
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list ai usage: %w", err)
	}
	return out, total, nil
}

// ProviderSummary is one per-provider rollup row.
type ProviderSummary struct {
	Provider    string `db:"provider" json:"provider"`
	Calls       int    `db:"calls" json:"calls"`
	TotalTokens int    `db:"total_tokens" json:"total_tokens"`
}

// UsageSummary aggregates the filtered rows for the admin dashboard.
type UsageSummary struct {
	TotalCalls        int               `json:"total_calls"`
	SuccessfulCalls   int               `json:"successful_calls"`
	FailedCalls       int               `json:"failed_calls"`
	TotalTokens       int               `json:"total_tokens"`
	PromptTokens      int               `json:"prompt_tokens"`
	ResponseTokens    int               `json:"response_tokens"`
	AvgResponseTimeMs float64           `json:"avg_response_time_ms"`
	ByProvider        []ProviderSummary `json:"by_provider"`
}

func (s *UsageStore) Summary(ctx context.Context, f UsageFilter) (*UsageSummary, error) {
	where, args := f.where()

	var sum UsageSummary
	err := s.db.QueryRowxContext(ctx, `
		SELECT COUNT(*),
			COALESCE(COUNT(*) FILTER (WHERE success), 0),
			COALESCE(COUNT(*) FILTER (WHERE NOT success), 0),
			COALESCE(SUM(total_tokens), 0),
			COALESCE(SUM(prompt_tokens), 0),
			COALESCE(SUM(response_tokens), 0),
			COALESCE(AVG(response_time_ms), 0)
		FROM ai_usage`+where, args...).Scan(
		&sum.TotalCalls, &sum.SuccessfulCalls, &sum.FailedCalls,
		&sum.TotalTokens, &sum.PromptTokens, &sum.ResponseTokens, &sum.AvgResponseTimeMs)
	if err != nil {
		return nil, fmt.Errorf("ai usage summary: %w", err)
	}

	query := `
		SELECT provider, COUNT(*) AS calls, COALESCE(SUM(total_tokens), 0) AS total_tokens
		FROM ai_usage` + where + `
		GROUP BY provider
		ORDER BY calls DESC`
	if err := s.db.SelectContext(ctx, &sum.ByProvider, query, args...); err != nil {
		return nil, fmt.Errorf("ai usage by provider: %w", err)
	}
	return &sum, nil
}

// CountAll powers the admin dashboard.
func (s *UsageStore) CountAll(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowxContext(ctx, `SELECT COUNT(*) FROM ai_usage`).Scan(&n)
	return n, err
}
