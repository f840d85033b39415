package models

import "time"

type User struct {
	ID              int        `db:"id" json:"id"`
	Email           string     `db:"email" json:"email"`         // Encrypted in DB
	EmailBlindIndex string     `db:"email_blind_index" json:"-"` // HMAC hash for lookup
	PasswordHash    string     `db:"password_hash" json:"-"`
	Name            *string    `db:"name" json:"name,omitempty"`
	IsAdmin         bool       `db:"is_admin" json:"is_admin"`
	IsActive        bool       `db:"is_active" json:"is_active"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
	LastLoginAt     *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
}

type JournalEntry struct {
	ID        int       `db:"id" json:"id"`
	UserID    int       `db:"user_id" json:"user_id"`
	EntryDate time.Time `db:"entry_date" json:"entry_date"`
	MoodScore int       `db:"mood_score" json:"mood_score"`
	Note      *string   `db:"note" json:"note,omitempty"` // Encrypted in DB
	Tags      []string  `db:"-" json:"tags"`
	TagsRaw   *string   `db:"tags" json:"-"` // JSON array column
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type MonthlyInsight struct {
	ID           int       `db:"id" json:"id"`
	UserID       int       `db:"user_id" json:"user_id"`
	Month        string    `db:"month" json:"month"` // YYYY-MM
	Insight      string    `db:"insight" json:"insight"`
	TotalEntries int       `db:"total_entries" json:"total_entries"`
	AvgMood      float64   `db:"avg_mood" json:"avg_mood"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// AIUsage is one telemetry row per summarization attempt, inspected from the
// admin console for cost tracking.
type AIUsage struct {
	ID             string    `db:"id" json:"id"`
	UserID         int       `db:"user_id" json:"user_id"`
	Provider       string    `db:"provider" json:"provider"`
	Month          string    `db:"month" json:"month"`
	PromptTokens   int       `db:"prompt_tokens" json:"prompt_tokens"`
	ResponseTokens int       `db:"response_tokens" json:"response_tokens"`
	TotalTokens    int       `db:"total_tokens" json:"total_tokens"`
	ResponseTimeMs int       `db:"response_time_ms" json:"response_time_ms"`
	Success        bool      `db:"success" json:"success"`
	ErrorMessage   *string   `db:"error_message" json:"error_message,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
