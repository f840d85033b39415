package handlers

import (
	"time"

	"moodlog/internal/models"
)

// userDTO keeps password hashes and blind indexes out of every response and
// renders timestamps as RFC3339 strings.
type userDTO struct {
	ID          int     `json:"id"`
	Email       string  `json:"email"`
	Name        *string `json:"name,omitempty"`
	IsAdmin     bool    `json:"is_admin"`
	IsActive    bool    `json:"is_active"`
	CreatedAt   string  `json:"created_at"`
	LastLoginAt *string `json:"last_login_at,omitempty"`
}

func toUserDTO(u models.User) userDTO {
	dto := userDTO{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		IsAdmin:   u.IsAdmin,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
	if u.LastLoginAt != nil {
		s := u.LastLoginAt.Format(time.RFC3339)
		dto.LastLoginAt = &s
	}
	return dto
}

// entryDTO renders the journal day as a date-only string.
type entryDTO struct {
	ID        int      `json:"id"`
	Date      string   `json:"date"`
	MoodScore int      `json:"mood_score"`
	Note      *string  `json:"note,omitempty"`
	Tags      []string `json:"tags"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

func toEntryDTO(e models.JournalEntry) entryDTO {
	return entryDTO{
		ID:        e.ID,
		Date:      e.EntryDate.UTC().Format("2006-01-02"),
		MoodScore: e.MoodScore,
		Note:      e.Note,
		Tags:      e.Tags,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
		UpdatedAt: e.UpdatedAt.Format(time.RFC3339),
	}
}

func toEntryDTOs(entries []models.JournalEntry) []entryDTO {
	out := make([]entryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryDTO(e))
	}
	return out
}

type pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}
