package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"moodlog/internal/crypto"
	"moodlog/internal/dates"
	"moodlog/internal/models"
)

const entryColumns = `id, user_id, entry_date, mood_score, note, tags, created_at, updated_at`

// EntryStore reads and writes journal entries. Notes are encrypted at rest;
// tags are stored as a JSON array in a text column.
type EntryStore struct {
	db     *sqlx.DB
	cipher *crypto.Cipher
}

func NewEntryStore(db *sqlx.DB, cipher *crypto.Cipher) *EntryStore {
	return &EntryStore{db: db, cipher: cipher}
}

// UpsertParams is the validated input for recording a mood on one day.
type UpsertParams struct {
	UserID    int
	Day       dates.DayKey
	MoodScore int
	Note      *string
	Tags      []string
}

// Upsert creates or overwrites the entry for (user, day). The UNIQUE
// (user_id, entry_date) constraint makes the write idempotent per day.
func (s *EntryStore) Upsert(ctx context.Context, p UpsertParams) (*models.JournalEntry, error) {
	note, err := s.encryptNote(p.Note)
	if err != nil {
		return nil, err
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}

	var e models.JournalEntry
	err = s.db.QueryRowxContext(ctx, `
		INSERT INTO journal_entries (user_id, entry_date, mood_score, note, tags, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id, entry_date)
		DO UPDATE SET
			mood_score = EXCLUDED.mood_score,
			note = EXCLUDED.note,
			tags = EXCLUDED.tags,
			updated_at = NOW()
		RETURNING `+entryColumns, p.UserID, p.Day.Time(), p.MoodScore, note, string(tagsJSON)).StructScan(&e)
	if err != nil {
		return nil, fmt.Errorf("upsert entry: %w", err)
	}
	return s.decode(&e)
}

// FindRange returns the user's entries with day keys in [start, end]
// inclusive, most recent first.
func (s *EntryStore) FindRange(ctx context.Context, userID int, start, end dates.DayKey) ([]models.JournalEntry, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT `+entryColumns+` FROM journal_entries
		WHERE user_id = $1 AND entry_date >= $2 AND entry_date <= $3
		ORDER BY entry_date DESC`, userID, start.Time(), end.Time())
	if err != nil {
		return nil, fmt.Errorf("find entries: %w", err)
	}
	defer rows.Close()

	var out []models.JournalEntry
	for rows.Next() {
		var e models.JournalEntry
		if err := rows.StructScan(&e); err != nil {
			return nil, err
		}
		decoded, err := s.decode(&e)
		if err != nil {
			return nil, err
		}
		out = append(out, *decoded)
	}
	return out, rows.Err()
}

// FindPage returns a page of entries in [start, end] plus the unpaged total.
func (s *EntryStore) FindPage(ctx context.Context, userID int, start, end dates.DayKey, limit, offset int) ([]models.JournalEntry, int, error) {
	var total int
	err := s.db.QueryRowxContext(ctx, `
		SELECT COUNT(*) FROM journal_entries
		WHERE user_id = $1 AND entry_date >= $2 AND entry_date <= $3`,
		userID, start.Time(), end.Time()).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx, `
		SELECT `+entryColumns+` FROM journal_entries
		WHERE user_id = $1 AND entry_date >= $2 AND entry_date <= $3
		ORDER BY entry_date DESC
		LIMIT $4 OFFSET $5`, userID, start.Time(), end.Time(), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("find entries: %w", err)
	}
	defer rows.Close()

	var out []models.JournalEntry
	for rows.Next() {
		var e models.JournalEntry
		if err := rows.StructScan(&e); err != nil {
			return nil, 0, err
		}
		decoded, err := s.decode(&e)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *decoded)
	}
	return out, total, rows.Err()
}

// FindByDay returns the entry for one day or ErrNotFound.
func (s *EntryStore) FindByDay(ctx context.Context, userID int, day dates.DayKey) (*models.JournalEntry, error) {
	var e models.JournalEntry
	err := s.db.QueryRowxContext(ctx, `
		SELECT `+entryColumns+` FROM journal_entries
		WHERE user_id = $1 AND entry_date = $2`, userID, day.Time()).StructScan(&e)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find entry: %w", err)
	}
	return s.decode(&e)
}

// FindByID returns the entry only when owned by userID.
func (s *EntryStore) FindByID(ctx context.Context, userID, entryID int) (*models.JournalEntry, error) {
	var e models.JournalEntry
	err := s.db.QueryRowxContext(ctx, `
		SELECT `+entryColumns+` FROM journal_entries
		WHERE id = $1 AND user_id = $2`, entryID, userID).StructScan(&e)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find entry: %w", err)
	}
	return s.decode(&e)
}

// Delete removes an entry owned by userID; ErrNotFound when absent or owned
// by someone else.
func (s *EntryStore) Delete(ctx context.Context, userID, entryID int) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM journal_entries WHERE id = $1 AND user_id = $2`, entryID, userID)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DayKeys returns every day the user has an entry on, most recent first.
// Feeds the streak calculator without paying note decryption.
func (s *EntryStore) DayKeys(ctx context.Context, userID int) ([]dates.DayKey, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT entry_date FROM journal_entries
		WHERE user_id = $1
		ORDER BY entry_date DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list day keys: %w", err)
	}
	defer rows.Close()

	var keys []dates.DayKey
	for rows.Next() {
		var t sql.NullTime
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		y, m, d := t.Time.UTC().Date()
		keys = append(keys, dates.FromDate(y, m, d))
	}
	return keys, rows.Err()
}

// CountAll powers the admin dashboard.
func (s *EntryStore) CountAll(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowxContext(ctx, `SELECT COUNT(*) FROM journal_entries`).Scan(&n)
	return n, err
}

func (s *EntryStore) encryptNote(note *string) (*string, error) {
	if note == nil || *note == "" {
		return nil, nil
	}
	enc, err := s.cipher.Encrypt(*note)
	if err != nil {
		return nil, err
	}
	return &enc, nil
}

// decode decrypts the note and unpacks the tags column.
func (s *EntryStore) decode(e *models.JournalEntry) (*models.JournalEntry, error) {
	if e.Note != nil && *e.Note != "" {
		plain, err := s.cipher.Decrypt(*e.Note)
		if err != nil {
			return nil, fmt.Errorf("decrypt note: %w", err)
		}
		e.Note = &plain
	}
	e.Tags = []string{}
	if e.TagsRaw != nil && *e.TagsRaw != "" {
		if err := json.Unmarshal([]byte(*e.TagsRaw), &e.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	return e, nil
}
