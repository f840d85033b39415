package store

import (
	"bytes"
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moodlog/internal/crypto"
	"moodlog/internal/dates"
)

var entryCols = []string{"id", "user_id", "entry_date", "mood_score", "note", "tags", "created_at", "updated_at"}

func testCipher(t *testing.T) *crypto.Cipher {
	t.Helper()
	c, err := crypto.NewCipher(bytes.Repeat([]byte{0x11}, 32), bytes.Repeat([]byte{0x22}, 32))
	require.NoError(t, err)
	return c
}

func TestEntryStoreUpsertRoundTrips(t *testing.T) {
	db, mock := newMockDB(t)
	cipher := testCipher(t)
	s := NewEntryStore(db, cipher)

	day := dates.FromDate(2024, time.January, 5)
	note := "slept well"
	storedNote, err := cipher.Encrypt(note)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO journal_entries")).
		WithArgs(7, day.Time(), 4, sqlmock.AnyArg(), `["work","gym"]`).
		WillReturnRows(sqlmock.NewRows(entryCols).
			AddRow(3, 7, day.Time(), 4, storedNote, `["work","gym"]`, time.Now(), time.Now()))

	e, err := s.Upsert(context.Background(), UpsertParams{
		UserID:    7,
		Day:       day,
		MoodScore: 4,
		Note:      &note,
		Tags:      []string{"work", "gym"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, e.ID)
	assert.Equal(t, 4, e.MoodScore)
	require.NotNil(t, e.Note)
	assert.Equal(t, "slept well", *e.Note)
	assert.Equal(t, []string{"work", "gym"}, e.Tags)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryStoreUpsertNilNoteAndTags(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewEntryStore(db, testCipher(t))

	day := dates.FromDate(2024, time.January, 6)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO journal_entries")).
		WithArgs(7, day.Time(), 2, nil, `[]`).
		WillReturnRows(sqlmock.NewRows(entryCols).
			AddRow(4, 7, day.Time(), 2, nil, `[]`, time.Now(), time.Now()))

	e, err := s.Upsert(context.Background(), UpsertParams{UserID: 7, Day: day, MoodScore: 2})
	require.NoError(t, err)
	assert.Nil(t, e.Note)
	assert.Equal(t, []string{}, e.Tags)
}

func TestEntryStoreFindRangeDecodesRows(t *testing.T) {
	db, mock := newMockDB(t)
	cipher := testCipher(t)
	s := NewEntryStore(db, cipher)

	start := dates.FromDate(2024, time.January, 1)
	end := dates.FromDate(2024, time.January, 31)
	storedNote, err := cipher.Encrypt("rough day")
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("FROM journal_entries")).
		WithArgs(7, start.Time(), end.Time()).
		WillReturnRows(sqlmock.NewRows(entryCols).
			AddRow(2, 7, dates.FromDate(2024, time.January, 10).Time(), 2, storedNote, `["sleep"]`, time.Now(), time.Now()).
			AddRow(1, 7, dates.FromDate(2024, time.January, 3).Time(), 5, nil, nil, time.Now(), time.Now()))

	entries, err := s.FindRange(context.Background(), 7, start, end)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.NotNil(t, entries[0].Note)
	assert.Equal(t, "rough day", *entries[0].Note)
	assert.Equal(t, []string{"sleep"}, entries[0].Tags)
	assert.Nil(t, entries[1].Note)
	assert.Equal(t, []string{}, entries[1].Tags)
}

func TestEntryStoreFindByDayNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewEntryStore(db, testCipher(t))

	day := dates.FromDate(2024, time.January, 5)
	mock.ExpectQuery(regexp.QuoteMeta("FROM journal_entries")).
		WithArgs(7, day.Time()).
		WillReturnRows(sqlmock.NewRows(entryCols))

	_, err := s.FindByDay(context.Background(), 7, day)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEntryStoreDelete(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewEntryStore(db, testCipher(t))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM journal_entries")).
		WithArgs(3, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Delete(context.Background(), 7, 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryStoreDeleteNotOwned(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewEntryStore(db, testCipher(t))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM journal_entries")).
		WithArgs(3, 99).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.Delete(context.Background(), 99, 3), ErrNotFound)
}

func TestEntryStoreDayKeys(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewEntryStore(db, testCipher(t))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT entry_date FROM journal_entries")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"entry_date"}).
			AddRow(dates.FromDate(2024, time.January, 5).Time()).
			AddRow(dates.FromDate(2024, time.January, 4).Time()))

	keys, err := s.DayKeys(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, []dates.DayKey{
		dates.FromDate(2024, time.January, 5),
		dates.FromDate(2024, time.January, 4),
	}, keys)
}
