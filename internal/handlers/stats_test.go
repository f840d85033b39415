package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moodlog/internal/crypto"
	"moodlog/internal/dates"
	"moodlog/internal/services"
	"moodlog/internal/store"
)

func newStatsHandler(t *testing.T, cache *services.StatsCache) (*StatsHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cipher, err := crypto.NewCipher(bytes.Repeat([]byte{0x11}, 32), bytes.Repeat([]byte{0x22}, 32))
	require.NoError(t, err)

	h := NewStatsHandler(store.NewEntryStore(sqlx.NewDb(db, "pgx"), cipher), cache, refOffset)
	h.now = func() time.Time { return fixedNow }
	return h, mock
}

func dayRows(days ...dates.DayKey) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"entry_date"})
	for _, d := range days {
		rows.AddRow(d.Time())
	}
	return rows
}

func TestStreakEndpoint(t *testing.T) {
	h, mock := newStatsHandler(t, nil)

	today := dates.Normalize(fixedNow, refOffset)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT entry_date FROM journal_entries")).
		WithArgs(1).
		WillReturnRows(dayRows(today, today-1, today-2, today-5, today-6))

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/stats/streak", nil), 1)
	rec := httptest.NewRecorder()
	h.Streak(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Streak struct {
			Current int `json:"currentStreak"`
			Longest int `json:"longestStreak"`
		} `json:"streak"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 3, resp.Streak.Current)
	assert.Equal(t, 3, resp.Streak.Longest)
}

func TestMonthlyStatsShape(t *testing.T) {
	h, mock := newStatsHandler(t, nil)

	start, end, err := dates.MonthRange("2024-01")
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("FROM journal_entries")).
		WithArgs(1, start.Time(), end.Time()).
		WillReturnRows(sqlmock.NewRows(entryCols).
			AddRow(2, 1, (start + 1).Time(), 4, nil, `["work"]`, fixedNow, fixedNow).
			AddRow(1, 1, start.Time(), 3, nil, `["work","sleep"]`, fixedNow, fixedNow))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT entry_date FROM journal_entries")).
		WithArgs(1).
		WillReturnRows(dayRows(start+1, start))

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/stats/monthly?month=2024-01", nil), 1)
	rec := httptest.NewRecorder()
	h.Monthly(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Stats struct {
			Month            string         `json:"month"`
			TotalEntries     int            `json:"totalEntries"`
			AverageMood      float64        `json:"averageMood"`
			MoodDistribution map[string]int `json:"moodDistribution"`
			TopTags          []struct {
				Tag   string `json:"tag"`
				Count int    `json:"count"`
			} `json:"topTags"`
		} `json:"stats"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "2024-01", resp.Stats.Month)
	assert.Equal(t, 2, resp.Stats.TotalEntries)
	assert.InDelta(t, 3.50, resp.Stats.AverageMood, 1e-9)
	assert.Equal(t, map[string]int{"1": 0, "2": 0, "3": 1, "4": 1, "5": 0}, resp.Stats.MoodDistribution)
	require.NotEmpty(t, resp.Stats.TopTags)
	assert.Equal(t, "work", resp.Stats.TopTags[0].Tag)
	assert.Equal(t, 2, resp.Stats.TopTags[0].Count)
}

func TestMonthlyStatsRequiresMonth(t *testing.T) {
	h, _ := newStatsHandler(t, nil)

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/stats/monthly", nil), 1)
	rec := httptest.NewRecorder()
	h.Monthly(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOverviewCachesSecondRead(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := services.NewStatsCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	h, mock := newStatsHandler(t, cache)

	today := dates.Normalize(fixedNow, refOffset)
	mock.ExpectQuery(regexp.QuoteMeta("FROM journal_entries")).
		WithArgs(1, dates.DayKey(0).Time(), today.Time()).
		WillReturnRows(sqlmock.NewRows(entryCols).
			AddRow(1, 1, today.Time(), 5, nil, `[]`, fixedNow, fixedNow))

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/stats/overview", nil), 1)

	rec := httptest.NewRecorder()
	h.Overview(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	first := rec.Body.String()

	// Second read is served from the cache: only one SQL query was expected.
	rec = httptest.NewRecorder()
	h.Overview(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, first, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOverviewOnQueryFixesClock(t *testing.T) {
	h, mock := newStatsHandler(t, nil)

	on, err := dates.Parse("2024-02-10")
	require.NoError(t, err)
	mock.ExpectQuery(regexp.QuoteMeta("FROM journal_entries")).
		WithArgs(1, dates.DayKey(0).Time(), on.Time()).
		WillReturnRows(sqlmock.NewRows(entryCols))

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/stats/overview?on=2024-02-10", nil), 1)
	rec := httptest.NewRecorder()
	h.Overview(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
