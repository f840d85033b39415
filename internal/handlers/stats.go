package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"moodlog/internal/analytics"
	"moodlog/internal/dates"
	mw "moodlog/internal/middleware"
	"moodlog/internal/models"
	"moodlog/internal/services"
	"moodlog/internal/store"
)

// StatsHandler serves the streak and aggregation endpoints. All date math
// runs on reference-offset day keys; the handler only resolves "now" and the
// requested range, then defers to the pure analytics functions.
type StatsHandler struct {
	entries *store.EntryStore
	cache   *services.StatsCache
	offset  time.Duration
	now     func() time.Time
}

func NewStatsHandler(entries *store.EntryStore, cache *services.StatsCache, offset time.Duration) *StatsHandler {
	return &StatsHandler{entries: entries, cache: cache, offset: offset, now: time.Now}
}

// refDay resolves the reference "today": the optional on=YYYY-MM-DD query
// fixes the clock for tests and backfill views.
func (h *StatsHandler) refDay(r *http.Request) (dates.DayKey, error) {
	if on := r.URL.Query().Get("on"); on != "" {
		return dates.Parse(on)
	}
	return dates.Normalize(h.now(), h.offset), nil
}

type overviewStats struct {
	TotalEntries  int     `json:"totalEntries"`
	AverageMood   float64 `json:"averageMood"`
	CurrentStreak int     `json:"currentStreak"`
	LongestStreak int     `json:"longestStreak"`
}

// Overview returns whole-history totals and both streaks.
func (h *StatsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	userID := mw.UserID(r)
	today, err := h.refDay(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	scope := "overview:" + today.String()
	if raw, ok := h.cache.Get(r.Context(), userID, scope); ok {
		writeCachedJSON(w, raw)
		return
	}

	entries, err := h.entries.FindRange(r.Context(), userID, 0, today)
	if err != nil {
		writeError(w, err)
		return
	}

	agg := aggregate(entries, 0, today)
	streaks := analytics.ComputeStreaks(entryDays(entries), today)

	payload := map[string]any{"stats": overviewStats{
		TotalEntries:  agg.TotalEntries,
		AverageMood:   agg.AverageMood,
		CurrentStreak: streaks.Current,
		LongestStreak: streaks.Longest,
	}}
	h.respondCached(w, r.Context(), userID, scope, payload)
}

// Streak returns both streaks on their own, for the dashboard widget.
func (h *StatsHandler) Streak(w http.ResponseWriter, r *http.Request) {
	userID := mw.UserID(r)
	today, err := h.refDay(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	keys, err := h.entries.DayKeys(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"streak": analytics.ComputeStreaks(keys, today)})
}

// Weekly aggregates the trailing 7 days ending today, inclusive.
func (h *StatsHandler) Weekly(w http.ResponseWriter, r *http.Request) {
	userID := mw.UserID(r)
	today, err := h.refDay(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	start := today - 6

	scope := "weekly:" + today.String()
	if raw, ok := h.cache.Get(r.Context(), userID, scope); ok {
		writeCachedJSON(w, raw)
		return
	}

	entries, err := h.entries.FindRange(r.Context(), userID, start, today)
	if err != nil {
		writeError(w, err)
		return
	}

	agg := aggregate(entries, start, today)
	payload := map[string]any{"stats": map[string]any{
		"totalEntries": agg.TotalEntries,
		"averageMood":  agg.AverageMood,
		"entries":      toEntryDTOs(entries),
	}}
	h.respondCached(w, r.Context(), userID, scope, payload)
}

// Monthly returns the full aggregate for a YYYY-MM month: count, mean,
// distribution, top tags, plus whole-history streaks.
func (h *StatsHandler) Monthly(w http.ResponseWriter, r *http.Request) {
	userID := mw.UserID(r)
	month := r.URL.Query().Get("month")
	if month == "" {
		http.Error(w, "month is required (YYYY-MM)", http.StatusBadRequest)
		return
	}
	start, end, err := dates.MonthRange(month)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	today, err := h.refDay(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	scope := "monthly:" + month + ":" + today.String()
	if raw, ok := h.cache.Get(r.Context(), userID, scope); ok {
		writeCachedJSON(w, raw)
		return
	}

	entries, err := h.entries.FindRange(r.Context(), userID, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	keys, err := h.entries.DayKeys(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	agg := aggregate(entries, start, end)
	streaks := analytics.ComputeStreaks(keys, today)

	payload := map[string]any{"stats": map[string]any{
		"month":            month,
		"totalEntries":     agg.TotalEntries,
		"averageMood":      agg.AverageMood,
		"moodDistribution": agg.MoodDistribution,
		"topTags":          agg.TopTags,
		"currentStreak":    streaks.Current,
		"longestStreak":    streaks.Longest,
	}}
	h.respondCached(w, r.Context(), userID, scope, payload)
}

func (h *StatsHandler) respondCached(w http.ResponseWriter, ctx context.Context, userID int, scope string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cache.Set(ctx, userID, scope, raw)
	writeCachedJSON(w, raw)
}

func writeCachedJSON(w http.ResponseWriter, raw []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func aggregate(entries []models.JournalEntry, start, end dates.DayKey) analytics.Result {
	rows := make([]analytics.Entry, 0, len(entries))
	for _, e := range entries {
		y, m, d := e.EntryDate.UTC().Date()
		rows = append(rows, analytics.Entry{Day: dates.FromDate(y, m, d), Mood: e.MoodScore, Tags: e.Tags})
	}
	return analytics.Aggregate(rows, start, end, analytics.DefaultTopTags)
}

func entryDays(entries []models.JournalEntry) []dates.DayKey {
	keys := make([]dates.DayKey, 0, len(entries))
	for _, e := range entries {
		y, m, d := e.EntryDate.UTC().Date()
		keys = append(keys, dates.FromDate(y, m, d))
	}
	return keys
}
