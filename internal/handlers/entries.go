package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"moodlog/internal/dates"
	mw "moodlog/internal/middleware"
	"moodlog/internal/services"
	"moodlog/internal/store"
)

const (
	maxNoteLength = 500
	maxTags       = 10
	maxTagLength  = 50

	defaultPageSize = 30
	maxPageSize     = 100
)

type EntryHandler struct {
	entries *store.EntryStore
	cache   *services.StatsCache
	offset  time.Duration
	now     func() time.Time
}

func NewEntryHandler(entries *store.EntryStore, cache *services.StatsCache, offset time.Duration) *EntryHandler {
	return &EntryHandler{entries: entries, cache: cache, offset: offset, now: time.Now}
}

func (h *EntryHandler) today() dates.DayKey {
	return dates.Normalize(h.now(), h.offset)
}

type entryRequest struct {
	MoodScore int      `json:"mood_score"`
	Note      *string  `json:"note,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Date      string   `json:"date,omitempty"` // YYYY-MM-DD; defaults to today
}

func (r entryRequest) validate() string {
	if r.MoodScore < 1 || r.MoodScore > 5 {
		return "mood_score must be between 1 and 5"
	}
	if r.Note != nil && len(*r.Note) > maxNoteLength {
		return "note must be at most 500 characters"
	}
	if len(r.Tags) > maxTags {
		return "at most 10 tags allowed"
	}
	for _, tag := range r.Tags {
		if tag == "" || len(tag) > maxTagLength {
			return "tags must be 1-50 characters"
		}
	}
	return ""
}

// Upsert records the mood for one day: create on first write, overwrite on
// repeat. The store's (user, day) uniqueness makes this idempotent.
func (h *EntryHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	userID := mw.UserID(r)

	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if msg := req.validate(); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	day := h.today()
	if req.Date != "" {
		parsed, err := dates.Parse(req.Date)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		day = parsed
	}

	entry, err := h.entries.Upsert(r.Context(), store.UpsertParams{
		UserID:    userID,
		Day:       day,
		MoodScore: req.MoodScore,
		Note:      req.Note,
		Tags:      req.Tags,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	h.cache.Invalidate(r.Context(), userID)

	writeJSON(w, http.StatusOK, map[string]any{"entry": toEntryDTO(*entry)})
}

// List returns a page of entries, optionally filtered to a month (YYYY-MM)
// or a year (YYYY).
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := mw.UserID(r)
	q := r.URL.Query()

	// Default to the entire representable range.
	start, end := dates.DayKey(0), h.today()

	if month := q.Get("month"); month != "" {
		var err error
		start, end, err = dates.MonthRange(month)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	} else if year := q.Get("year"); year != "" {
		y, err := strconv.Atoi(year)
		if err != nil || y < 1970 || y > 9999 {
			http.Error(w, "invalid year", http.StatusBadRequest)
			return
		}
		start = dates.FromDate(y, time.January, 1)
		end = dates.FromDate(y, time.December, 31)
	}

	limit := intQuery(q.Get("limit"), defaultPageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := intQuery(q.Get("offset"), 0)

	entries, total, err := h.entries.FindPage(r.Context(), userID, start, end, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": toEntryDTOs(entries),
		"pagination": pagination{
			Total:   total,
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(entries) < total,
		},
	})
}

// Today reports whether the user has journaled today in the reference offset.
func (h *EntryHandler) Today(w http.ResponseWriter, r *http.Request) {
	entry, err := h.entries.FindByDay(r.Context(), mw.UserID(r), h.today())
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{"entry": nil, "hasEntryToday": false})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entry": toEntryDTO(*entry), "hasEntryToday": true})
}

// Range returns all entries between two inclusive day keys.
func (h *EntryHandler) Range(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	startStr, endStr := q.Get("start_date"), q.Get("end_date")
	if startStr == "" || endStr == "" {
		http.Error(w, "start_date and end_date are required", http.StatusBadRequest)
		return
	}
	start, err := dates.Parse(startStr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	end, err := dates.Parse(endStr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if start > end {
		start, end = end, start
	}

	entries, err := h.entries.FindRange(r.Context(), mw.UserID(r), start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": toEntryDTOs(entries)})
}

// Delete removes an entry by id. Only the current day's entry may be deleted;
// past days can be overwritten via upsert but not removed.
func (h *EntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := mw.UserID(r)
	entryID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid entry id", http.StatusBadRequest)
		return
	}

	entry, err := h.entries.FindByID(r.Context(), userID, entryID)
	if err != nil {
		writeError(w, err)
		return
	}
	y, m, d := entry.EntryDate.UTC().Date()
	if dates.FromDate(y, m, d) != h.today() {
		http.Error(w, "only today's entry can be deleted", http.StatusForbidden)
		return
	}

	if err := h.entries.Delete(r.Context(), userID, entryID); err != nil {
		writeError(w, err)
		return
	}
	h.cache.Invalidate(r.Context(), userID)
	w.WriteHeader(http.StatusNoContent)
}

func intQuery(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
