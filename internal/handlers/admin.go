package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	mw "moodlog/internal/middleware"
	"moodlog/internal/store"
)

// AdminHandler backs the admin console: user management plus AI usage/cost
// telemetry. Routes are gated by RequireAdmin middleware.
type AdminHandler struct {
	users    *store.UserStore
	entries  *store.EntryStore
	insights *store.InsightStore
	usage    *store.UsageStore
}

func NewAdminHandler(users *store.UserStore, entries *store.EntryStore, insights *store.InsightStore, usage *store.UsageStore) *AdminHandler {
	return &AdminHandler{users: users, entries: entries, insights: insights, usage: usage}
}

// Dashboard returns platform totals and a 30-day AI usage rollup.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalUsers, activeUsers, err := h.users.Counts(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	totalEntries, err := h.entries.CountAll(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	totalInsights, err := h.insights.CountAll(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	totalUsage, err := h.usage.CountAll(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	aiSummary, err := h.usage.Summary(ctx, store.UsageFilter{Since: time.Now().AddDate(0, 0, -30)})
	if err != nil {
		writeError(w, err)
		return
	}

	recentUsers, _, err := h.users.List(ctx, 5, 0)
	if err != nil {
		writeError(w, err)
		return
	}
	recentUsage, _, err := h.usage.List(ctx, store.UsageFilter{}, 10, 0)
	if err != nil {
		writeError(w, err)
		return
	}

	userDTOs := make([]userDTO, 0, len(recentUsers))
	for _, u := range recentUsers {
		userDTOs = append(userDTOs, toUserDTO(u))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"overview": map[string]any{
			"totalUsers":    totalUsers,
			"activeUsers":   activeUsers,
			"inactiveUsers": totalUsers - activeUsers,
			"totalEntries":  totalEntries,
			"totalInsights": totalInsights,
			"totalAIUsages": totalUsage,
		},
		"aiUsage": map[string]any{
			"last30Days": aiSummary,
			"recent":     recentUsage,
		},
		"recentUsers": userDTOs,
	})
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := intQuery(q.Get("limit"), 50)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := intQuery(q.Get("offset"), 0)

	users, total, err := h.users.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]userDTO, 0, len(users))
	for _, u := range users {
		out = append(out, toUserDTO(u))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users":      out,
		"pagination": pagination{Total: total, Limit: limit, Offset: offset, HasMore: offset+len(out) < total},
	})
}

func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	user, err := h.users.ByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*user))
}

type adminUpdateUserRequest struct {
	Name     *string `json:"name,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
	IsAdmin  *bool   `json:"is_admin,omitempty"`
	Password *string `json:"password,omitempty"`
}

func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	var req adminUpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	params := store.UpdateParams{Name: req.Name, IsActive: req.IsActive, IsAdmin: req.IsAdmin}
	if req.Password != nil {
		if len(*req.Password) < 6 {
			http.Error(w, "password must be at least 6 characters", http.StatusBadRequest)
			return
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			http.Error(w, "could not hash password", http.StatusInternalServerError)
			return
		}
		s := string(hashed)
		params.PasswordHash = &s
	}

	user, err := h.users.Update(r.Context(), id, params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*user))
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	if id == mw.UserID(r) {
		http.Error(w, "cannot delete your own account", http.StatusBadRequest)
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "user deleted"})
}

// AIUsage lists telemetry rows with optional user/provider/date filters and
// returns summary rollups for the same filter.
func (h *AdminHandler) AIUsage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.UsageFilter{Provider: q.Get("provider")}
	if v := q.Get("user_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid user_id", http.StatusBadRequest)
			return
		}
		filter.UserID = id
	}
	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			http.Error(w, "invalid start_date; expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		filter.Since = t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			http.Error(w, "invalid end_date; expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		filter.Until = t.AddDate(0, 0, 1)
	}

	limit := intQuery(q.Get("limit"), 50)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := intQuery(q.Get("offset"), 0)

	rows, total, err := h.usage.List(r.Context(), filter, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	summary, err := h.usage.Summary(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"usages":     rows,
		"summary":    summary,
		"pagination": pagination{Total: total, Limit: limit, Offset: offset, HasMore: offset+len(rows) < total},
	})
}
