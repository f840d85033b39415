package handlers

import (
	"errors"
	"net/http"

	mw "moodlog/internal/middleware"
	"moodlog/internal/services"
)

type InsightHandler struct {
	insights *services.InsightService
}

func NewInsightHandler(insights *services.InsightService) *InsightHandler {
	return &InsightHandler{insights: insights}
}

// Monthly serves GET /api/insights/monthly?month=YYYY-MM. The first request
// for a month with entries pays one AI call; every later request returns the
// stored narrative unchanged.
func (h *InsightHandler) Monthly(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if month == "" {
		http.Error(w, "month is required (YYYY-MM)", http.StatusBadRequest)
		return
	}

	ins, generated, err := h.insights.MonthlyInsight(r.Context(), mw.UserID(r), month)
	if err != nil {
		if errors.Is(err, services.ErrInvalidMonth) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"insight":      ins.Insight,
		"month":        ins.Month,
		"totalEntries": ins.TotalEntries,
		"avgMood":      ins.AvgMood,
		"generated":    generated,
	})
}
