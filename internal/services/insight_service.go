package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"moodlog/internal/ai"
	"moodlog/internal/analytics"
	"moodlog/internal/dates"
	"moodlog/internal/metrics"
	"moodlog/internal/models"
	"moodlog/internal/store"
)

// NoEntriesMessage is returned, not persisted, for months with nothing to
// summarize.
const NoEntriesMessage = "You have no entries for this month yet. Record your mood each day and an AI summary will be waiting here next time."

var monthPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// ErrRetryable wraps AI collaborator failures so handlers can map them to a
// retryable status without inspecting provider internals.
var ErrRetryable = errors.New("insight generation failed; retry later")

// ErrInvalidMonth reports a month argument that is not YYYY-MM.
var ErrInvalidMonth = errors.New("invalid month; expected YYYY-MM")

type EntrySource interface {
	FindRange(ctx context.Context, userID int, start, end dates.DayKey) ([]models.JournalEntry, error)
}

type InsightRepo interface {
	Find(ctx context.Context, userID int, month string) (*models.MonthlyInsight, error)
	Create(ctx context.Context, userID int, month, text string, totalEntries int, avgMood float64) (*models.MonthlyInsight, error)
}

type UsageRecorder interface {
	Record(ctx context.Context, u models.AIUsage) error
}

// InsightService materializes one AI narrative per (user, month). Generation
// is lazy and idempotent: a stored insight is always served as-is, and the
// database uniqueness constraint arbitrates concurrent generation.
type InsightService struct {
	entries    EntrySource
	insights   InsightRepo
	usage      UsageRecorder
	summarizer ai.Summarizer
	timeout    time.Duration
	now        func() time.Time
}

func NewInsightService(entries EntrySource, insights InsightRepo, usage UsageRecorder, summarizer ai.Summarizer, timeout time.Duration) *InsightService {
	return &InsightService{
		entries:    entries,
		insights:   insights,
		usage:      usage,
		summarizer: summarizer,
		timeout:    timeout,
		now:        time.Now,
	}
}

// MonthlyInsight returns the insight for (user, month), generating and
// persisting it on first request. generated reports whether this call paid
// for an AI invocation.
func (s *InsightService) MonthlyInsight(ctx context.Context, userID int, month string) (ins *models.MonthlyInsight, generated bool, err error) {
	if !monthPattern.MatchString(month) {
		return nil, false, fmt.Errorf("%w: %q", ErrInvalidMonth, month)
	}
	first, last, err := dates.MonthRange(month)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %q", ErrInvalidMonth, month)
	}

	existing, err := s.insights.Find(ctx, userID, month)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	entries, err := s.entries.FindRange(ctx, userID, first, last)
	if err != nil {
		return nil, false, err
	}
	if len(entries) == 0 {
		return &models.MonthlyInsight{
			UserID:  userID,
			Month:   month,
			Insight: NoEntriesMessage,
		}, false, nil
	}

	agg := aggregateEntries(entries, first, last)
	prompt := buildPrompt(month, agg, entries)

	// Detached from the caller: an abandoned request still finishes and
	// persists so a concurrent request for the same month does not re-pay
	// the AI cost. The timeout alone bounds the call.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	started := s.now()
	reply, aiErr := s.summarizer.Summarize(callCtx, prompt)
	elapsed := time.Since(started)

	s.recordUsage(callCtx, userID, month, prompt, reply, elapsed, aiErr)

	if aiErr != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrRetryable, aiErr)
	}

	created, err := s.insights.Create(callCtx, userID, month, reply.Text, agg.TotalEntries, agg.AverageMood)
	if errors.Is(err, store.ErrConflict) {
		// A concurrent request won the race; serve its insight and drop ours.
		winner, findErr := s.insights.Find(ctx, userID, month)
		if findErr != nil {
			return nil, false, findErr
		}
		return winner, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

func (s *InsightService) recordUsage(ctx context.Context, userID int, month, prompt string, reply *ai.Reply, elapsed time.Duration, aiErr error) {
	usage := models.AIUsage{
		ID:             uuid.NewString(),
		UserID:         userID,
		Month:          month,
		ResponseTimeMs: int(elapsed.Milliseconds()),
		Success:        aiErr == nil,
	}
	if reply != nil {
		usage.Provider = reply.Provider
		usage.PromptTokens = reply.PromptTokens
		usage.ResponseTokens = reply.ResponseTokens
		usage.TotalTokens = reply.TotalTokens
	} else {
		usage.Provider = "none"
		usage.PromptTokens = len(prompt) / 4
		msg := aiErr.Error()
		usage.ErrorMessage = &msg
	}

	metrics.ObserveAICall(usage.Provider, elapsed, usage.PromptTokens, usage.ResponseTokens, aiErr)

	if err := s.usage.Record(ctx, usage); err != nil {
		slog.Warn("failed to record ai usage", slog.Any("err", err), slog.Int("user_id", userID))
	}
}

// entryDay reads the stored DATE column back into a day key. Entry dates are
// already canonical journal days, so no offset shift applies here.
func entryDay(e models.JournalEntry) dates.DayKey {
	y, m, d := e.EntryDate.UTC().Date()
	return dates.FromDate(y, m, d)
}

func aggregateEntries(entries []models.JournalEntry, first, last dates.DayKey) analytics.Result {
	rows := make([]analytics.Entry, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, analytics.Entry{Day: entryDay(e), Mood: e.MoodScore, Tags: e.Tags})
	}
	return analytics.Aggregate(rows, first, last, analytics.DefaultTopTags)
}
