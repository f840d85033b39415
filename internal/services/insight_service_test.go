package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moodlog/internal/ai"
	"moodlog/internal/dates"
	"moodlog/internal/models"
	"moodlog/internal/store"
)

type fakeEntries struct {
	entries map[int][]models.JournalEntry
	err     error
}

func (f *fakeEntries) FindRange(_ context.Context, userID int, start, end dates.DayKey) ([]models.JournalEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.JournalEntry
	for _, e := range f.entries[userID] {
		day := entryDay(e)
		if day >= start && day <= end {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeInsights struct {
	mu        sync.Mutex
	stored    map[string]*models.MonthlyInsight
	createErr error
	creates   int
	// findMisses forces the next N Find calls to miss, simulating a
	// concurrent writer landing between our miss and our Create.
	findMisses int
}

func newFakeInsights() *fakeInsights {
	return &fakeInsights{stored: map[string]*models.MonthlyInsight{}}
}

func insightKey(userID int, month string) string {
	return fmt.Sprintf("%d:%s", userID, month)
}

func (f *fakeInsights) Find(_ context.Context, userID int, month string) (*models.MonthlyInsight, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findMisses > 0 {
		f.findMisses--
		return nil, store.ErrNotFound
	}
	if ins, ok := f.stored[insightKey(userID, month)]; ok {
		return ins, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeInsights) Create(_ context.Context, userID int, month, text string, totalEntries int, avgMood float64) (*models.MonthlyInsight, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.stored[insightKey(userID, month)]; ok {
		return nil, store.ErrConflict
	}
	ins := &models.MonthlyInsight{
		ID:           f.creates,
		UserID:       userID,
		Month:        month,
		Insight:      text,
		TotalEntries: totalEntries,
		AvgMood:      avgMood,
		CreatedAt:    time.Now(),
	}
	f.stored[insightKey(userID, month)] = ins
	return ins, nil
}

type fakeUsage struct {
	mu      sync.Mutex
	records []models.AIUsage
	err     error
}

func (f *fakeUsage) Record(_ context.Context, u models.AIUsage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, u)
	return nil
}

type fakeSummarizer struct {
	mu    sync.Mutex
	calls int
	text  string
	err   error
}

func (f *fakeSummarizer) Name() string { return "fake" }

func (f *fakeSummarizer) Summarize(_ context.Context, prompt string) (*ai.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &ai.Reply{
		Text:           f.text,
		Provider:       "fake",
		PromptTokens:   len(prompt) / 4,
		ResponseTokens: len(f.text) / 4,
		TotalTokens:    (len(prompt) + len(f.text)) / 4,
	}, nil
}

func monthEntry(year int, month time.Month, day, mood int, tags ...string) models.JournalEntry {
	return models.JournalEntry{
		EntryDate: time.Date(year, month, day, 0, 0, 0, 0, time.UTC),
		MoodScore: mood,
		Tags:      tags,
	}
}

func newTestService(entries *fakeEntries, insights *fakeInsights, usage *fakeUsage, sum *fakeSummarizer) *InsightService {
	return NewInsightService(entries, insights, usage, sum, time.Second)
}

func TestMonthlyInsightRejectsInvalidMonth(t *testing.T) {
	svc := newTestService(&fakeEntries{}, newFakeInsights(), &fakeUsage{}, &fakeSummarizer{})

	for _, month := range []string{"2024", "2024-1", "January", "2024-13", "2024-00"} {
		_, _, err := svc.MonthlyInsight(context.Background(), 1, month)
		assert.ErrorIs(t, err, ErrInvalidMonth, "month %q", month)
	}
}

func TestMonthlyInsightServesStoredWithoutAICall(t *testing.T) {
	insights := newFakeInsights()
	existing, err := insights.Create(context.Background(), 1, "2024-05", "already here", 10, 3.5)
	require.NoError(t, err)
	insights.creates = 0

	sum := &fakeSummarizer{text: "should not run"}
	svc := newTestService(&fakeEntries{}, insights, &fakeUsage{}, sum)

	got, generated, err := svc.MonthlyInsight(context.Background(), 1, "2024-05")
	require.NoError(t, err)
	assert.False(t, generated)
	assert.Equal(t, existing, got)
	assert.Zero(t, sum.calls)
	assert.Zero(t, insights.creates)
}

func TestMonthlyInsightEmptyMonthNotPersisted(t *testing.T) {
	insights := newFakeInsights()
	sum := &fakeSummarizer{text: "should not run"}
	usage := &fakeUsage{}
	svc := newTestService(&fakeEntries{}, insights, usage, sum)

	got, generated, err := svc.MonthlyInsight(context.Background(), 1, "2024-05")
	require.NoError(t, err)
	assert.False(t, generated)
	assert.Equal(t, NoEntriesMessage, got.Insight)
	assert.Zero(t, sum.calls)
	assert.Zero(t, insights.creates)
	assert.Empty(t, usage.records)

	// A later call behaves identically: nothing was stored.
	got, generated, err = svc.MonthlyInsight(context.Background(), 1, "2024-05")
	require.NoError(t, err)
	assert.False(t, generated)
	assert.Equal(t, NoEntriesMessage, got.Insight)
}

func TestMonthlyInsightGeneratesAndPersists(t *testing.T) {
	entries := &fakeEntries{entries: map[int][]models.JournalEntry{
		1: {
			monthEntry(2024, time.January, 1, 3, "work"),
			monthEntry(2024, time.January, 2, 4, "work", "gym"),
			monthEntry(2024, time.January, 3, 5),
			monthEntry(2024, time.January, 4, 2),
			monthEntry(2024, time.January, 5, 4),
			// Outside the month, must not count.
			monthEntry(2024, time.February, 1, 1),
		},
	}}
	insights := newFakeInsights()
	usage := &fakeUsage{}
	sum := &fakeSummarizer{text: "A solid start to the year."}
	svc := newTestService(entries, insights, usage, sum)

	got, generated, err := svc.MonthlyInsight(context.Background(), 1, "2024-01")
	require.NoError(t, err)
	assert.True(t, generated)
	assert.Equal(t, "A solid start to the year.", got.Insight)
	assert.Equal(t, 5, got.TotalEntries)
	assert.InDelta(t, 3.60, got.AvgMood, 1e-9)
	assert.Equal(t, 1, sum.calls)

	require.Len(t, usage.records, 1)
	rec := usage.records[0]
	assert.True(t, rec.Success)
	assert.Equal(t, "fake", rec.Provider)
	assert.Equal(t, "2024-01", rec.Month)
	assert.NotEmpty(t, rec.ID)
}

func TestMonthlyInsightIsIdempotent(t *testing.T) {
	entries := &fakeEntries{entries: map[int][]models.JournalEntry{
		1: {monthEntry(2024, time.March, 10, 4, "travel")},
	}}
	insights := newFakeInsights()
	sum := &fakeSummarizer{text: "March in one line."}
	svc := newTestService(entries, insights, &fakeUsage{}, sum)

	first, generated, err := svc.MonthlyInsight(context.Background(), 1, "2024-03")
	require.NoError(t, err)
	assert.True(t, generated)

	second, generated, err := svc.MonthlyInsight(context.Background(), 1, "2024-03")
	require.NoError(t, err)
	assert.False(t, generated)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, sum.calls)
}

func TestMonthlyInsightConflictServesWinner(t *testing.T) {
	entries := &fakeEntries{entries: map[int][]models.JournalEntry{
		1: {monthEntry(2024, time.April, 2, 3)},
	}}
	insights := newFakeInsights()
	sum := &fakeSummarizer{text: "loser's text"}
	svc := newTestService(entries, insights, &fakeUsage{}, sum)

	// A concurrent request wins the race between our Find miss and our
	// Create: the first Find misses, Create hits the unique constraint, and
	// the re-fetch sees the winner's row.
	winner := &models.MonthlyInsight{UserID: 1, Month: "2024-04", Insight: "winner's text"}
	insights.stored[insightKey(1, "2024-04")] = winner
	insights.findMisses = 1
	insights.createErr = store.ErrConflict

	got, generated, err := svc.MonthlyInsight(context.Background(), 1, "2024-04")
	require.NoError(t, err)
	assert.False(t, generated)
	assert.Equal(t, "winner's text", got.Insight)
}

func TestMonthlyInsightAIFailureIsRetryable(t *testing.T) {
	entries := &fakeEntries{entries: map[int][]models.JournalEntry{
		1: {monthEntry(2024, time.May, 1, 2)},
	}}
	insights := newFakeInsights()
	usage := &fakeUsage{}
	sum := &fakeSummarizer{err: ai.ErrUnavailable}
	svc := newTestService(entries, insights, usage, sum)

	_, _, err := svc.MonthlyInsight(context.Background(), 1, "2024-05")
	assert.ErrorIs(t, err, ErrRetryable)
	assert.Zero(t, insights.creates)

	require.Len(t, usage.records, 1)
	rec := usage.records[0]
	assert.False(t, rec.Success)
	require.NotNil(t, rec.ErrorMessage)
	assert.Contains(t, *rec.ErrorMessage, "unavailable")
}

func TestMonthlyInsightSurvivesCancelledCaller(t *testing.T) {
	entries := &fakeEntries{entries: map[int][]models.JournalEntry{
		1: {monthEntry(2024, time.June, 1, 4)},
	}}
	insights := newFakeInsights()
	sum := &fakeSummarizer{text: "finished anyway"}
	svc := newTestService(entries, insights, &fakeUsage{}, sum)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The caller's context is already dead by the time the AI call and the
	// persist run; generation is detached, so both still complete.
	got, generated, err := svc.MonthlyInsight(ctx, 1, "2024-06")
	require.NoError(t, err)
	assert.True(t, generated)
	assert.Equal(t, "finished anyway", got.Insight)
	assert.Equal(t, 1, insights.creates)
}

func TestBuildPromptIncludesStatsAndEntries(t *testing.T) {
	entries := []models.JournalEntry{
		monthEntry(2024, time.January, 2, 4, "work"),
		monthEntry(2024, time.January, 1, 3),
	}
	first, last, err := dates.MonthRange("2024-01")
	require.NoError(t, err)

	agg := aggregateEntries(entries, first, last)
	prompt := buildPrompt("2024-01", agg, entries)

	assert.Contains(t, prompt, "2024-01")
	assert.Contains(t, prompt, "Days journaled: 2")
	assert.Contains(t, prompt, "work")
	// Daily log runs oldest first.
	assert.Less(t, strings.Index(prompt, "2024-01-01"), strings.Index(prompt, "2024-01-02"))
}

func TestEntrySourceErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	svc := newTestService(&fakeEntries{err: boom}, newFakeInsights(), &fakeUsage{}, &fakeSummarizer{})

	_, _, err := svc.MonthlyInsight(context.Background(), 1, "2024-07")
	assert.ErrorIs(t, err, boom)
}
