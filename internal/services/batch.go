package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type UserLister interface {
	ListActiveIDs(ctx context.Context) ([]int, error)
}

// BatchRunner generates a month's insights for every active user: a bounded
// worker group per batch with a pause between batches so the AI providers'
// rate limits are respected. One user's failure never aborts the run.
type BatchRunner struct {
	users    UserLister
	insights *InsightService
	size     int
	pause    time.Duration
}

func NewBatchRunner(users UserLister, insights *InsightService, size int, pause time.Duration) *BatchRunner {
	if size <= 0 {
		size = 5
	}
	return &BatchRunner{users: users, insights: insights, size: size, pause: pause}
}

type BatchOutcome struct {
	UserID int    `json:"user_id"`
	Status string `json:"status"` // generated | skipped | failed
	Error  string `json:"error,omitempty"`
}

type BatchReport struct {
	RunID     string         `json:"run_id"`
	Month     string         `json:"month"`
	Generated int            `json:"generated"`
	Skipped   int            `json:"skipped"`
	Failed    int            `json:"failed"`
	Outcomes  []BatchOutcome `json:"outcomes"`
}

// Run processes all active users for the given month. Only a context error or
// a failure to list users aborts the run.
func (r *BatchRunner) Run(ctx context.Context, month string) (*BatchReport, error) {
	ids, err := r.users.ListActiveIDs(ctx)
	if err != nil {
		return nil, err
	}

	report := &BatchReport{RunID: uuid.NewString(), Month: month}
	log := slog.With(slog.String("run_id", report.RunID), slog.String("month", month))
	log.Info("insight batch starting", slog.Int("users", len(ids)))

	var mu sync.Mutex
	record := func(o BatchOutcome) {
		mu.Lock()
		defer mu.Unlock()
		switch o.Status {
		case "generated":
			report.Generated++
		case "skipped":
			report.Skipped++
		default:
			report.Failed++
		}
		report.Outcomes = append(report.Outcomes, o)
	}

	for start := 0; start < len(ids); start += r.size {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		end := start + r.size
		if end > len(ids) {
			end = len(ids)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, userID := range ids[start:end] {
			userID := userID
			g.Go(func() error {
				_, generated, err := r.insights.MonthlyInsight(gctx, userID, month)
				switch {
				case err != nil:
					log.Warn("insight generation failed", slog.Int("user_id", userID), slog.Any("err", err))
					record(BatchOutcome{UserID: userID, Status: "failed", Error: err.Error()})
				case generated:
					record(BatchOutcome{UserID: userID, Status: "generated"})
				default:
					// Already materialized, or nothing to summarize.
					record(BatchOutcome{UserID: userID, Status: "skipped"})
				}
				return nil
			})
		}
		_ = g.Wait()

		if end < len(ids) && r.pause > 0 {
			select {
			case <-time.After(r.pause):
			case <-ctx.Done():
				return report, ctx.Err()
			}
		}
	}

	log.Info("insight batch finished",
		slog.Int("generated", report.Generated),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed))
	return report, nil
}

// PreviousMonth formats the month before the given reference instant in the
// reference offset, the batch job's target period.
func PreviousMonth(now time.Time, offset time.Duration) string {
	shifted := now.UTC().Add(offset)
	firstOfMonth := time.Date(shifted.Year(), shifted.Month(), 1, 0, 0, 0, 0, time.UTC)
	return firstOfMonth.AddDate(0, -1, 0).Format("2006-01")
}
