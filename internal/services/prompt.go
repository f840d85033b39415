package services

import (
	"fmt"
	"sort"
	"strings"

	"moodlog/internal/analytics"
	"moodlog/internal/models"
)

var moodLabels = map[int]string{
	1: "terrible",
	2: "bad",
	3: "okay",
	4: "good",
	5: "great",
}

// buildPrompt assembles the summarization request: aggregate stats first,
// then the per-day mood/note list oldest first.
func buildPrompt(month string, agg analytics.Result, entries []models.JournalEntry) string {
	mostCommon := mostCommonMood(agg.MoodDistribution)

	var tags []string
	for _, tc := range agg.TopTags {
		tags = append(tags, tc.Tag)
	}
	tagLine := "none"
	if len(tags) > 0 {
		tagLine = strings.Join(tags, ", ")
	}

	days := make([]models.JournalEntry, len(entries))
	copy(days, entries)
	sort.Slice(days, func(i, j int) bool { return days[i].EntryDate.Before(days[j].EntryDate) })

	var b strings.Builder
	fmt.Fprintf(&b, "You are a caring mental-wellness coach. Analyze this user's mood journal for %s and reply with a warm, honest summary.\n\n", month)
	fmt.Fprintf(&b, "Data:\n")
	fmt.Fprintf(&b, "- Days journaled: %d\n", agg.TotalEntries)
	fmt.Fprintf(&b, "- Average mood: %.2f/5.0\n", agg.AverageMood)
	fmt.Fprintf(&b, "- Most common mood: %s (%d days)\n", moodLabels[mostCommon], agg.MoodDistribution[mostCommon])
	fmt.Fprintf(&b, "- Frequent tags: %s\n\n", tagLine)
	fmt.Fprintf(&b, "Daily log:\n")
	for _, e := range days {
		fmt.Fprintf(&b, "- %s: %s", e.EntryDate.UTC().Format("2006-01-02"), moodLabels[e.MoodScore])
		if e.Note != nil && strings.TrimSpace(*e.Note) != "" {
			fmt.Fprintf(&b, " - %q", *e.Note)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nWrite: (1) a 2-3 sentence overview of the month, (2) any notable mood trends, (3) three or four practical suggestions, (4) a short encouragement. Keep it under 400 words.")
	return b.String()
}

// mostCommonMood breaks ties toward the higher score.
func mostCommonMood(dist map[int]int) int {
	best, bestCount := 3, -1
	for score := 1; score <= 5; score++ {
		if dist[score] >= bestCount {
			best, bestCount = score, dist[score]
		}
	}
	return best
}
