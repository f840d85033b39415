// Package analytics computes streaks and period aggregates over journal
// entries. Every function here is pure: no I/O, no clock access, total over
// well-formed input.
package analytics

import "moodlog/internal/dates"

// DefaultTopTags bounds the tag-frequency list returned to clients.
const DefaultTopTags = 5

// Entry is the slice of a journal entry the aggregator needs.
type Entry struct {
	Day  dates.DayKey
	Mood int
	Tags []string
}

// TagCount is one row of the tag-frequency table.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Result carries period aggregates for one user and date range.
type Result struct {
	TotalEntries     int         `json:"totalEntries"`
	AverageMood      float64     `json:"averageMood"`
	MoodDistribution map[int]int `json:"moodDistribution"`
	TopTags          []TagCount  `json:"topTags"`
}

// Aggregate filters entries to [start, end] inclusive and computes count,
// mean mood, the 1..5 score histogram and tag frequencies. topN truncates the
// tag list; <= 0 falls back to DefaultTopTags.
func Aggregate(entries []Entry, start, end dates.DayKey, topN int) Result {
	if topN <= 0 {
		topN = DefaultTopTags
	}

	dist := map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}
	var count, moodSum int
	tagCounts := map[string]int{}
	var tagOrder []string

	for _, e := range entries {
		if e.Day < start || e.Day > end {
			continue
		}
		count++
		moodSum += e.Mood
		dist[e.Mood]++
		for _, tag := range e.Tags {
			if _, seen := tagCounts[tag]; !seen {
				tagOrder = append(tagOrder, tag)
			}
			tagCounts[tag]++
		}
	}

	// Sort by count descending; ties keep first-seen order, so an insertion
	// scan over the already-ordered tag list is enough.
	var top []TagCount
	for _, tag := range tagOrder {
		tc := TagCount{Tag: tag, Count: tagCounts[tag]}
		pos := len(top)
		for pos > 0 && top[pos-1].Count < tc.Count {
			pos--
		}
		top = append(top, TagCount{})
		copy(top[pos+1:], top[pos:])
		top[pos] = tc
	}
	if len(top) > topN {
		top = top[:topN]
	}

	return Result{
		TotalEntries:     count,
		AverageMood:      roundMean(moodSum, count),
		MoodDistribution: dist,
		TopTags:          top,
	}
}

// roundMean computes sum/n rounded half-up to two decimals using integer
// arithmetic, so the .005 boundary rounds up instead of drifting on float
// representation.
func roundMean(sum, n int) float64 {
	if n == 0 {
		return 0
	}
	hundredths := (200*sum + n) / (2 * n)
	return float64(hundredths) / 100
}
