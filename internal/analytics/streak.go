package analytics

import (
	"sort"

	"moodlog/internal/dates"
)

// Streaks holds consecutive-day run lengths over a user's entry history.
type Streaks struct {
	Current int `json:"currentStreak"`
	Longest int `json:"longestStreak"`
}

// ComputeStreaks derives current and longest streaks from the set of day keys
// a user has entries on. today is the reference-offset current day, passed in
// by the caller so results are deterministic under a fixed clock.
//
// Current counts consecutive days ending at today or yesterday; anything older
// means the streak is broken and current is 0. Longest is a single scan over
// the whole history. Day differences are integer DayKey subtraction only.
func ComputeStreaks(keys []dates.DayKey, today dates.DayKey) Streaks {
	keys = dedupeDescending(keys)
	if len(keys) == 0 {
		return Streaks{}
	}

	var current int
	if keys[0] == today || keys[0] == today-1 {
		current = 1
		for i := 1; i < len(keys); i++ {
			if keys[i-1]-keys[i] != 1 {
				break
			}
			current++
		}
	}

	longest, run := 1, 1
	for i := 1; i < len(keys); i++ {
		if keys[i-1]-keys[i] == 1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	return Streaks{Current: current, Longest: longest}
}

func dedupeDescending(keys []dates.DayKey) []dates.DayKey {
	if len(keys) == 0 {
		return nil
	}
	out := make([]dates.DayKey, len(keys))
	copy(out, keys)
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}
