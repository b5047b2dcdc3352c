package history

import "time"

// UserStats summarises the practice history.
type UserStats struct {
	TotalSessions int `json:"totalSessions"`
	// TotalDurationSeconds is the summed length of every session.
	TotalDurationSeconds int     `json:"totalDuration"`
	AverageAccuracy      float64 `json:"averageAccuracy"`
	FavoriteCategory     string  `json:"favoriteCategory"`
	// StreakDays counts consecutive practice days ending today or yesterday.
	StreakDays int `json:"streak"`
}

// ComputeStats derives stats from practice records. categoryOf maps a pose
// id to its category for the favorite-category tally; unknown poses count
// under the empty category and never win.
func ComputeStats(records []PracticeRecord, categoryOf func(poseID string) string, now time.Time) UserStats {
	stats := UserStats{TotalSessions: len(records)}
	if len(records) == 0 {
		return stats
	}

	var accuracySum float64
	categories := map[string]int{}
	for _, r := range records {
		stats.TotalDurationSeconds += r.DurationSeconds
		accuracySum += r.Accuracy
		if categoryOf != nil {
			if cat := categoryOf(r.PoseID); cat != "" {
				categories[cat]++
			}
		}
	}
	stats.AverageAccuracy = accuracySum / float64(len(records))

	best := 0
	for cat, n := range categories {
		if n > best || (n == best && cat < stats.FavoriteCategory) {
			best = n
			stats.FavoriteCategory = cat
		}
	}

	stats.StreakDays = streak(records, now)
	return stats
}

// streak counts consecutive practiced calendar days walking backwards from
// the most recent practice day. A streak is only live when it reaches today
// or yesterday; older runs report zero.
func streak(records []PracticeRecord, now time.Time) int {
	days := map[string]bool{}
	var latest time.Time
	for _, r := range records {
		d := r.Date.Local()
		days[dayKey(d)] = true
		if d.After(latest) {
			latest = d
		}
	}
	if len(days) == 0 {
		return 0
	}

	today := startOfDay(now.Local())
	last := startOfDay(latest)
	if today.Sub(last) > 24*time.Hour {
		return 0
	}

	n := 0
	for d := last; days[dayKey(d)]; d = d.AddDate(0, 0, -1) {
		n++
	}
	return n
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
