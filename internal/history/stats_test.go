package history

import (
	"testing"
	"time"
)

var categoryTable = map[string]string{
	"3": "Standing",
	"5": "Standing",
	"7": "Seated",
}

func categoryOf(poseID string) string { return categoryTable[poseID] }

func rec(id, poseID string, date time.Time, duration int, accuracy float64) PracticeRecord {
	return PracticeRecord{
		ID: id, PoseID: poseID, Date: date,
		DurationSeconds: duration, Accuracy: accuracy, Completed: true,
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	got := ComputeStats(nil, categoryOf, time.Now())
	if got != (UserStats{}) {
		t.Fatalf("stats from no records = %+v", got)
	}
}

func TestComputeStatsAggregates(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	records := []PracticeRecord{
		rec("p1", "3", now.AddDate(0, 0, -1), 180, 80),
		rec("p2", "5", now.AddDate(0, 0, -2), 240, 70),
		rec("p3", "7", now.AddDate(0, 0, -3), 300, 90),
	}

	got := ComputeStats(records, categoryOf, now)
	if got.TotalSessions != 3 {
		t.Errorf("TotalSessions = %d, want 3", got.TotalSessions)
	}
	if got.TotalDurationSeconds != 720 {
		t.Errorf("TotalDurationSeconds = %d, want 720", got.TotalDurationSeconds)
	}
	if got.AverageAccuracy != 80 {
		t.Errorf("AverageAccuracy = %v, want 80", got.AverageAccuracy)
	}
	if got.FavoriteCategory != "Standing" {
		t.Errorf("FavoriteCategory = %q, want Standing", got.FavoriteCategory)
	}
}

func TestStreak(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	day := func(daysAgo int) time.Time { return now.AddDate(0, 0, -daysAgo) }

	cases := []struct {
		name    string
		records []PracticeRecord
		want    int
	}{
		{
			name: "three consecutive days ending today",
			records: []PracticeRecord{
				rec("a", "3", day(0), 60, 80),
				rec("b", "3", day(1), 60, 80),
				rec("c", "3", day(2), 60, 80),
			},
			want: 3,
		},
		{
			name: "streak ending yesterday still counts",
			records: []PracticeRecord{
				rec("a", "3", day(1), 60, 80),
				rec("b", "3", day(2), 60, 80),
			},
			want: 2,
		},
		{
			name: "gap before today breaks the streak",
			records: []PracticeRecord{
				rec("a", "3", day(0), 60, 80),
				rec("b", "3", day(2), 60, 80),
			},
			want: 1,
		},
		{
			name: "stale streak reports zero",
			records: []PracticeRecord{
				rec("a", "3", day(3), 60, 80),
				rec("b", "3", day(4), 60, 80),
			},
			want: 0,
		},
		{
			name: "multiple sessions same day count once",
			records: []PracticeRecord{
				rec("a", "3", day(0), 60, 80),
				rec("b", "5", day(0).Add(2*time.Hour), 60, 80),
				rec("c", "3", day(1), 60, 80),
			},
			want: 2,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeStats(tc.records, categoryOf, now)
			if got.StreakDays != tc.want {
				t.Fatalf("streak = %d, want %d", got.StreakDays, tc.want)
			}
		})
	}
}
