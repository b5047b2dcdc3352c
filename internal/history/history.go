// Package history persists practice and meditation sessions and derives
// user statistics from them.
//
// The default backend is a single local JSON file ([FileStore]); a Postgres
// backend ([PostgresStore]) can mirror the same interface when a DSN is
// configured. Records are append-only and created only when a session
// completes or is explicitly saved.
package history

import (
	"context"
	"time"
)

// PracticeRecord is one finished or saved yoga practice session.
type PracticeRecord struct {
	ID       string    `json:"id"`
	PoseID   string    `json:"poseId"`
	PoseName string    `json:"poseName"`
	Date     time.Time `json:"date"`
	// DurationSeconds is the elapsed practice time.
	DurationSeconds int     `json:"duration"`
	Accuracy        float64 `json:"accuracy"`
	Completed       bool    `json:"completed"`
}

// MeditationRecord is one finished meditation session.
type MeditationRecord struct {
	ID   string    `json:"id"`
	Date time.Time `json:"date"`
	// DurationSeconds is the elapsed meditation time.
	DurationSeconds int      `json:"duration"`
	AffirmationIDs  []string `json:"affirmationIds"`
	SoundID         string   `json:"soundId"`
	Completed       bool     `json:"completed"`
}

// Profile is the locally stored user profile.
type Profile struct {
	Name      string `json:"name"`
	Level     string `json:"level"`
	GoalWeeks int    `json:"goalWeeks"`
}

// Note is one free-form progress note.
type Note struct {
	ID   string    `json:"id"`
	Date time.Time `json:"date"`
	Text string    `json:"text"`
}

// MealEntry is one logged meal.
type MealEntry struct {
	ID       string    `json:"id"`
	Date     time.Time `json:"date"`
	Name     string    `json:"name"`
	Calories int       `json:"calories"`
}

// Store is the session history backend.
type Store interface {
	AppendPractice(ctx context.Context, rec PracticeRecord) error
	Practices(ctx context.Context) ([]PracticeRecord, error)
	ClearPractices(ctx context.Context) error

	AppendMeditation(ctx context.Context, rec MeditationRecord) error
	Meditations(ctx context.Context) ([]MeditationRecord, error)
}
