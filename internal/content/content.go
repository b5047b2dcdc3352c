// Package content holds the practice content catalogs: yoga poses,
// affirmations and soothing sounds.
//
// Poses normally come from the external data service (see [Service]); the
// embedded [Catalog] carries the same tables and substitutes when the
// service is unreachable. Affirmations and sounds are served from the
// catalog only.
package content

import "context"

// Difficulty grades a pose.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Pose is one yoga pose with its practice metadata.
type Pose struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	SanskritName string     `json:"sanskritName"`
	Description  string     `json:"description"`
	Difficulty   Difficulty `json:"difficulty"`
	Benefits     []string   `json:"benefits"`
	Instructions []string   `json:"instructions"`
	Precautions  []string   `json:"precautions"`
	ImageURL     string     `json:"imageUrl"`
	Category     string     `json:"category"`
	// DurationSeconds is the recommended hold time.
	DurationSeconds int      `json:"duration"`
	Tags            []string `json:"tags"`
}

// Affirmation is one meditation affirmation.
type Affirmation struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category"`
}

// Sound is one soothing background sound.
type Sound struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Source string `json:"source"`
	Icon   string `json:"icon"`
}

// PoseSource serves the pose catalog. Implemented by [Service] (remote) and
// [Catalog] (embedded); the resilience layer composes the two.
type PoseSource interface {
	Poses(ctx context.Context) ([]Pose, error)
	PoseByID(ctx context.Context, id string) (Pose, error)
}
