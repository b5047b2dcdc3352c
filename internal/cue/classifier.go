// Package cue turns session events and accuracy readings into spoken
// guidance. The [Classifier] maps an accuracy value to one of four tiers and
// picks a non-repeating phrase for it; the [Gate] owns the shared speech
// channel, serialising utterances and throttling corrective feedback.
package cue

import (
	"math/rand/v2"
	"sync"
)

// Tier is one of the four ordered accuracy bands.
type Tier string

const (
	TierLow       Tier = "low"
	TierMedium    Tier = "medium"
	TierHigh      Tier = "high"
	TierExcellent Tier = "excellent"
)

// TierFor maps an accuracy value to its band. Values outside [0, 100] are
// treated as if clamped.
//
// Bands are half-open in increasing order: [0,40) low, [40,70) medium,
// [70,90) high, [90,100] excellent.
func TierFor(value int) Tier {
	switch {
	case value < 40:
		return TierLow
	case value < 70:
		return TierMedium
	case value < 90:
		return TierHigh
	default:
		return TierExcellent
	}
}

// defaultPhrases holds the corrective feedback phrasing per tier.
var defaultPhrases = map[Tier][]string{
	TierLow: {
		"Try adjusting your position to match the pose better.",
		"Your form needs significant improvement. Check your alignment.",
		"Please try to align your body with the pose shown.",
		"Let's work on your form. It's quite different from the ideal pose.",
	},
	TierMedium: {
		"Getting better! Try focusing on your alignment.",
		"You're on the right track. Check your posture.",
		"Almost there. Adjust your position slightly.",
		"Good effort. Straighten your back more to improve.",
	},
	TierHigh: {
		"Very good form! Minor adjustments will perfect it.",
		"Great job! Focus on your breathing now.",
		"Excellent! Hold this position and breathe deeply.",
		"Your form is nearly perfect. Maintain this position.",
	},
	TierExcellent: {
		"Perfect form! Maintain this position.",
		"Excellent work! Your alignment is perfect.",
		"Outstanding! You've mastered this pose.",
		"Perfect! Enjoy the benefits of this well-executed pose.",
	},
}

// ClassifierOption configures a [Classifier].
type ClassifierOption func(*Classifier)

// WithPhrases replaces the phrase table. Every tier must have at least one
// phrase; missing tiers keep their defaults.
func WithPhrases(phrases map[Tier][]string) ClassifierOption {
	return func(c *Classifier) {
		for tier, set := range phrases {
			if len(set) > 0 {
				c.phrases[tier] = set
			}
		}
	}
}

// WithClassifierRand sets the random source, for deterministic tests.
func WithClassifierRand(r *rand.Rand) ClassifierOption {
	return func(c *Classifier) {
		c.rand = r
	}
}

// Classifier selects feedback phrasing for accuracy readings. It remembers
// the previously returned phrase and never returns the same text twice in a
// row when the active tier offers an alternative.
//
// Safe for concurrent use.
type Classifier struct {
	mu      sync.Mutex
	phrases map[Tier][]string
	last    string
	rand    *rand.Rand
}

// NewClassifier creates a Classifier with the default phrase table.
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{phrases: make(map[Tier][]string, len(defaultPhrases))}
	for tier, set := range defaultPhrases {
		c.phrases[tier] = set
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Phrase returns feedback phrasing for the given accuracy value. Selection
// is uniform over the active tier's candidates minus the previously returned
// phrase; a single-candidate tier may repeat.
func (c *Classifier) Phrase(value int) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	candidates := c.phrases[TierFor(value)]
	if len(candidates) == 0 {
		return ""
	}

	// Filter out the previous emission unless it is the only option.
	pool := candidates
	if len(candidates) > 1 && c.last != "" {
		pool = make([]string, 0, len(candidates))
		for _, p := range candidates {
			if p != c.last {
				pool = append(pool, p)
			}
		}
		if len(pool) == 0 {
			pool = candidates
		}
	}

	phrase := pool[c.intN(len(pool))]
	c.last = phrase
	return phrase
}

// intN draws from the configured source, or the shared global one.
func (c *Classifier) intN(n int) int {
	if c.rand != nil {
		return c.rand.IntN(n)
	}
	return rand.IntN(n)
}
