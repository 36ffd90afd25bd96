// Package ratelimit paces per-identifier fetches. A token bucket spaces
// requests, and a cooldown pauses the whole run after the server signals
// overload (429 or 503). Nothing is retried here; the pacing only affects
// the requests that follow.
package ratelimit

import (
	"time"
)

// State is a snapshot of a Limiter.
type State struct {
	// Limited is false for an unlimited limiter.
	Limited bool `json:"limited"`

	// Rate is the sustained requests per second; Burst the bucket size.
	Rate  float64 `json:"rate"`
	Burst int     `json:"burst"`

	// PausedUntil is when the current cooldown ends; zero when none is active.
	PausedUntil time.Time `json:"paused_until"`

	// Cooldowns counts how many times the limiter was paused.
	Cooldowns int `json:"cooldowns"`
}

// IsPaused reports whether a cooldown is in effect at now.
func (s State) IsPaused(now time.Time) bool {
	return now.Before(s.PausedUntil)
}

// TimeUntilResume returns the remaining cooldown, or 0 when none is active.
func (s State) TimeUntilResume(now time.Time) time.Duration {
	d := s.PausedUntil.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
