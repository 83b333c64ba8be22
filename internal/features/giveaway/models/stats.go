package models

import "time"

// GiveawayStats holds derived, recomputable counters owned 1:1 by a
// giveaway. Mutated only by the orchestrator on lifecycle events and by
// the reconciler on recompute.
type GiveawayStats struct {
	ID                int64     `json:"id"`
	GiveawayID        int64     `json:"giveaway_id"`
	TotalParticipants int       `json:"total_participants"`
	WinnerCount       int       `json:"winner_count"`
	MessagesDelivered int       `json:"messages_delivered"`
	LastUpdated       time.Time `json:"last_updated"`
}

// Stale reports whether the counters are older than the given threshold.
func (s *GiveawayStats) Stale(threshold time.Duration, now time.Time) bool {
	return now.Sub(s.LastUpdated) > threshold
}
