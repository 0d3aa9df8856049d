package entitlement

import "time"

// Snapshot is the entitlement state of one session. It is replaced as a whole,
// never mutated in place.
type Snapshot struct {
	UserID       string    `json:"user_id,omitempty"`
	Subscribed   bool      `json:"is_subscribed"`
	InFreeTrial  bool      `json:"is_in_free_trial"`
	TrialExpired bool      `json:"trial_expired"`
	Loading      bool      `json:"is_loading"`
	Generation   uint64    `json:"generation"`
	SyncedAt     time.Time `json:"synced_at,omitempty"`
}

// normalized enforces that a subscription supersedes any trial state.
func (s Snapshot) normalized() Snapshot {
	if s.Subscribed {
		s.InFreeTrial = false
		s.TrialExpired = false
	}
	if s.InFreeTrial {
		s.TrialExpired = false
	}
	return s
}
