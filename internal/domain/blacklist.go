package domain

import "time"

// BlacklistEntry excludes a token from candidate selection until its expiry
// passes. A token that has accumulated MaxAttempts entries stays rejected
// permanently, expiry notwithstanding.
type BlacklistEntry struct {
	Reason       string    `json:"reason"`
	BlockedUntil time.Time `json:"blocked_until"`
	Attempts     int       `json:"attempts"`
	MaxAttempts  int       `json:"max_attempts"`
}

// Active reports whether the entry still blocks the token at time now.
func (e BlacklistEntry) Active(now time.Time) bool {
	if e.MaxAttempts > 0 && e.Attempts >= e.MaxAttempts {
		return true
	}
	return now.Before(e.BlockedUntil)
}

// Expired reports whether the entry can be swept from the store.
func (e BlacklistEntry) Expired(now time.Time) bool {
	return !e.Active(now)
}
