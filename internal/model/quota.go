package model

import "time"

// QuotaPolicy is the rolling per-actor, per-category purchase ceiling.
type QuotaPolicy struct {
	Ceiling int
	Window  time.Duration
}

// Cutoff returns the instant an event must be strictly after to count toward
// the window at now. An event exactly Window old no longer counts.
func (p QuotaPolicy) Cutoff(now time.Time) time.Time {
	return now.Add(-p.Window)
}

// InWindow reports whether an event at ts counts toward the window at now.
func (p QuotaPolicy) InWindow(ts, now time.Time) bool {
	return ts.After(p.Cutoff(now)) && !ts.After(now)
}

// Remaining returns the quota left given the units consumed in the window.
func (p QuotaPolicy) Remaining(consumed int) int {
	if consumed >= p.Ceiling {
		return 0
	}
	return p.Ceiling - consumed
}

// Cooldown returns how long until the earliest in-window event expires.
// A zero earliest means no event is in the window.
func (p QuotaPolicy) Cooldown(earliest, now time.Time) time.Duration {
	if earliest.IsZero() || !p.InWindow(earliest, now) {
		return 0
	}
	return p.Window - now.Sub(earliest)
}

// QuotaUsage is one category's quota state for an actor.
type QuotaUsage struct {
	Category  Category      `json:"category"`
	Consumed  int           `json:"consumed"`
	Remaining int           `json:"remaining"`
	Cooldown  time.Duration `json:"cooldown_ns"`
}

// QuotaSnapshot is an actor's quota state across all categories.
type QuotaSnapshot struct {
	Actor       string       `json:"actor"`
	Ceiling     int          `json:"ceiling"`
	EvaluatedAt time.Time    `json:"evaluated_at"`
	Categories  []QuotaUsage `json:"categories"`
}

// Consumed returns the units consumed for c, or 0 if c is absent.
func (s QuotaSnapshot) Consumed(c Category) int {
	for _, u := range s.Categories {
		if u.Category == c {
			return u.Consumed
		}
	}
	return 0
}
