package models

import "time"

// CacheEntry is one resolved handle in the durable tier.
// Label is never empty: a handle with no known display name is stored with
// Label == Handle, which also marks upstream lookup failures.
type CacheEntry struct {
	Handle     string
	Label      string
	ResolvedAt time.Time
}

// HasRealLabel reports whether the entry carries a display name distinct from
// the handle itself. The comparison is case-sensitive on purpose: "Octocat"
// is a real label for handle "octocat".
func (e CacheEntry) HasRealLabel() bool {
	return e.Label != e.Handle
}

// RateLimitSnapshot holds the most recent rate-limit headers observed from the
// remote service. It is persisted for display, and consulted only to skip
// requests that are guaranteed to be rejected.
type RateLimitSnapshot struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Exhausted reports whether the snapshot says the remote would reject a
// request issued at t.
func (s RateLimitSnapshot) Exhausted(t time.Time) bool {
	return s.Limit > 0 && s.Remaining == 0 && t.Before(s.ResetAt)
}
