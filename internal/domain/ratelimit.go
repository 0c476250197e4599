package domain

import "time"

// RateLimitRecord counts OTP issuance requests for one email inside a fixed window
// anchored at FirstRequestAt. PK: email.
//
// Version is the optimistic-lock counter: stores only accept a write whose
// Version matches the stored one (0 for a new record) and bump it on success.
type RateLimitRecord struct {
	Email          string     `json:"email" dynamodbav:"email"`
	RequestCount   int        `json:"request_count" dynamodbav:"request_count"`
	FirstRequestAt time.Time  `json:"first_request_at" dynamodbav:"first_request_at"`
	BlockedUntil   *time.Time `json:"blocked_until,omitempty" dynamodbav:"blocked_until,omitempty"`
	TTL            int64      `json:"-" dynamodbav:"ttl"`
	Version        int64      `json:"-" dynamodbav:"version"`
}

// IsBlocked reports whether a block is set and still in the future.
func (r *RateLimitRecord) IsBlocked(now time.Time) bool {
	return r.BlockedUntil != nil && r.BlockedUntil.After(now)
}

// InWindow reports whether now falls inside the window anchored at FirstRequestAt.
func (r *RateLimitRecord) InWindow(now time.Time, window time.Duration) bool {
	return now.Sub(r.FirstRequestAt) < window
}

// StaleAt is the instant after which the record behaves exactly like a missing one:
// the window has elapsed and any block has lapsed.
func (r *RateLimitRecord) StaleAt(window time.Duration) time.Time {
	t := r.FirstRequestAt.Add(window)
	if r.BlockedUntil != nil && r.BlockedUntil.After(t) {
		t = *r.BlockedUntil
	}
	return t
}
