// Package ratelimit admits or rejects OTP issuance per email using a fixed
// window counter with a hard block once the limit is hit.
package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/AVISH911/donorhub-blood-donation/internal/domain"
	"github.com/AVISH911/donorhub-blood-donation/internal/pkg/clock"
)

// Reason explains a denied decision.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonBlocked       Reason = "BLOCKED"
	ReasonLimitExceeded Reason = "LIMIT_EXCEEDED"
)

// Decision is the outcome of CheckAndRecord.
type Decision struct {
	Allowed           bool
	RemainingAttempts *int       // set when allowed and the store answered
	BlockedUntil      *time.Time // set when denied
	Reason            Reason
	FailedOpen        bool // the store errored and the request was let through
}

// Store persists one RateLimitRecord per normalised email.
// Get returns domain.ErrNotFound when no record exists. Put is a
// compare-and-set on rec.Version: it returns domain.ErrConflict when the
// stored version differs and bumps rec.Version on success.
type Store interface {
	Get(ctx context.Context, email string) (*domain.RateLimitRecord, error)
	Put(ctx context.Context, rec *domain.RateLimitRecord) error
	Delete(ctx context.Context, email string) error
}

// maxWriteAttempts bounds the compare-and-set retries of one CheckAndRecord.
const maxWriteAttempts = 5

// Limiter is safe for concurrent use; it keeps no in-process state.
type Limiter struct {
	store  Store
	clock  clock.Clocker
	limit  int
	window time.Duration
}

func New(store Store, clk clock.Clocker, limit int, window time.Duration) *Limiter {
	return &Limiter{store: store, clock: clk, limit: limit, window: window}
}

// CheckAndRecord decides whether email may be issued another code and records
// the request when it is admitted. Writes are compare-and-set on the record
// version; a lost race re-reads and decides again.
//
// Storage failures fail open: the request is allowed and the fault is logged.
func (l *Limiter) CheckAndRecord(ctx context.Context, email string) Decision {
	email = domain.NormalizeEmail(email)
	var err error
	for i := 0; i < maxWriteAttempts; i++ {
		var d Decision
		d, err = l.checkAndRecord(ctx, email, l.clock.Now())
		if err == nil {
			return d
		}
		if !errors.Is(err, domain.ErrConflict) {
			break
		}
		slog.DebugContext(ctx, "otp rate limit write conflict, retrying", "email", email, "attempt", i+1)
	}
	return l.failOpen(ctx, email, err)
}

func (l *Limiter) checkAndRecord(ctx context.Context, email string, now time.Time) (Decision, error) {
	rec, err := l.store.Get(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		rec = &domain.RateLimitRecord{Email: email, RequestCount: 1, FirstRequestAt: now}
		if err := l.save(ctx, rec); err != nil {
			return Decision{}, err
		}
		return l.allow(l.limit - 1), nil
	}
	if err != nil {
		return Decision{}, err
	}

	if rec.IsBlocked(now) {
		slog.WarnContext(ctx, "otp issuance blocked", "email", email, "blocked_until", rec.BlockedUntil)
		until := *rec.BlockedUntil
		return Decision{Reason: ReasonBlocked, BlockedUntil: &until}, nil
	}

	if !rec.InWindow(now, l.window) {
		rec.RequestCount = 1
		rec.FirstRequestAt = now
		rec.BlockedUntil = nil
		if err := l.save(ctx, rec); err != nil {
			return Decision{}, err
		}
		slog.InfoContext(ctx, "otp rate limit window reset", "email", email)
		return l.allow(l.limit - 1), nil
	}

	if rec.RequestCount >= l.limit {
		until := now.Add(l.window)
		rec.BlockedUntil = &until
		if err := l.save(ctx, rec); err != nil {
			return Decision{}, err
		}
		slog.WarnContext(ctx, "otp rate limit exceeded", "email", email, "request_count", rec.RequestCount, "blocked_until", until)
		return Decision{Reason: ReasonLimitExceeded, BlockedUntil: &until}, nil
	}

	rec.RequestCount++
	if err := l.save(ctx, rec); err != nil {
		return Decision{}, err
	}
	return l.allow(l.limit - rec.RequestCount), nil
}

// Reset drops the record for email so the next request starts a fresh window.
func (l *Limiter) Reset(ctx context.Context, email string) error {
	return l.store.Delete(ctx, domain.NormalizeEmail(email))
}

func (l *Limiter) save(ctx context.Context, rec *domain.RateLimitRecord) error {
	rec.TTL = rec.StaleAt(l.window).Unix()
	return l.store.Put(ctx, rec)
}

func (l *Limiter) allow(remaining int) Decision {
	return Decision{Allowed: true, RemainingAttempts: &remaining}
}

func (l *Limiter) failOpen(ctx context.Context, email string, err error) Decision {
	slog.ErrorContext(ctx, "otp rate limit check failed, allowing request", "email", email, "error", err)
	return Decision{Allowed: true, FailedOpen: true}
}
