// Package otp runs the one-time passcode lifecycle for email verification:
// issue (send/resend), verify, and consume once registration succeeds.
package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/AVISH911/donorhub-blood-donation/internal/application/ratelimit"
	"github.com/AVISH911/donorhub-blood-donation/internal/domain"
	"github.com/AVISH911/donorhub-blood-donation/internal/pkg/clock"
	"github.com/AVISH911/donorhub-blood-donation/internal/pkg/id"
	"github.com/AVISH911/donorhub-blood-donation/internal/pkg/otpcode"
	"github.com/AVISH911/donorhub-blood-donation/internal/pkg/validate"
	"github.com/sethvargo/go-retry"
)

// Store persists OTP records keyed by normalised email.
// FindLatest, IncrementAttempts and MarkVerified return domain.ErrNotFound when
// the record is gone.
type Store interface {
	DeleteAll(ctx context.Context, email string) (int, error)
	Create(ctx context.Context, rec *domain.OTPRecord) error
	FindLatest(ctx context.Context, email string) (*domain.OTPRecord, error)
	IncrementAttempts(ctx context.Context, rec *domain.OTPRecord) (int, error)
	MarkVerified(ctx context.Context, rec *domain.OTPRecord) error
	DeleteOne(ctx context.Context, rec *domain.OTPRecord) error
	List(ctx context.Context, email string) ([]domain.OTPRecord, error)
}

// Gateway delivers a code to an email address. Failures should be
// *domain.DeliveryError; anything else is classified by the service.
type Gateway interface {
	Send(ctx context.Context, email, code string, validity time.Duration) error
}

// Limiter is the issuance admission control shared by Send and Resend.
type Limiter interface {
	CheckAndRecord(ctx context.Context, email string) ratelimit.Decision
	Reset(ctx context.Context, email string) error
}

// Options tunes code lifetime, guess limits and delivery bounds.
type Options struct {
	Validity          time.Duration
	RecordTTL         time.Duration
	MaxVerifyAttempts int
	LockAfterMax      bool
	DeliveryTimeout   time.Duration
	RollbackRetries   uint64
	RollbackBackoff   time.Duration
}

// DefaultOptions mirrors the production defaults in config.
func DefaultOptions() Options {
	return Options{
		Validity:          10 * time.Minute,
		RecordTTL:         10 * time.Minute,
		MaxVerifyAttempts: 5,
		DeliveryTimeout:   10 * time.Second,
		RollbackRetries:   3,
		RollbackBackoff:   50 * time.Millisecond,
	}
}

// IssueResult is returned by Send and Resend.
type IssueResult struct {
	Email             string
	ExpiresAt         time.Time
	RemainingAttempts *int
}

// VerifyResult is returned by a successful Verify.
type VerifyResult struct {
	AlreadyVerified bool
}

type issueKind int

const (
	issueSend issueKind = iota
	issueResend
)

func (k issueKind) String() string {
	if k == issueResend {
		return "resend"
	}
	return "send"
}

type Service struct {
	store   Store
	limiter Limiter
	gateway Gateway
	codes   otpcode.Generator
	clock   clock.Clocker
	opts    Options
}

func NewService(store Store, limiter Limiter, gateway Gateway, codes otpcode.Generator, clk clock.Clocker, opts Options) *Service {
	return &Service{
		store:   store,
		limiter: limiter,
		gateway: gateway,
		codes:   codes,
		clock:   clk,
		opts:    opts,
	}
}

// Send issues a fresh code to email.
func (s *Service) Send(ctx context.Context, email string) (*IssueResult, error) {
	return s.issue(ctx, email, issueSend)
}

// Resend issues a fresh code and invalidates the previous one. It shares the
// admission counter with Send.
func (s *Service) Resend(ctx context.Context, email string) (*IssueResult, error) {
	return s.issue(ctx, email, issueResend)
}

func (s *Service) issue(ctx context.Context, raw string, kind issueKind) (*IssueResult, error) {
	start := s.clock.Now()
	email := domain.NormalizeEmail(raw)
	if email == "" {
		return nil, domain.NewError(domain.CodeEmailRequired, "Email is required")
	}
	if !validate.Email(email) {
		return nil, domain.NewError(domain.CodeInvalidEmailFormat, "Invalid email format")
	}

	decision := s.limiter.CheckAndRecord(ctx, email)
	if !decision.Allowed {
		return nil, s.denied(decision, start)
	}

	if n, err := s.store.DeleteAll(ctx, email); err != nil {
		return nil, s.internal(ctx, kind, email, start, fmt.Errorf("invalidate previous codes: %w", err))
	} else if n > 0 {
		slog.InfoContext(ctx, "invalidated previous otp codes", "email", email, "count", n)
	}

	code, err := s.codes.Generate()
	if err != nil {
		return nil, s.internal(ctx, kind, email, start, err)
	}
	rec := &domain.OTPRecord{
		Email:     email,
		OTPID:     id.NewAt(start),
		Code:      code,
		CreatedAt: start,
		ExpiresAt: s.codes.Expiry(start, s.opts.Validity),
		TTL:       start.Add(s.opts.RecordTTL).Unix(),
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, s.internal(ctx, kind, email, start, fmt.Errorf("create otp: %w", err))
	}

	if derr := s.deliver(ctx, email, code); derr != nil {
		s.rollback(ctx, rec)
		slog.ErrorContext(ctx, "otp delivery failed",
			"email", email,
			"op", kind.String(),
			"kind", derr.Kind,
			"error", derr.Err,
			"duration_ms", s.clock.Now().Sub(start).Milliseconds(),
		)
		return nil, deliveryFailure(derr, kind)
	}

	slog.InfoContext(ctx, "otp sent",
		"email", email,
		"op", kind.String(),
		"otp_id", rec.OTPID,
		"expires_at", rec.ExpiresAt,
		"duration_ms", s.clock.Now().Sub(start).Milliseconds(),
	)
	return &IssueResult{Email: email, ExpiresAt: rec.ExpiresAt, RemainingAttempts: decision.RemainingAttempts}, nil
}

// Verify checks code against the latest record for email.
func (s *Service) Verify(ctx context.Context, rawEmail, code string) (*VerifyResult, error) {
	start := s.clock.Now()
	email := domain.NormalizeEmail(rawEmail)
	if email == "" || code == "" {
		return nil, domain.NewError(domain.CodeMissingFields, "Email and OTP are required")
	}
	if err := validate.Var(code, validate.TagCode); err != nil {
		return nil, domain.NewError(domain.CodeInvalidOTPFormat, "OTP must be a 6-digit number")
	}

	rec, err := s.store.FindLatest(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, notFound()
	}
	if err != nil {
		return nil, s.verifyInternal(ctx, email, start, err)
	}

	now := s.clock.Now()
	if rec.IsExpired(now) {
		slog.WarnContext(ctx, "otp expired", "email", email, "expires_at", rec.ExpiresAt)
		return nil, &domain.Error{
			Code:    domain.CodeOTPExpired,
			Message: "OTP has expired. Please request a new code.",
			Expired: true,
		}
	}
	if rec.Verified {
		return &VerifyResult{AlreadyVerified: true}, nil
	}
	if s.opts.LockAfterMax && rec.Attempts >= s.opts.MaxVerifyAttempts {
		slog.WarnContext(ctx, "otp locked after max attempts", "email", email, "attempts", rec.Attempts)
		return nil, invalidCode(0)
	}

	attempts, err := s.store.IncrementAttempts(ctx, rec)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, notFound()
	}
	if err != nil {
		return nil, s.verifyInternal(ctx, email, start, err)
	}
	rec.Attempts = attempts

	if rec.Code != code {
		remaining := rec.AttemptsRemaining(s.opts.MaxVerifyAttempts)
		slog.WarnContext(ctx, "invalid otp code", "email", email, "attempts", attempts)
		return nil, invalidCode(remaining)
	}

	if err := s.store.MarkVerified(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, notFound()
		}
		return nil, s.verifyInternal(ctx, email, start, err)
	}
	rec.Verified = true
	slog.InfoContext(ctx, "otp verified",
		"email", email,
		"otp_id", rec.OTPID,
		"duration_ms", s.clock.Now().Sub(start).Milliseconds(),
	)
	return &VerifyResult{}, nil
}

// HasVerified reports whether email holds a verified code whose record has
// not outlived its storage lifetime.
func (s *Service) HasVerified(ctx context.Context, rawEmail string) (bool, error) {
	email := domain.NormalizeEmail(rawEmail)
	rec, err := s.store.FindLatest(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find latest otp: %w", err)
	}
	if !rec.Verified {
		return false, nil
	}
	return s.clock.Now().Before(rec.CreatedAt.Add(s.opts.RecordTTL)), nil
}

// Consume tears down all OTP and rate limit state for email.
func (s *Service) Consume(ctx context.Context, rawEmail string) error {
	email := domain.NormalizeEmail(rawEmail)
	n, err := s.store.DeleteAll(ctx, email)
	if err != nil {
		return fmt.Errorf("delete otp records: %w", err)
	}
	if err := s.limiter.Reset(ctx, email); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete rate limit record: %w", err)
	}
	slog.InfoContext(ctx, "otp state consumed", "email", email, "otp_records", n)
	return nil
}

// List returns stored records for email, or every record when email is empty.
func (s *Service) List(ctx context.Context, rawEmail string) ([]domain.OTPRecord, error) {
	return s.store.List(ctx, domain.NormalizeEmail(rawEmail))
}

// rollback removes the record created for a failed delivery. It runs on a
// context detached from the request so a disconnecting client cannot leave an
// orphaned code behind.
func (s *Service) rollback(ctx context.Context, rec *domain.OTPRecord) {
	ctx = context.WithoutCancel(ctx)
	b := retry.WithMaxRetries(s.opts.RollbackRetries, retry.NewExponential(s.rollbackBackoff()))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		err := s.store.DeleteOne(ctx, rec)
		if err == nil || errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		slog.ErrorContext(ctx, "otp rollback failed", "email", rec.Email, "otp_id", rec.OTPID, "error", err)
		return
	}
	slog.InfoContext(ctx, "otp rolled back after delivery failure", "email", rec.Email, "otp_id", rec.OTPID)
}

func (s *Service) rollbackBackoff() time.Duration {
	if s.opts.RollbackBackoff <= 0 {
		return time.Millisecond
	}
	return s.opts.RollbackBackoff
}

func (s *Service) denied(d ratelimit.Decision, now time.Time) *domain.Error {
	e := &domain.Error{BlockedUntil: d.BlockedUntil}
	switch d.Reason {
	case ratelimit.ReasonBlocked:
		e.Code = domain.CodeRateLimitBlocked
		minutes := 1
		if d.BlockedUntil != nil {
			minutes = int(math.Ceil(d.BlockedUntil.Sub(now).Minutes()))
		}
		e.Message = fmt.Sprintf("Too many attempts. Please try again in %d minute(s).", minutes)
	default:
		e.Code = domain.CodeRateLimitExceeded
		e.Message = "Too many attempts. Please try again in 1 hour."
	}
	return e
}

func (s *Service) internal(ctx context.Context, kind issueKind, email string, start time.Time, err error) *domain.Error {
	slog.ErrorContext(ctx, "otp issue failed",
		"email", email,
		"op", kind.String(),
		"error", err,
		"duration_ms", s.clock.Now().Sub(start).Milliseconds(),
	)
	verb := "sending"
	if kind == issueResend {
		verb = "resending"
	}
	return domain.Internal(fmt.Sprintf("An unexpected error occurred while %s OTP. Please try again.", verb), err)
}

func (s *Service) verifyInternal(ctx context.Context, email string, start time.Time, err error) *domain.Error {
	slog.ErrorContext(ctx, "otp verify failed",
		"email", email,
		"error", err,
		"duration_ms", s.clock.Now().Sub(start).Milliseconds(),
	)
	return domain.Internal("An unexpected error occurred while verifying OTP. Please try again.", err)
}

func notFound() *domain.Error {
	return domain.NewError(domain.CodeOTPNotFound, "No OTP found for this email. Please request a new one.")
}

func invalidCode(remaining int) *domain.Error {
	return &domain.Error{
		Code:              domain.CodeInvalidOTP,
		Message:           "Invalid OTP code. Please try again.",
		AttemptsRemaining: &remaining,
	}
}
