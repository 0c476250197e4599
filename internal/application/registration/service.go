// Package registration creates accounts for emails that completed OTP
// verification and then consumes the OTP state.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AVISH911/donorhub-blood-donation/internal/domain"
	"github.com/AVISH911/donorhub-blood-donation/internal/pkg/clock"
	"github.com/AVISH911/donorhub-blood-donation/internal/pkg/id"
	"github.com/AVISH911/donorhub-blood-donation/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

const internalMessage = "An unexpected error occurred during registration. Please try again."

// Verifications is the slice of the OTP service registration depends on.
type Verifications interface {
	HasVerified(ctx context.Context, email string) (bool, error)
	Consume(ctx context.Context, email string) error
}

// UserStore returns domain.ErrNotFound from GetByEmail for unknown emails and
// domain.ErrConflict from Create for duplicates.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
}

type Service struct {
	users         UserStore
	verifications Verifications
	clock         clock.Clocker
	bcryptCost    int
}

func NewService(users UserStore, verifications Verifications, clk clock.Clocker) *Service {
	return &Service{users: users, verifications: verifications, clock: clk, bcryptCost: bcrypt.DefaultCost}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	start := s.clock.Now()
	req.Name = strings.TrimSpace(req.Name)
	req.Email = domain.NormalizeEmail(req.Email)
	req.UserType = strings.TrimSpace(req.UserType)

	if err := validate.Struct(req); err != nil {
		if _, tag, ok := validate.FirstFailure(err); ok && tag == "required" {
			return nil, domain.NewError(domain.CodeMissingFields, "Name, email, and password are required")
		}
		return nil, domain.NewError(domain.CodeInvalidInput, err.Error())
	}
	if !req.EmailVerified {
		return nil, domain.NewError(domain.CodeEmailNotVerified, "Please verify your email with OTP before registering")
	}

	verified, err := s.verifications.HasVerified(ctx, req.Email)
	if err != nil {
		return nil, s.internal(ctx, req.Email, start, err)
	}
	if !verified {
		slog.WarnContext(ctx, "registration without verified otp", "email", req.Email)
		return nil, domain.NewError(domain.CodeVerificationNotFound, "Email verification not found. Please verify your email with OTP")
	}

	_, err = s.users.GetByEmail(ctx, req.Email)
	if err == nil {
		return nil, alreadyRegistered()
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, s.internal(ctx, req.Email, start, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, s.internal(ctx, req.Email, start, fmt.Errorf("hash password: %w", err))
	}
	userType := req.UserType
	if userType == "" {
		userType = domain.UserTypeDonor
	}
	now := s.clock.Now()
	u := &domain.User{
		UserID:       id.NewAt(now),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		UserType:     userType,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, alreadyRegistered()
		}
		return nil, s.internal(ctx, req.Email, start, err)
	}

	// The account exists at this point; leftover OTP state expires on its own.
	if err := s.verifications.Consume(ctx, req.Email); err != nil {
		slog.WarnContext(ctx, "otp cleanup after registration failed", "email", req.Email, "error", err)
	}
	slog.InfoContext(ctx, "user registered",
		"email", req.Email,
		"user_id", u.UserID,
		"duration_ms", s.clock.Now().Sub(start).Milliseconds(),
	)
	return u, nil
}

func (s *Service) internal(ctx context.Context, email string, start time.Time, err error) *domain.Error {
	slog.ErrorContext(ctx, "registration failed",
		"email", email,
		"error", err,
		"duration_ms", s.clock.Now().Sub(start).Milliseconds(),
	)
	return domain.Internal(internalMessage, err)
}

func alreadyRegistered() *domain.Error {
	return domain.NewError(domain.CodeEmailRegistered, "This email is already registered. Please login instead.")
}
