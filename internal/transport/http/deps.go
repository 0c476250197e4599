package http

import (
	"context"

	"github.com/AVISH911/donorhub-blood-donation/internal/application/otp"
	"github.com/AVISH911/donorhub-blood-donation/internal/application/ratelimit"
	"github.com/AVISH911/donorhub-blood-donation/internal/domain"
	"github.com/AVISH911/donorhub-blood-donation/internal/pkg/clock"
	"github.com/AVISH911/donorhub-blood-donation/internal/pkg/otpcode"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
}

// Deps holds all infrastructure dependencies for the router.
// Clock and Codes default to the production implementations when nil.
type Deps struct {
	OTPStore       otp.Store
	RateLimitStore ratelimit.Store
	UserRepo       UserRepository
	Gateway        otp.Gateway
	Clock          clock.Clocker
	Codes          otpcode.Generator
}

func (d *Deps) clock() clock.Clocker {
	if d.Clock != nil {
		return d.Clock
	}
	return clock.New()
}

func (d *Deps) codes() otpcode.Generator {
	if d.Codes != nil {
		return d.Codes
	}
	return otpcode.New()
}
