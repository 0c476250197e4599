package http

import (
	"context"
	"net/http"

	"github.com/AVISH911/donorhub-blood-donation/internal/application/otp"
	"github.com/AVISH911/donorhub-blood-donation/internal/application/ratelimit"
	"github.com/AVISH911/donorhub-blood-donation/internal/application/registration"
	"github.com/AVISH911/donorhub-blood-donation/internal/config"
	"github.com/AVISH911/donorhub-blood-donation/internal/transport/http/handler"
	appmiddleware "github.com/AVISH911/donorhub-blood-donation/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. ctx bounds the
// lifetime of background work such as the IP limiter's cleanup loop.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	if cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	sensitiveRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.IPRateLimitRPS), cfg.IPRateLimitBurst)

	clk := deps.clock()
	limiter := ratelimit.New(deps.RateLimitStore, clk, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	otpSvc := otp.NewService(deps.OTPStore, limiter, deps.Gateway, deps.codes(), clk, otp.Options{
		Validity:          cfg.OTP.Validity,
		RecordTTL:         cfg.OTP.RecordTTL,
		MaxVerifyAttempts: cfg.OTP.MaxVerifyAttempts,
		LockAfterMax:      cfg.OTP.LockAfterMaxAttempts,
		DeliveryTimeout:   cfg.DeliveryTimeout,
		RollbackRetries:   otp.DefaultOptions().RollbackRetries,
		RollbackBackoff:   otp.DefaultOptions().RollbackBackoff,
	})
	regSvc := registration.NewService(deps.UserRepo, otpSvc, clk)

	healthH := handler.NewHealthHandler()
	otpH := handler.NewOTPHandler(otpSvc)
	regH := handler.NewRegisterHandler(regSvc)

	r.Get("/health", healthH.Health)

	authRoutes := func(r chi.Router) {
		r.With(sensitiveRL.Limit).Post("/send-otp", otpH.Send)
		r.With(sensitiveRL.Limit).Post("/resend-otp", otpH.Resend)
		r.With(sensitiveRL.Limit).Post("/verify-otp", otpH.Verify)
		r.Post("/register", regH.Register)
	}
	r.Route("/auth", authRoutes)
	r.Route("/api/auth", authRoutes)

	return r
}
