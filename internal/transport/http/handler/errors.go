package handler

import (
	"errors"
	"net/http"

	"github.com/AVISH911/donorhub-blood-donation/internal/domain"
)

const genericMessage = "An unexpected error occurred. Please try again."

// httpError translates service errors into HTTP status codes and envelopes.
// Anything without a domain code is reported as INTERNAL_ERROR.
func httpError(err error) (int, Envelope) {
	var de *domain.Error
	if !errors.As(err, &de) {
		return http.StatusInternalServerError, Envelope{Message: genericMessage, ErrorCode: domain.CodeInternal}
	}
	env := Envelope{
		Message:           de.Message,
		ErrorCode:         de.Code,
		AttemptsRemaining: de.AttemptsRemaining,
		Expired:           de.Expired,
	}
	if de.BlockedUntil != nil {
		env.BlockedUntil = utcPtr(*de.BlockedUntil)
	}
	if de.Code == domain.CodeInvalidOTP {
		env.Verified = new(bool)
	}
	return statusFor(de.Code), env
}

func statusFor(code domain.Code) int {
	switch code {
	case domain.CodeEmailRequired,
		domain.CodeInvalidEmailFormat,
		domain.CodeMissingFields,
		domain.CodeInvalidInput,
		domain.CodeInvalidOTPFormat,
		domain.CodeInvalidOTP,
		domain.CodeOTPExpired,
		domain.CodeEmailNotVerified,
		domain.CodeVerificationNotFound,
		domain.CodeEmailRegistered:
		return http.StatusBadRequest
	case domain.CodeOTPNotFound:
		return http.StatusNotFound
	case domain.CodeRateLimitExceeded,
		domain.CodeRateLimitBlocked,
		domain.CodeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
