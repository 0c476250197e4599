package domain

import (
	"errors"
	"time"
)

// Sentinel errors for repository-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Code is the stable machine-readable identifier sent to callers as errorCode.
type Code string

const (
	CodeEmailRequired        Code = "EMAIL_REQUIRED"
	CodeInvalidEmailFormat   Code = "INVALID_EMAIL_FORMAT"
	CodeMissingFields        Code = "MISSING_FIELDS"
	CodeInvalidInput         Code = "INVALID_INPUT"
	CodeInvalidOTPFormat     Code = "INVALID_OTP_FORMAT"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"
	CodeRateLimitBlocked     Code = "RATE_LIMIT_BLOCKED"
	CodeOTPNotFound          Code = "OTP_NOT_FOUND"
	CodeOTPExpired           Code = "OTP_EXPIRED"
	CodeInvalidOTP           Code = "INVALID_OTP"
	CodeEmailTimeout         Code = "EMAIL_TIMEOUT"
	CodeEmailAuthFailed      Code = "EMAIL_AUTH_FAILED"
	CodeEmailConnFailed      Code = "EMAIL_CONNECTION_FAILED"
	CodeEmailNotConfigured   Code = "EMAIL_NOT_CONFIGURED"
	CodeInvalidEmail         Code = "INVALID_EMAIL"
	CodeEmailSendFailed      Code = "EMAIL_SEND_FAILED"
	CodeEmailNotVerified     Code = "EMAIL_NOT_VERIFIED"
	CodeVerificationNotFound Code = "OTP_VERIFICATION_NOT_FOUND"
	CodeEmailRegistered      Code = "EMAIL_ALREADY_REGISTERED"
	CodeTooManyRequests      Code = "TOO_MANY_REQUESTS"
	CodeInternal             Code = "INTERNAL_ERROR"
)

// Error is a classified failure returned by application services.
// Optional detail fields are only set for the codes that carry them.
type Error struct {
	Code    Code
	Message string
	Err     error

	AttemptsRemaining *int       // INVALID_OTP
	Expired           bool       // OTP_EXPIRED
	BlockedUntil      *time.Time // RATE_LIMIT_*
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Err.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a coded error with a user-facing message.
func NewError(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Internal wraps an unexpected failure. The message never includes err.
func Internal(msg string, err error) *Error {
	return &Error{Code: CodeInternal, Message: msg, Err: err}
}

// CodeOf returns the code carried by err, or CodeInternal for unclassified errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
