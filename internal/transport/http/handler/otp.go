package handler

import (
	"context"
	"net/http"

	"github.com/AVISH911/donorhub-blood-donation/internal/application/otp"
	"github.com/AVISH911/donorhub-blood-donation/internal/domain"
)

// OTPService is what the OTP endpoints need from the application layer.
type OTPService interface {
	Send(ctx context.Context, email string) (*otp.IssueResult, error)
	Resend(ctx context.Context, email string) (*otp.IssueResult, error)
	Verify(ctx context.Context, email, code string) (*otp.VerifyResult, error)
}

// OTPHandler serves send-otp, resend-otp and verify-otp.
type OTPHandler struct {
	svc OTPService
}

func NewOTPHandler(svc OTPService) *OTPHandler {
	return &OTPHandler{svc: svc}
}

type emailBody struct {
	Email string `json:"email"`
}

type verifyBody struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (h *OTPHandler) Send(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, h.svc.Send, "OTP sent to your email")
}

func (h *OTPHandler) Resend(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, h.svc.Resend, "New OTP sent to your email")
}

func (h *OTPHandler) issue(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (*otp.IssueResult, error), msg string) {
	var body emailBody
	if err := decode(r, &body); err != nil {
		writeError(w, domain.NewError(domain.CodeEmailRequired, "Email is required"))
		return
	}
	res, err := fn(r.Context(), body.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{
		Success:           true,
		Message:           msg,
		ExpiresAt:         utcPtr(res.ExpiresAt),
		RemainingAttempts: res.RemainingAttempts,
	})
}

func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var body verifyBody
	if err := decode(r, &body); err != nil {
		writeError(w, domain.NewError(domain.CodeMissingFields, "Email and OTP are required"))
		return
	}
	res, err := h.svc.Verify(r.Context(), body.Email, body.OTP)
	if err != nil {
		writeError(w, err)
		return
	}
	msg := "Email verified successfully"
	if res.AlreadyVerified {
		msg = "Email already verified"
	}
	verified := true
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: msg, Verified: &verified})
}
