package handler

import (
	"context"
	"net/http"

	"github.com/AVISH911/donorhub-blood-donation/internal/domain"
)

type RegistrationService interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error)
}

// RegisterHandler creates accounts for verified emails.
type RegisterHandler struct {
	svc RegistrationService
}

func NewRegisterHandler(svc RegistrationService) *RegisterHandler {
	return &RegisterHandler{svc: svc}
}

func (h *RegisterHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decode(r, &req); err != nil {
		writeError(w, domain.NewError(domain.CodeMissingFields, "Name, email, and password are required"))
		return
	}
	u, err := h.svc.Register(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{
		Success: true,
		Message: "Registration successful! Your email has been verified.",
		User:    &UserView{ID: u.UserID, Name: u.Name, Email: u.Email, UserType: u.UserType},
	})
}
