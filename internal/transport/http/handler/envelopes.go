package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/AVISH911/donorhub-blood-donation/internal/domain"
)

// Envelope is the response wrapper for every auth endpoint. Optional fields
// are only present for the outcomes that carry them.
type Envelope struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	ErrorCode domain.Code `json:"errorCode,omitempty"`

	ExpiresAt         *time.Time `json:"expiresAt,omitempty"`
	RemainingAttempts *int       `json:"remainingAttempts,omitempty"`

	Verified          *bool      `json:"verified,omitempty"`
	AttemptsRemaining *int       `json:"attemptsRemaining,omitempty"`
	Expired           bool       `json:"expired,omitempty"`
	BlockedUntil      *time.Time `json:"blockedUntil,omitempty"`

	User *UserView `json:"user,omitempty"`
}

// UserView is the public projection of a registered user.
type UserView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	UserType string `json:"userType"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status and a failure envelope.
func writeError(w http.ResponseWriter, err error) {
	status, env := httpError(err)
	writeJSON(w, status, env)
}

func decode(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func utcPtr(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}
