package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/AVISH911/donorhub-blood-donation/internal/domain"
)

type errorBody struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	ErrorCode domain.Code `json:"errorCode"`
}

// writeJSONError writes a JSON-encoded error response with the correct Content-Type.
func writeJSONError(w http.ResponseWriter, status int, code domain.Code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Message: msg, ErrorCode: code})
}
