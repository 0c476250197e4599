package domain

import "time"

// OTPRecord is one issued verification code.
// PK: email, SK: otp_id (ULID, so lexical order is creation order).
// TTL is a Unix timestamp used as the DynamoDB TTL attribute; it trails CreatedAt
// and is only a cleanup safety net. ExpiresAt is what verification enforces.
type OTPRecord struct {
	Email     string    `json:"email" dynamodbav:"email"`
	OTPID     string    `json:"otp_id" dynamodbav:"otp_id"`
	Code      string    `json:"-" dynamodbav:"code"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt time.Time `json:"expires_at" dynamodbav:"expires_at"`
	Verified  bool      `json:"verified" dynamodbav:"verified"`
	Attempts  int       `json:"attempts" dynamodbav:"attempts"`
	TTL       int64     `json:"-" dynamodbav:"ttl"`
}

// IsExpired reports whether now is strictly past ExpiresAt.
func (r *OTPRecord) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// AttemptsRemaining never goes below zero.
func (r *OTPRecord) AttemptsRemaining(limit int) int {
	return max(0, limit-r.Attempts)
}
