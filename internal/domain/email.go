package domain

import "strings"

// NormalizeEmail lower-cases and trims an address so that case and whitespace
// variants map to the same store and limiter key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
