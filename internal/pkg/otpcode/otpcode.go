// Package otpcode generates numeric one-time passcodes.
package otpcode

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	// Length is the number of digits in every generated code.
	Length = 6

	minCode = 100000
	maxCode = 999999
)

// Generator produces codes and their absolute expiry.
type Generator interface {
	Generate() (string, error)
	Expiry(now time.Time, validity time.Duration) time.Time
}

// CryptoGenerator draws codes uniformly from [100000, 999999] using crypto/rand.
type CryptoGenerator struct{}

func New() *CryptoGenerator { return &CryptoGenerator{} }

func (*CryptoGenerator) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(maxCode-minCode+1))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+minCode), nil
}

func (*CryptoGenerator) Expiry(now time.Time, validity time.Duration) time.Time {
	return now.Add(validity)
}
