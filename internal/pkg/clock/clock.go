// Package clock provides a tiny time abstraction so expiry and window math can
// be driven by a fake time source in tests.
package clock

import "time"

// Clocker abstracts time so callers can replace real time in tests.
type Clocker interface {
	Now() time.Time
}

// TimeClocker is the production clock backed by time.Now, always in UTC.
type TimeClocker struct{}

func New() *TimeClocker { return &TimeClocker{} }

func (*TimeClocker) Now() time.Time { return time.Now().UTC() }
