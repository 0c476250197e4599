package id

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New generates a new ULID string. ULIDs are lexicographically sortable
// by creation time and safe for use as DynamoDB keys.
func New() string {
	return NewAt(time.Now())
}

// NewAt generates a ULID stamped with t. IDs minted within the same millisecond
// still sort in generation order.
func NewAt(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
