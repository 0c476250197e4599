package redisstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/AVISH911/donorhub-blood-donation/internal/domain"
	"github.com/redis/go-redis/v9"
)

// putIfVersion replaces the hash only when its version still equals ARGV[1].
// A missing hash or field counts as version 0.
var putIfVersion = redis.NewScript(`
local cur = redis.call("HGET", KEYS[1], "version")
if (cur or "0") ~= ARGV[1] then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("HSET", KEYS[1], "request_count", ARGV[2], "first_request_at", ARGV[3], "version", ARGV[5])
if ARGV[4] ~= "" then
  redis.call("HSET", KEYS[1], "blocked_until", ARGV[4])
end
if tonumber(ARGV[6]) > 0 then
  redis.call("EXPIREAT", KEYS[1], ARGV[6])
end
return 1
`)

// RateLimitStore keeps one hash per email at otp_attempts:{email}.
type RateLimitStore struct {
	rdb *redis.Client
}

func NewRateLimitStore(rdb *redis.Client) *RateLimitStore {
	return &RateLimitStore{rdb: rdb}
}

func attemptKey(email string) string { return attemptPrefix + email }

func (s *RateLimitStore) Get(ctx context.Context, email string) (*domain.RateLimitRecord, error) {
	vals, err := s.rdb.HGetAll(ctx, attemptKey(email)).Result()
	if err != nil {
		return nil, fmt.Errorf("read rate limit record: %w", err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("rate limit record not found: %w", domain.ErrNotFound)
	}
	first, err := parseTime(vals["first_request_at"])
	if err != nil {
		return nil, fmt.Errorf("parse first_request_at: %w", err)
	}
	rec := &domain.RateLimitRecord{
		Email:          email,
		RequestCount:   atoi(vals["request_count"]),
		FirstRequestAt: first,
		Version:        int64(atoi(vals["version"])),
	}
	if v := vals["blocked_until"]; v != "" {
		until, err := parseTime(v)
		if err != nil {
			return nil, fmt.Errorf("parse blocked_until: %w", err)
		}
		rec.BlockedUntil = &until
	}
	return rec, nil
}

// Put replaces the whole record so a cleared block does not linger. The write
// only lands if the stored version equals rec.Version; otherwise it returns
// domain.ErrConflict. On success rec.Version is bumped.
func (s *RateLimitStore) Put(ctx context.Context, rec *domain.RateLimitRecord) error {
	blocked := ""
	if rec.BlockedUntil != nil {
		blocked = formatTime(*rec.BlockedUntil)
	}
	next := rec.Version + 1
	ok, err := putIfVersion.Run(ctx, s.rdb, []string{attemptKey(rec.Email)},
		strconv.FormatInt(rec.Version, 10),
		rec.RequestCount,
		formatTime(rec.FirstRequestAt),
		blocked,
		strconv.FormatInt(next, 10),
		rec.TTL,
	).Int()
	if err != nil {
		return fmt.Errorf("write rate limit record: %w", err)
	}
	if ok == 0 {
		return fmt.Errorf("rate limit record for %s changed: %w", rec.Email, domain.ErrConflict)
	}
	rec.Version = next
	return nil
}

func (s *RateLimitStore) Delete(ctx context.Context, email string) error {
	if err := s.rdb.Del(ctx, attemptKey(email)).Err(); err != nil {
		return fmt.Errorf("delete rate limit record: %w", err)
	}
	return nil
}
