package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AVISH911/donorhub-blood-donation/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Each record is a hash at otp:{email}:{otp_id}. A sorted set at
// otp_idx:{email} indexes the ids by creation time.
var (
	incrAttempts = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`)

	markVerified = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "verified", "1")
return 1
`)
)

type OTPStore struct {
	rdb *redis.Client
}

func NewOTPStore(rdb *redis.Client) *OTPStore {
	return &OTPStore{rdb: rdb}
}

func recordKey(email, otpID string) string { return otpPrefix + email + ":" + otpID }
func indexKey(email string) string { return otpIndexPrefix + email }

func (s *OTPStore) Create(ctx context.Context, rec *domain.OTPRecord) error {
	key := recordKey(rec.Email, rec.OTPID)
	expireAt := time.Unix(rec.TTL, 0)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]interface{}{
			"email":      rec.Email,
			"otp_id":     rec.OTPID,
			"code":       rec.Code,
			"created_at": formatTime(rec.CreatedAt),
			"expires_at": formatTime(rec.ExpiresAt),
			"verified":   boolFlag(rec.Verified),
			"attempts":   rec.Attempts,
			"ttl":        rec.TTL,
		})
		pipe.ExpireAt(ctx, key, expireAt)
		pipe.ZAdd(ctx, indexKey(rec.Email), redis.Z{Score: float64(rec.CreatedAt.UnixMilli()), Member: rec.OTPID})
		pipe.ExpireAt(ctx, indexKey(rec.Email), expireAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("create otp: %w", err)
	}
	return nil
}

// FindLatest walks the index newest first, pruning ids whose hash already expired.
func (s *OTPStore) FindLatest(ctx context.Context, email string) (*domain.OTPRecord, error) {
	ids, err := s.rdb.ZRevRange(ctx, indexKey(email), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read otp index: %w", err)
	}
	for _, id := range ids {
		rec, err := s.get(ctx, email, id)
		if errors.Is(err, domain.ErrNotFound) {
			s.rdb.ZRem(ctx, indexKey(email), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		return rec, nil
	}
	return nil, fmt.Errorf("otp not found: %w", domain.ErrNotFound)
}

func (s *OTPStore) IncrementAttempts(ctx context.Context, rec *domain.OTPRecord) (int, error) {
	n, err := incrAttempts.Run(ctx, s.rdb, []string{recordKey(rec.Email, rec.OTPID)}).Int()
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	if n < 0 {
		return 0, fmt.Errorf("otp %s gone: %w", rec.OTPID, domain.ErrNotFound)
	}
	return n, nil
}

func (s *OTPStore) MarkVerified(ctx context.Context, rec *domain.OTPRecord) error {
	ok, err := markVerified.Run(ctx, s.rdb, []string{recordKey(rec.Email, rec.OTPID)}).Int()
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	if ok == 0 {
		return fmt.Errorf("otp %s gone: %w", rec.OTPID, domain.ErrNotFound)
	}
	return nil
}

func (s *OTPStore) DeleteOne(ctx context.Context, rec *domain.OTPRecord) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, recordKey(rec.Email, rec.OTPID))
		pipe.ZRem(ctx, indexKey(rec.Email), rec.OTPID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}

// DeleteAll drops every record for email along with its index.
func (s *OTPStore) DeleteAll(ctx context.Context, email string) (int, error) {
	ids, err := s.rdb.ZRange(ctx, indexKey(email), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("read otp index: %w", err)
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, recordKey(email, id))
	}
	var del *redis.IntCmd
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			del = pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, indexKey(email))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete otps: %w", err)
	}
	if del == nil {
		return 0, nil
	}
	return int(del.Val()), nil
}

// List returns records for email, or for every indexed email when email is empty.
func (s *OTPStore) List(ctx context.Context, email string) ([]domain.OTPRecord, error) {
	emails := []string{email}
	if email == "" {
		var err error
		if emails, err = s.indexedEmails(ctx); err != nil {
			return nil, err
		}
	}
	var out []domain.OTPRecord
	for _, e := range emails {
		ids, err := s.rdb.ZRange(ctx, indexKey(e), 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("read otp index: %w", err)
		}
		for _, id := range ids {
			rec, err := s.get(ctx, e, id)
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *OTPStore) indexedEmails(ctx context.Context) ([]string, error) {
	var emails []string
	iter := s.rdb.Scan(ctx, 0, otpIndexPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		emails = append(emails, strings.TrimPrefix(iter.Val(), otpIndexPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan otp indexes: %w", err)
	}
	return emails, nil
}

func (s *OTPStore) get(ctx context.Context, email, otpID string) (*domain.OTPRecord, error) {
	key := recordKey(email, otpID)
	vals, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read otp: %w", err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("otp %s not found: %w", otpID, domain.ErrNotFound)
	}
	createdAt, err := parseTime(vals["created_at"])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	expiresAt, err := parseTime(vals["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	rec := &domain.OTPRecord{
		Email:     email,
		OTPID:     otpID,
		Code:      vals["code"],
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
		Verified:  vals["verified"] == "1",
		Attempts:  atoi(vals["attempts"]),
		TTL:       int64(atoi(vals["ttl"])),
	}
	return rec, nil
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
