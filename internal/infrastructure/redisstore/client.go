// Package redisstore keeps OTP and rate limit state in Redis as an
// alternative to DynamoDB. Key expiry plays the role of the DynamoDB TTL.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/AVISH911/donorhub-blood-donation/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	otpPrefix      = "otp:"
	otpIndexPrefix = "otp_idx:"
	attemptPrefix  = "otp_attempts:"
)

// NewClient connects and pings Redis.
func NewClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}
	return rdb, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
