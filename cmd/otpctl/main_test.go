package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AVISH911/donorhub-blood-donation/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	recs     []domain.OTPRecord
	listErr  error
	consumed []string
}

func (f *fakeService) List(_ context.Context, email string) ([]domain.OTPRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if email == "" {
		return f.recs, nil
	}
	var out []domain.OTPRecord
	for _, r := range f.recs {
		if r.Email == email {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeService) Consume(_ context.Context, email string) error {
	f.consumed = append(f.consumed, email)
	return nil
}

func fixtureRecords(now time.Time) []domain.OTPRecord {
	return []domain.OTPRecord{
		{Email: "b@example.com", Code: "222222", CreatedAt: now, ExpiresAt: now.Add(10 * time.Minute)},
		{Email: "a@example.com", Code: "111111", CreatedAt: now.Add(-20 * time.Minute), ExpiresAt: now.Add(-10 * time.Minute), Attempts: 2},
		{Email: "b@example.com", Code: "333333", CreatedAt: now.Add(-time.Minute), ExpiresAt: now.Add(9 * time.Minute), Verified: true},
	}
}

func TestList_PrintsRecordsWithExpiredFlag(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := &fakeService{recs: fixtureRecords(now)}
	var buf bytes.Buffer

	require.NoError(t, list(context.Background(), &buf, svc, "", now))

	out := buf.String()
	assert.Contains(t, out, "EMAIL")
	assert.Contains(t, out, "3 record(s)")
	assert.Regexp(t, `a@example.com\s+111111\s+false\s+2\s+\S+\s+true`, out)
	assert.Regexp(t, `b@example.com\s+222222\s+false\s+0\s+\S+\s+false`, out)
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("a@example.com")), bytes.Index(buf.Bytes(), []byte("b@example.com")))
}

func TestList_FiltersByEmail(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := &fakeService{recs: fixtureRecords(now)}
	var buf bytes.Buffer

	require.NoError(t, list(context.Background(), &buf, svc, "b@example.com", now))

	assert.NotContains(t, buf.String(), "a@example.com")
	assert.Contains(t, buf.String(), "2 record(s)")
}

func TestList_StoreError(t *testing.T) {
	svc := &fakeService{listErr: errors.New("boom")}
	err := list(context.Background(), &bytes.Buffer{}, svc, "", time.Now())
	assert.EqualError(t, err, "boom")
}

func TestReset_SingleEmail(t *testing.T) {
	svc := &fakeService{}
	var buf bytes.Buffer

	require.NoError(t, reset(context.Background(), &buf, svc, "a@example.com"))

	assert.Equal(t, []string{"a@example.com"}, svc.consumed)
	assert.Contains(t, buf.String(), "1 email(s) reset")
}

func TestReset_AllEmailsDeduplicated(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := &fakeService{recs: fixtureRecords(now)}
	var buf bytes.Buffer

	require.NoError(t, reset(context.Background(), &buf, svc, ""))

	assert.Equal(t, []string{"a@example.com", "b@example.com"}, svc.consumed)
	assert.Contains(t, buf.String(), "2 email(s) reset")
}
