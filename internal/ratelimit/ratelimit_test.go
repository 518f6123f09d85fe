package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/tixsync/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportLockKey(t *testing.T) {
	assert.Equal(t, "tixsync:report:42:abc", ReportLockKey("42", "abc"))
}

func TestNilLockerIsSafe(t *testing.T) {
	var l *Locker
	assert.Nil(t, NewLocker(nil))

	_, ok, err := l.TryLock(context.Background(), "k", time.Minute)
	assert.False(t, ok)
	assert.ErrorIs(t, err, errLockNotConfigured)
	assert.NoError(t, l.Release(context.Background(), "k", "token"))
}

func TestSubmissionLimiterDisabledAllows(t *testing.T) {
	l := NewSubmissionLimiter(config.Config{Submit: config.SubmitConfig{Rate: 1, Burst: 1}}, nil)
	assert.Nil(t, l)
	assert.False(t, l.Enabled())

	res, err := l.Allow(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 20*time.Second, bucketTTL(1, 10))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
	assert.Equal(t, time.Second, bucketTTL(0, 1))
}

func TestBucketResult(t *testing.T) {
	allowed := bucketResult([]any{int64(1), "3.5", int64(1700000000000)}, 2, 5)
	assert.True(t, allowed.Allowed)
	assert.Equal(t, 3, allowed.Remaining)
	assert.Equal(t, 5, allowed.Limit)
	assert.Zero(t, allowed.RetryAfter)

	denied := bucketResult([]any{int64(0), "0.5", int64(1700000000000)}, 2, 5)
	assert.False(t, denied.Allowed)
	assert.Equal(t, 250*time.Millisecond, denied.RetryAfter)
}
