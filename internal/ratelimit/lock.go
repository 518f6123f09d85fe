package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const keyReportLock = "tixsync:report:%s:%s"

// Deletes the key only while it still holds the caller's token.
const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var (
	errLockNotConfigured = errors.New("lock client not configured")
	errLockKeyEmpty      = errors.New("lock key is empty")
	errLockTTL           = errors.New("lock ttl must be positive")
)

// Locker is a single-instance redis lock keyed by report.
type Locker struct {
	client *redis.Client
	script *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

// ReportLockKey names the lock held while one report body is processed for an organization.
func ReportLockKey(orgID, fingerprint string) string {
	return fmt.Sprintf(keyReportLock, orgID, fingerprint)
}

// TryLock sets key to a fresh token when it is free. ok is false when another
// holder owns the key.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error) {
	switch {
	case l == nil || l.client == nil:
		return "", false, errLockNotConfigured
	case key == "":
		return "", false, errLockKeyEmpty
	case ttl <= 0:
		return "", false, errLockTTL
	}

	token = uuid.NewString()
	ok, err = l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil || key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}
