package ratelimit

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/tixsync/internal/config"
)

const keyReportSubmit = "tixsync:submit:%s"

// SubmissionLimiter caps how often one organization may submit reports.
type SubmissionLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

// NewSubmissionLimiter returns nil when no rate is configured or redis is absent.
func NewSubmissionLimiter(cfg config.Config, client *redis.Client) *SubmissionLimiter {
	if client == nil || cfg.Submit.Rate <= 0 {
		return nil
	}
	return &SubmissionLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.Submit.Rate,
		burst:  max(cfg.Submit.Burst, 1),
	}
}

func (l *SubmissionLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *SubmissionLimiter) Allow(ctx context.Context, orgID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyReportSubmit, orgID), l.rate, l.burst)
}
