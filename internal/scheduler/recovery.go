package scheduler

import (
	"context"

	"go.uber.org/zap"
)

const staleRunMessage = "processing interrupted before completion"

// RecoverStaleRunsJob fails report runs left in processing longer than the
// recovery threshold, typically after a crash or a cancelled request.
func (s *Scheduler) RecoverStaleRunsJob(ctx context.Context) error {
	now := s.clock.Now().UTC()
	cutoff := now.Add(-s.cfg.RecoveryThreshold)

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := s.reports.FailStaleRuns(ctx, s.db, cutoff, staleRunMessage, now, s.cfg.BatchSize)
		if err != nil {
			return err
		}
		total += n
		if n < int64(s.cfg.BatchSize) {
			break
		}
	}

	if total > 0 {
		s.metrics.AddRecoveredRuns(total)
		s.log.Warn("stale report runs failed",
			zap.Int64("count", total),
			zap.Time("cutoff", cutoff),
		)
	}
	return nil
}
