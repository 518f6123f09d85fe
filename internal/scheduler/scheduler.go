package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/tixsync/internal/clock"
	"github.com/smallbiznis/tixsync/internal/observability/metrics"
	"github.com/smallbiznis/tixsync/internal/ratelimit"
	reportdomain "github.com/smallbiznis/tixsync/internal/report/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	JobRecoverStaleRuns = "recover_stale_runs"

	lockKeyFormat = "tixsync:scheduler:%s"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Config  Config `optional:"true"`
	Reports reportdomain.Repository
	Locker  *ratelimit.Locker        `optional:"true"`
	Metrics *metrics.PipelineMetrics `optional:"true"`
}

// Scheduler runs periodic maintenance over report runs. With redis configured
// each job holds a lock so only one replica runs it per tick.
type Scheduler struct {
	db      *gorm.DB
	log     *zap.Logger
	cfg     Config
	clock   clock.Clock
	reports reportdomain.Repository
	locker  reportdomain.Locker
	metrics *metrics.PipelineMetrics
}

type job struct {
	name string
	run  func(ctx context.Context) error
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Reports == nil {
		return nil, ErrInvalidConfig
	}
	s := &Scheduler{
		db:      p.DB,
		log:     p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:     p.Config.withDefaults(),
		clock:   p.Clock,
		reports: p.Reports,
		metrics: p.Metrics,
	}
	if p.Locker != nil {
		s.locker = p.Locker
	}
	return s, nil
}

func (s *Scheduler) jobs() []job {
	return []job{
		{name: JobRecoverStaleRuns, run: s.RecoverStaleRunsJob},
	}
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	for _, j := range s.jobs() {
		err = errors.Join(err, s.runJob(parent, j.name, j.run))
	}
	return err
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	release, ok := s.acquire(parent, name)
	if !ok {
		s.metrics.IncJobRun(name, metrics.JobOutcomeSkipped)
		s.log.Debug("job skipped, lock held elsewhere", zap.String("job", name))
		return nil
	}
	defer release()

	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	start := s.clock.Now()
	err := fn(ctx)
	log := s.log.With(
		zap.String("job", name),
		zap.Duration("duration", s.clock.Now().Sub(start)),
	)

	switch {
	case err == nil:
		s.metrics.IncJobRun(name, metrics.JobOutcomeSuccess)
		return nil
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		// deadline is a soft timeout, the next tick picks up the rest
		s.metrics.IncJobRun(name, metrics.JobOutcomeTimeout)
		log.Warn("job timed out", zap.Duration("timeout", s.cfg.JobTimeout), zap.Error(err))
		return nil
	default:
		s.metrics.IncJobRun(name, metrics.JobOutcomeError)
		return fmt.Errorf("%s: %w", name, err)
	}
}

func (s *Scheduler) acquire(ctx context.Context, name string) (func(), bool) {
	noop := func() {}
	if s.locker == nil {
		return noop, true
	}

	key := fmt.Sprintf(lockKeyFormat, name)
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.JobTimeout)
	if err != nil {
		s.log.Warn("scheduler lock unavailable", zap.String("key", key), zap.Error(err))
		return noop, true
	}
	if !ok {
		return nil, false
	}
	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("scheduler lock release failed", zap.String("key", key), zap.Error(err))
		}
	}, true
}
