package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/tixsync/internal/clock"
	"github.com/smallbiznis/tixsync/internal/migration"
	"github.com/smallbiznis/tixsync/internal/observability/metrics"
	reportdomain "github.com/smallbiznis/tixsync/internal/report/domain"
	reportrepository "github.com/smallbiznis/tixsync/internal/report/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)

type lockerStub struct {
	held     bool
	err      error
	released []string
}

func (l *lockerStub) TryLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	if l.err != nil {
		return "", false, l.err
	}
	if l.held {
		return "", false, nil
	}
	return "token", true, nil
}

func (l *lockerStub) Release(_ context.Context, key, _ string) error {
	l.released = append(l.released, key)
	return nil
}

type fixture struct {
	sched *Scheduler
	db    *gorm.DB
	repo  reportdomain.Repository
}

func newFixture(t *testing.T, batchSize int) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migration.ApplyEmbedded(db))

	m, err := metrics.New(metrics.Config{}, prometheus.NewRegistry())
	require.NoError(t, err)

	repo := reportrepository.Provide()
	sched, err := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(testNow),
		Config: Config{
			Enabled:           true,
			RecoveryThreshold: 15 * time.Minute,
			BatchSize:         batchSize,
		},
		Reports: repo,
		Metrics: m,
	})
	require.NoError(t, err)
	return &fixture{sched: sched, db: db, repo: repo}
}

func (f *fixture) insertRun(t *testing.T, id snowflake.ID, status reportdomain.Status, age time.Duration) {
	t.Helper()
	received := testNow.Add(-age)
	require.NoError(t, f.repo.InsertRun(context.Background(), f.db, &reportdomain.ReportRun{
		ID:                id,
		OrgID:             7,
		RawBody:           "body",
		ReportFingerprint: fmt.Sprintf("fp-%d", id),
		Status:            status,
		ReceivedAt:        received,
		CreatedAt:         received,
		UpdatedAt:         received,
	}))
}

func (f *fixture) run(t *testing.T, id snowflake.ID) *reportdomain.ReportRun {
	t.Helper()
	run, err := f.repo.FindRunByID(context.Background(), f.db, 7, id)
	require.NoError(t, err)
	require.NotNil(t, run)
	return run
}

func TestRecoverStaleRunsFailsOnlyOldProcessingRuns(t *testing.T) {
	f := newFixture(t, 1)
	f.insertRun(t, 1, reportdomain.StatusProcessing, 30*time.Minute)
	f.insertRun(t, 2, reportdomain.StatusProcessing, 20*time.Minute)
	f.insertRun(t, 3, reportdomain.StatusProcessing, 5*time.Minute)
	f.insertRun(t, 4, reportdomain.StatusCompleted, time.Hour)

	require.NoError(t, f.sched.RunOnce(context.Background()))

	for _, id := range []snowflake.ID{1, 2} {
		run := f.run(t, id)
		assert.Equal(t, reportdomain.StatusFailed, run.Status, id)
		require.NotNil(t, run.ErrorMessage)
		assert.Equal(t, staleRunMessage, *run.ErrorMessage)
		require.NotNil(t, run.ProcessedAt)
	}
	assert.Equal(t, reportdomain.StatusProcessing, f.run(t, 3).Status)
	assert.Equal(t, reportdomain.StatusCompleted, f.run(t, 4).Status)
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	f := newFixture(t, 10)
	f.insertRun(t, 1, reportdomain.StatusProcessing, time.Hour)
	locker := &lockerStub{held: true}
	f.sched.locker = locker

	require.NoError(t, f.sched.RunOnce(context.Background()))

	assert.Equal(t, reportdomain.StatusProcessing, f.run(t, 1).Status)
	assert.Empty(t, locker.released)
}

func TestRunOnceReleasesLock(t *testing.T) {
	f := newFixture(t, 10)
	f.insertRun(t, 1, reportdomain.StatusProcessing, time.Hour)
	locker := &lockerStub{}
	f.sched.locker = locker

	require.NoError(t, f.sched.RunOnce(context.Background()))

	assert.Equal(t, reportdomain.StatusFailed, f.run(t, 1).Status)
	assert.Equal(t, []string{"tixsync:scheduler:" + JobRecoverStaleRuns}, locker.released)
}

func TestRunOnceProceedsWhenLockUnavailable(t *testing.T) {
	f := newFixture(t, 10)
	f.insertRun(t, 1, reportdomain.StatusProcessing, time.Hour)
	f.sched.locker = &lockerStub{err: errors.New("redis down")}

	require.NoError(t, f.sched.RunOnce(context.Background()))

	assert.Equal(t, reportdomain.StatusFailed, f.run(t, 1).Status)
}

func TestRunOnceTreatsCancellationAsSoftTimeout(t *testing.T) {
	f := newFixture(t, 10)
	f.insertRun(t, 1, reportdomain.StatusProcessing, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, f.sched.RunOnce(ctx))
	assert.Equal(t, reportdomain.StatusProcessing, f.run(t, 1).Status)
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, time.Minute, cfg.RunInterval)
	assert.Equal(t, 15*time.Minute, cfg.RecoveryThreshold)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.JobTimeout)
}
