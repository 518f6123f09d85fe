package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	aidomain "github.com/smallbiznis/tixsync/internal/aimatch/domain"
	"github.com/smallbiznis/tixsync/internal/clock"
	"github.com/smallbiznis/tixsync/internal/config"
	"github.com/smallbiznis/tixsync/internal/events"
	mappingdomain "github.com/smallbiznis/tixsync/internal/mapping/domain"
	mappingrepository "github.com/smallbiznis/tixsync/internal/mapping/repository"
	mappingservice "github.com/smallbiznis/tixsync/internal/mapping/service"
	matchingdomain "github.com/smallbiznis/tixsync/internal/matching/domain"
	matchingservice "github.com/smallbiznis/tixsync/internal/matching/service"
	"github.com/smallbiznis/tixsync/internal/migration"
	"github.com/smallbiznis/tixsync/internal/observability/metrics"
	reportdomain "github.com/smallbiznis/tixsync/internal/report/domain"
	reportrepository "github.com/smallbiznis/tixsync/internal/report/repository"
	showdomain "github.com/smallbiznis/tixsync/internal/showdirectory/domain"
	showrepository "github.com/smallbiznis/tixsync/internal/showdirectory/repository"
	showservice "github.com/smallbiznis/tixsync/internal/showdirectory/service"
	webhookservice "github.com/smallbiznis/tixsync/internal/webhook/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testOrgID = snowflake.ID(42)

const nightlyReport = `Salgsrapport
Salgsdetaljer
Espen Lind -
Dato: 12.03.2025 20:00
Solgte: 150
Fribilletter: 5
Tilgjengelige: 50
Omsetning: kr 45 000

Ukjent Artist
Dato: 14.03.2025
Solgte: 10
Omsetning: kr 1 000

Totalt
Solgte: 160
Omsetning: kr 46 000
`

type publisherStub struct {
	mu     sync.Mutex
	events []events.ReportProcessed
}

func (p *publisherStub) PublishReportProcessed(_ context.Context, e events.ReportProcessed) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

type lockerStub struct {
	free     bool
	released []string
}

func (l *lockerStub) TryLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	if !l.free {
		return "", false, nil
	}
	return "token-" + key, true, nil
}

func (l *lockerStub) Release(_ context.Context, key, _ string) error {
	l.released = append(l.released, key)
	return nil
}

// cancellingMatcher cancels the run while shows are being matched.
type cancellingMatcher struct {
	cancel context.CancelFunc
}

func (m cancellingMatcher) Match(context.Context, snowflake.ID, reportdomain.ParsedShow, []showdomain.CanonicalShow) matchingdomain.MatchResult {
	m.cancel()
	return matchingdomain.Unmatched()
}

type pipeline struct {
	svc       *Service
	db        *gorm.DB
	shows     showdomain.Service
	mappings  mappingdomain.Service
	publisher *publisherStub
	registry  *prometheus.Registry
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migration.ApplyEmbedded(db))
	return db
}

func newPipeline(t *testing.T, webhookURL string, matcher matchingdomain.Matcher) *pipeline {
	t.Helper()

	db := newTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 3, 13, 2, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	registry := prometheus.NewRegistry()
	m, err := metrics.New(metrics.Config{ServiceName: "tixsync-test", Environment: "test"}, registry)
	require.NoError(t, err)

	shows := showservice.New(showservice.Params{DB: db, Log: log, Clock: clk, Repo: showrepository.Provide()})
	mappings := mappingservice.New(mappingservice.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: mappingrepository.Provide()})
	if matcher == nil {
		matcher = matchingservice.New(matchingservice.Params{
			Log:       log,
			Cache:     mappings,
			Directory: shows,
			Suggester: aidomain.Noop{},
			Metrics:   m,
		})
	}

	cfg := config.Config{
		Webhook: config.WebhookConfig{
			URL:         webhookURL,
			MaxAttempts: 2,
			BaseDelay:   time.Second,
			Mode:        config.WebhookModeSequential,
		},
		Matching:      config.MatchingConfig{Concurrency: 2},
		ReportLockTTL: time.Minute,
	}
	publisher := &publisherStub{}

	svc := New(Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      clk,
		Cfg:        cfg,
		Repo:       reportrepository.Provide(),
		Matcher:    matcher,
		Directory:  shows,
		Dispatcher: webhookservice.NewService(cfg.Webhook, clk, log, m),
		Publisher:  publisher,
		Metrics:    m,
	}).(*Service)

	_, err = shows.Upsert(context.Background(), testOrgID, showdomain.UpsertRequest{
		ID:   "show-1",
		Name: "Espen Lind",
		Date: "2025-03-12",
		Time: ptr("20:00"),
		URL:  "https://notion.so/show-1",
	})
	require.NoError(t, err)

	return &pipeline{svc: svc, db: db, shows: shows, mappings: mappings, publisher: publisher, registry: registry}
}

func newReceiver(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func ptr(s string) *string { return &s }

func TestProcessResolvesAndNotifies(t *testing.T) {
	ctx := context.Background()
	srv, calls := newReceiver(t, http.StatusOK)
	p := newPipeline(t, srv.URL, nil)

	summary, err := p.svc.Process(ctx, reportdomain.ProcessRequest{OrgID: testOrgID, Body: nightlyReport})
	require.NoError(t, err)

	assert.Equal(t, reportdomain.StatusCompleted, summary.Status)
	assert.Equal(t, 2, summary.ParsedShowCount)
	assert.Equal(t, 1, summary.MatchedCount)
	assert.Equal(t, 1, summary.UnmatchedCount)
	assert.Equal(t, 1, summary.NewMappingCount)
	assert.Equal(t, 1, summary.NotificationsSent)
	assert.Zero(t, summary.DeliveryFailures)
	assert.Empty(t, summary.ParseErrors)
	require.NotNil(t, summary.Summary)
	assert.Equal(t, 160, summary.Summary.TicketsSold)
	assert.Equal(t, int32(1), calls.Load())

	require.Len(t, summary.Shows, 2)
	assert.Equal(t, "exact", summary.Shows[0].Method)
	assert.Equal(t, "show-1", summary.Shows[0].CanonicalShowID)
	assert.Equal(t, reportdomain.DeliveryDelivered, summary.Shows[0].DeliveryStatus)
	assert.False(t, summary.Shows[1].Matched)
	assert.Equal(t, reportdomain.DeliverySkipped, summary.Shows[1].DeliveryStatus)

	id, err := snowflake.ParseString(summary.ReportID)
	require.NoError(t, err)
	detail, err := p.svc.Get(ctx, testOrgID, id)
	require.NoError(t, err)
	assert.Equal(t, reportdomain.StatusCompleted, detail.Status)
	assert.Equal(t, nightlyReport, detail.RawBody)
	assert.NotEmpty(t, detail.ReportFingerprint)
	require.NotNil(t, detail.ProcessedAt)
	assert.JSONEq(t, `[]`, string(detail.ParseErrors))
	assert.JSONEq(t, `{"show_count":0,"tickets_sold":160,"free_tickets":0,"available":0,"revenue":46000}`, string(detail.Summary))

	require.Len(t, detail.Entries, 2)
	delivered := detail.Entries[0]
	assert.Equal(t, "Espen Lind", delivered.CleanName)
	assert.Equal(t, int64(45000), delivered.Revenue)
	assert.Equal(t, reportdomain.DeliveryDelivered, delivered.DeliveryStatus)
	assert.Equal(t, 1, delivered.DeliveryAttempts)
	assert.NotNil(t, delivered.DeliveryID)
	assert.Nil(t, delivered.DeliveryError)
	assert.Equal(t, reportdomain.DeliverySkipped, detail.Entries[1].DeliveryStatus)
	assert.Nil(t, detail.Entries[1].CanonicalShowID)

	mapping, err := p.mappings.Lookup(ctx, testOrgID, delivered.IdentityHash)
	require.NoError(t, err)
	require.NotNil(t, mapping)
	assert.True(t, mapping.Confirmed)

	require.Len(t, p.publisher.events, 1)
	assert.Equal(t, "completed", p.publisher.events[0].Status)
	assert.Equal(t, 1, p.publisher.events[0].NotificationsSent)

	count, err := testutil.GatherAndCount(p.registry, "tixsync_reports_processed_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestProcessReusesMappingOnNextRun(t *testing.T) {
	ctx := context.Background()
	srv, _ := newReceiver(t, http.StatusOK)
	p := newPipeline(t, srv.URL, nil)

	_, err := p.svc.Process(ctx, reportdomain.ProcessRequest{OrgID: testOrgID, Body: nightlyReport})
	require.NoError(t, err)

	second, err := p.svc.Process(ctx, reportdomain.ProcessRequest{OrgID: testOrgID, Body: nightlyReport})
	require.NoError(t, err)

	assert.Equal(t, 1, second.MatchedCount)
	assert.Zero(t, second.NewMappingCount)
	assert.Equal(t, matchingdomain.MethodMapping, second.Shows[0].Method)
	assert.False(t, second.Shows[0].IsNewMatch)
}

func TestProcessUnusableReportFails(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, "", nil)

	summary, err := p.svc.Process(ctx, reportdomain.ProcessRequest{OrgID: testOrgID, Body: "nothing to see here"})
	require.NoError(t, err)

	assert.Equal(t, reportdomain.StatusFailed, summary.Status)
	assert.Equal(t, "no show blocks found", summary.ErrorMessage)
	assert.Empty(t, summary.Shows)

	id, err := snowflake.ParseString(summary.ReportID)
	require.NoError(t, err)
	detail, err := p.svc.Get(ctx, testOrgID, id)
	require.NoError(t, err)
	assert.Equal(t, reportdomain.StatusFailed, detail.Status)
	require.NotNil(t, detail.ErrorMessage)
	assert.Equal(t, "no show blocks found", *detail.ErrorMessage)
	assert.Empty(t, detail.Entries)

	require.Len(t, p.publisher.events, 1)
	assert.Equal(t, "failed", p.publisher.events[0].Status)
}

func TestProcessCompletesWithDeliveryFailures(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, "", nil)

	summary, err := p.svc.Process(ctx, reportdomain.ProcessRequest{OrgID: testOrgID, Body: nightlyReport})
	require.NoError(t, err)

	assert.Equal(t, reportdomain.StatusCompleted, summary.Status)
	assert.Zero(t, summary.NotificationsSent)
	assert.Equal(t, 1, summary.DeliveryFailures)

	id, _ := snowflake.ParseString(summary.ReportID)
	detail, err := p.svc.Get(ctx, testOrgID, id)
	require.NoError(t, err)
	entry := detail.Entries[0]
	assert.Equal(t, reportdomain.DeliveryFailed, entry.DeliveryStatus)
	assert.Zero(t, entry.DeliveryAttempts)
	require.NotNil(t, entry.DeliveryError)
	assert.Equal(t, "webhook_endpoint_not_configured", *entry.DeliveryError)
	assert.Equal(t, 1, detail.DeliveryFailures)
}

func TestProcessRetriesFailingReceiver(t *testing.T) {
	ctx := context.Background()
	srv, calls := newReceiver(t, http.StatusServiceUnavailable)
	p := newPipeline(t, srv.URL, nil)

	summary, err := p.svc.Process(ctx, reportdomain.ProcessRequest{OrgID: testOrgID, Body: nightlyReport})
	require.NoError(t, err)

	assert.Equal(t, reportdomain.StatusCompleted, summary.Status)
	assert.Equal(t, 1, summary.DeliveryFailures)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, reportdomain.DeliveryFailed, summary.Shows[0].DeliveryStatus)
}

func TestProcessRejectsConcurrentDuplicate(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, "", nil)
	p.svc.locker = &lockerStub{free: false}

	_, err := p.svc.Process(ctx, reportdomain.ProcessRequest{OrgID: testOrgID, Body: nightlyReport})
	assert.ErrorIs(t, err, reportdomain.ErrReportInProgress)

	list, err := p.svc.List(ctx, testOrgID, reportdomain.ListRequest{})
	require.NoError(t, err)
	assert.Empty(t, list.Reports)
}

func TestProcessReleasesLock(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, "", nil)
	locker := &lockerStub{free: true}
	p.svc.locker = locker

	_, err := p.svc.Process(ctx, reportdomain.ProcessRequest{OrgID: testOrgID, Body: nightlyReport})
	require.NoError(t, err)

	require.Len(t, locker.released, 1)
	assert.Contains(t, locker.released[0], "tixsync:report:42:")
}

func TestProcessCancelledRunStaysProcessing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := newPipeline(t, "", cancellingMatcher{cancel: cancel})

	_, err := p.svc.Process(ctx, reportdomain.ProcessRequest{OrgID: testOrgID, Body: nightlyReport})
	assert.ErrorIs(t, err, context.Canceled)

	list, err := p.svc.List(context.Background(), testOrgID, reportdomain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, list.Reports, 1)
	assert.Equal(t, reportdomain.StatusProcessing, list.Reports[0].Status)
	assert.Empty(t, p.publisher.events)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, "", nil)

	first, err := p.svc.Process(ctx, reportdomain.ProcessRequest{OrgID: testOrgID, Body: nightlyReport})
	require.NoError(t, err)
	second, err := p.svc.Process(ctx, reportdomain.ProcessRequest{OrgID: testOrgID, Body: "tom"})
	require.NoError(t, err)

	page, err := p.svc.List(ctx, testOrgID, reportdomain.ListRequest{PageSize: 1})
	require.NoError(t, err)
	require.Len(t, page.Reports, 1)
	assert.Equal(t, second.ReportID, page.Reports[0].ID.String())
	assert.Empty(t, page.Reports[0].RawBody)
	assert.True(t, page.HasMore)

	next, err := p.svc.List(ctx, testOrgID, reportdomain.ListRequest{PageSize: 1, PageToken: page.NextPageToken})
	require.NoError(t, err)
	require.Len(t, next.Reports, 1)
	assert.Equal(t, first.ReportID, next.Reports[0].ID.String())
	assert.False(t, next.HasMore)

	failed, err := p.svc.List(ctx, testOrgID, reportdomain.ListRequest{Status: reportdomain.StatusFailed})
	require.NoError(t, err)
	require.Len(t, failed.Reports, 1)
	assert.Equal(t, second.ReportID, failed.Reports[0].ID.String())

	_, err = p.svc.List(ctx, testOrgID, reportdomain.ListRequest{Status: "bogus"})
	assert.ErrorIs(t, err, reportdomain.ErrInvalidStatus)
}

func TestGetValidation(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, "", nil)

	_, err := p.svc.Get(ctx, 0, 1)
	assert.ErrorIs(t, err, reportdomain.ErrInvalidOrganization)
	_, err = p.svc.Get(ctx, testOrgID, 0)
	assert.ErrorIs(t, err, reportdomain.ErrInvalidID)
	_, err = p.svc.Get(ctx, testOrgID, 12345)
	assert.ErrorIs(t, err, reportdomain.ErrNotFound)

	_, err = p.svc.Process(ctx, reportdomain.ProcessRequest{Body: nightlyReport})
	assert.ErrorIs(t, err, reportdomain.ErrInvalidOrganization)
}

func TestShiftDate(t *testing.T) {
	assert.Equal(t, "2025-03-05", shiftDate("2025-03-12", -7))
	assert.Equal(t, "2025-01-03", shiftDate("2024-12-27", 7))
	assert.Equal(t, "garbage", shiftDate("garbage", 7))
}
