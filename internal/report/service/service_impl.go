package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tixsync/internal/clock"
	"github.com/smallbiznis/tixsync/internal/config"
	"github.com/smallbiznis/tixsync/internal/events"
	"github.com/smallbiznis/tixsync/internal/identity"
	matchingdomain "github.com/smallbiznis/tixsync/internal/matching/domain"
	"github.com/smallbiznis/tixsync/internal/observability/metrics"
	"github.com/smallbiznis/tixsync/internal/ratelimit"
	reportdomain "github.com/smallbiznis/tixsync/internal/report/domain"
	"github.com/smallbiznis/tixsync/internal/report/parser"
	showdomain "github.com/smallbiznis/tixsync/internal/showdirectory/domain"
	webhookdomain "github.com/smallbiznis/tixsync/internal/webhook/domain"
	"github.com/smallbiznis/tixsync/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CandidateWindowDays widens the report's date range when loading candidates.
const CandidateWindowDays = 7

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	Repo       reportdomain.Repository
	Matcher    matchingdomain.Matcher
	Directory  showdomain.Directory
	Dispatcher webhookdomain.Dispatcher
	Publisher  events.Publisher         `optional:"true"`
	Locker     *ratelimit.Locker        `optional:"true"`
	Metrics    *metrics.PipelineMetrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       reportdomain.Repository
	matcher    matchingdomain.Matcher
	directory  showdomain.Directory
	dispatcher webhookdomain.Dispatcher
	publisher  events.Publisher
	locker     reportdomain.Locker
	metrics    *metrics.PipelineMetrics

	concurrency int
	webhookMode string
	lockTTL     time.Duration
}

func New(p Params) reportdomain.Service {
	svc := &Service{
		db:          p.DB,
		log:         p.Log.Named("report.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		matcher:     p.Matcher,
		directory:   p.Directory,
		dispatcher:  p.Dispatcher,
		publisher:   p.Publisher,
		metrics:     p.Metrics,
		concurrency: max(p.Cfg.Matching.Concurrency, 1),
		webhookMode: p.Cfg.Webhook.Mode,
		lockTTL:     p.Cfg.ReportLockTTL,
	}
	if svc.publisher == nil {
		svc.publisher = events.Noop{}
	}
	if p.Locker != nil {
		svc.locker = p.Locker
	}
	if svc.lockTTL <= 0 {
		svc.lockTTL = 5 * time.Minute
	}
	return svc
}

// Process runs one report through parse, match, persist and notify. A run
// that was recorded is returned even when it failed; an error means the run
// could not be carried to a final state.
func (s *Service) Process(ctx context.Context, req reportdomain.ProcessRequest) (*reportdomain.ProcessSummary, error) {
	if req.OrgID == 0 {
		return nil, reportdomain.ErrInvalidOrganization
	}

	receivedAt := s.clock.Now().UTC()
	fingerprint := identity.Fingerprint(req.Body)

	release, err := s.acquire(ctx, req.OrgID, fingerprint)
	if err != nil {
		return nil, err
	}
	defer release()

	parsed := parser.Parse(req.Body)

	run := &reportdomain.ReportRun{
		ID:                s.genID.Generate(),
		OrgID:             req.OrgID,
		RawBody:           req.Body,
		ReportFingerprint: fingerprint,
		Status:            reportdomain.StatusProcessing,
		ParsedShowCount:   len(parsed.Shows),
		ParseErrors:       encodeJSON(parsed.ParseErrors),
		ReceivedAt:        receivedAt,
		CreatedAt:         receivedAt,
		UpdatedAt:         receivedAt,
	}
	if parsed.Summary != nil {
		run.Summary = encodeJSON(parsed.Summary)
	}
	if err := s.repo.InsertRun(ctx, s.db, run); err != nil {
		return nil, fmt.Errorf("insert report run: %w", err)
	}

	log := s.log.With(
		zap.String("report_id", run.ID.String()),
		zap.String("org_id", req.OrgID.String()),
	)
	s.metrics.AddParseErrors(len(parsed.ParseErrors))
	log.Info("report parsed",
		zap.Int("shows", len(parsed.Shows)),
		zap.Int("parse_errors", len(parsed.ParseErrors)),
		zap.Bool("summary", parsed.Summary != nil),
	)

	if !parsed.Usable() {
		message := strings.Join(parsed.ParseErrors, "; ")
		run.ErrorMessage = &message
		if err := s.finalize(ctx, run, reportdomain.StatusFailed); err != nil {
			return nil, err
		}
		log.Warn("report unusable", zap.String("error", message))
		return buildSummary(run, parsed, nil), nil
	}

	candidates := s.loadCandidates(ctx, req.OrgID, parsed)
	results := s.matchAll(ctx, req.OrgID, parsed.Shows, candidates)
	if err := ctx.Err(); err != nil {
		log.Warn("report run interrupted during matching", zap.Error(err))
		return nil, err
	}

	entries := s.buildEntries(run, parsed.Shows, results)
	for i := range results {
		if results[i].Matched {
			run.MatchedCount++
			s.metrics.IncMatched(results[i].Method)
			if results[i].IsNewMatch {
				run.NewMappingCount++
			}
			continue
		}
		run.UnmatchedCount++
		s.metrics.IncUnmatched()
	}

	if err := s.repo.InsertEntries(ctx, s.db, entries); err != nil {
		return nil, fmt.Errorf("insert report entries: %w", err)
	}
	run.UpdatedAt = s.clock.Now().UTC()
	if err := s.repo.UpdateRun(ctx, s.db, run); err != nil {
		return nil, fmt.Errorf("update report counts: %w", err)
	}

	s.notify(ctx, run, parsed.Shows, results, entries)
	if err := ctx.Err(); err != nil {
		log.Warn("report run interrupted during delivery", zap.Error(err))
		return nil, err
	}

	if err := s.finalize(ctx, run, reportdomain.StatusCompleted); err != nil {
		return nil, err
	}
	log.Info("report processed",
		zap.Int("matched", run.MatchedCount),
		zap.Int("unmatched", run.UnmatchedCount),
		zap.Int("new_mappings", run.NewMappingCount),
		zap.Int("notifications_sent", run.NotificationsSent),
		zap.Int("delivery_failures", run.DeliveryFailures),
	)
	return buildSummary(run, parsed, entries), nil
}

// acquire takes the per-report lock. Redis failures only cost the duplicate
// guard; they never block processing.
func (s *Service) acquire(ctx context.Context, orgID snowflake.ID, fingerprint string) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}

	key := ratelimit.ReportLockKey(orgID.String(), fingerprint)
	token, ok, err := s.locker.TryLock(ctx, key, s.lockTTL)
	if err != nil {
		s.log.Warn("report lock unavailable", zap.String("key", key), zap.Error(err))
		return noop, nil
	}
	if !ok {
		return nil, reportdomain.ErrReportInProgress
	}
	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("report lock release failed", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

func (s *Service) loadCandidates(ctx context.Context, orgID snowflake.ID, parsed reportdomain.ParseResult) []showdomain.CanonicalShow {
	from, to, ok := parsed.DateRange()
	if !ok {
		return nil
	}
	from, to = shiftDate(from, -CandidateWindowDays), shiftDate(to, CandidateWindowDays)

	candidates, err := s.directory.ListByDateRange(ctx, orgID, from, to)
	if err != nil {
		s.log.Warn("candidate lookup failed",
			zap.String("org_id", orgID.String()),
			zap.String("from", from),
			zap.String("to", to),
			zap.Error(err),
		)
		return nil
	}
	return candidates
}

// matchAll resolves every show independently with bounded concurrency.
func (s *Service) matchAll(ctx context.Context, orgID snowflake.ID, shows []reportdomain.ParsedShow, candidates []showdomain.CanonicalShow) []matchingdomain.MatchResult {
	results := make([]matchingdomain.MatchResult, len(shows))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := range shows {
		g.Go(func() error {
			results[i] = s.matcher.Match(ctx, orgID, shows[i], candidates)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Service) buildEntries(run *reportdomain.ReportRun, shows []reportdomain.ParsedShow, results []matchingdomain.MatchResult) []reportdomain.ReportEntry {
	now := s.clock.Now().UTC()
	entries := make([]reportdomain.ReportEntry, len(shows))
	for i, show := range shows {
		result := results[i]
		entry := reportdomain.ReportEntry{
			ID:             s.genID.Generate(),
			OrgID:          run.OrgID,
			ReportRunID:    run.ID,
			IdentityHash:   show.Hash,
			RawName:        show.RawName,
			CleanName:      show.CleanName,
			ShowDate:       show.Date,
			ShowTime:       show.Time,
			TicketsSold:    show.TicketsSold,
			FreeTickets:    show.FreeTickets,
			Available:      show.Available,
			Revenue:        show.Revenue,
			Matched:        result.Matched,
			Confidence:     result.Confidence,
			IsNewMatch:     result.IsNewMatch,
			Reasoning:      result.Reasoning,
			DeliveryStatus: reportdomain.DeliverySkipped,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if result.Matched && result.CanonicalShow != nil {
			method := result.Method
			showID := result.CanonicalShow.ID
			entry.Method = &method
			entry.CanonicalShowID = &showID
			entry.DeliveryStatus = reportdomain.DeliveryPending
		}
		entries[i] = entry
	}
	return entries
}

// notify dispatches webhooks for matched entries and records each outcome.
func (s *Service) notify(ctx context.Context, run *reportdomain.ReportRun, shows []reportdomain.ParsedShow, results []matchingdomain.MatchResult, entries []reportdomain.ReportEntry) {
	items := make([]webhookdomain.Item, 0, run.MatchedCount)
	for i := range entries {
		if entries[i].DeliveryStatus != reportdomain.DeliveryPending {
			continue
		}
		items = append(items, webhookdomain.Item{
			EntryID: entries[i].ID,
			Show:    shows[i],
			Result:  results[i],
		})
	}
	if len(items) == 0 {
		return
	}

	ref := webhookdomain.ReportRef{ID: run.ID, OrgID: run.OrgID}
	deliveries := s.dispatcher.Dispatch(ctx, ref, items, s.webhookMode)

	byEntry := make(map[string]int, len(entries))
	for i := range entries {
		byEntry[entries[i].ID.String()] = i
	}

	now := s.clock.Now().UTC()
	for _, d := range deliveries {
		if d.Success {
			run.NotificationsSent++
		} else {
			run.DeliveryFailures++
		}

		i, ok := byEntry[d.EntryID]
		if !ok {
			continue
		}
		entry := &entries[i]
		entry.DeliveryStatus = reportdomain.DeliveryFailed
		if d.Success {
			entry.DeliveryStatus = reportdomain.DeliveryDelivered
		}
		entry.DeliveryAttempts = d.Attempts
		entry.DeliveryID = optional(d.DeliveryID)
		entry.DeliveryError = optional(d.Error)
		entry.UpdatedAt = now

		update := reportdomain.EntryDelivery{
			EntryID:    entry.ID,
			Status:     entry.DeliveryStatus,
			DeliveryID: entry.DeliveryID,
			Attempts:   entry.DeliveryAttempts,
			Error:      entry.DeliveryError,
		}
		if err := s.repo.UpdateEntryDelivery(context.WithoutCancel(ctx), s.db, update, now); err != nil {
			s.log.Warn("record delivery outcome failed",
				zap.String("report_id", run.ID.String()),
				zap.String("entry_id", d.EntryID),
				zap.Error(err),
			)
		}
	}
}

// finalize is the only place a run leaves the processing state.
func (s *Service) finalize(ctx context.Context, run *reportdomain.ReportRun, status reportdomain.Status) error {
	now := s.clock.Now().UTC()
	run.Status = status
	run.ProcessedAt = &now
	run.UpdatedAt = now
	if err := s.repo.UpdateRun(ctx, s.db, run); err != nil {
		return fmt.Errorf("finalize report run: %w", err)
	}

	s.metrics.ObserveReport(string(status), now.Sub(run.ReceivedAt))

	event := events.ReportProcessed{
		ReportID:          run.ID.String(),
		OrgID:             run.OrgID.String(),
		Status:            string(status),
		Parsed:            run.ParsedShowCount,
		Matched:           run.MatchedCount,
		Unmatched:         run.UnmatchedCount,
		NewMappings:       run.NewMappingCount,
		NotificationsSent: run.NotificationsSent,
		DeliveryFailures:  run.DeliveryFailures,
		ProcessedAt:       now,
	}
	if err := s.publisher.PublishReportProcessed(context.WithoutCancel(ctx), event); err != nil {
		s.log.Warn("publish report event failed", zap.String("report_id", event.ReportID), zap.Error(err))
	}
	return nil
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID, req reportdomain.ListRequest) (*reportdomain.ListResponse, error) {
	if orgID == 0 {
		return nil, reportdomain.ErrInvalidOrganization
	}
	switch req.Status {
	case "", reportdomain.StatusPending, reportdomain.StatusProcessing, reportdomain.StatusCompleted, reportdomain.StatusFailed:
	default:
		return nil, reportdomain.ErrInvalidStatus
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	limit := page.Limit()

	var beforeID snowflake.ID
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return nil, err
		}
		beforeID, err = snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
	}

	runs, err := s.repo.ListRuns(ctx, s.db, orgID, req.Status, limit+1, beforeID)
	if err != nil {
		return nil, err
	}
	runs, info := pagination.Trim(runs, limit, func(r reportdomain.ReportRun) string {
		return r.ID.String()
	})
	if runs == nil {
		runs = []reportdomain.ReportRun{}
	}
	return &reportdomain.ListResponse{
		Reports:       runs,
		NextPageToken: info.NextPageToken,
		HasMore:       info.HasMore,
	}, nil
}

func (s *Service) Get(ctx context.Context, orgID, id snowflake.ID) (*reportdomain.ReportDetail, error) {
	if orgID == 0 {
		return nil, reportdomain.ErrInvalidOrganization
	}
	if id == 0 {
		return nil, reportdomain.ErrInvalidID
	}

	run, err := s.repo.FindRunByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, reportdomain.ErrNotFound
	}

	entries, err := s.repo.ListEntries(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []reportdomain.ReportEntry{}
	}
	return &reportdomain.ReportDetail{ReportRun: *run, Entries: entries}, nil
}

func buildSummary(run *reportdomain.ReportRun, parsed reportdomain.ParseResult, entries []reportdomain.ReportEntry) *reportdomain.ProcessSummary {
	summary := &reportdomain.ProcessSummary{
		ReportID:          run.ID.String(),
		Status:            run.Status,
		ParsedShowCount:   run.ParsedShowCount,
		MatchedCount:      run.MatchedCount,
		UnmatchedCount:    run.UnmatchedCount,
		NewMappingCount:   run.NewMappingCount,
		NotificationsSent: run.NotificationsSent,
		DeliveryFailures:  run.DeliveryFailures,
		ParseErrors:       parsed.ParseErrors,
		Summary:           parsed.Summary,
		Shows:             make([]reportdomain.ShowOutcome, 0, len(entries)),
	}
	if run.ErrorMessage != nil {
		summary.ErrorMessage = *run.ErrorMessage
	}
	for _, e := range entries {
		outcome := reportdomain.ShowOutcome{
			EntryID:        e.ID.String(),
			IdentityHash:   e.IdentityHash,
			CleanName:      e.CleanName,
			Date:           e.ShowDate,
			Time:           e.ShowTime,
			Matched:        e.Matched,
			Confidence:     e.Confidence,
			IsNewMatch:     e.IsNewMatch,
			DeliveryStatus: e.DeliveryStatus,
		}
		if e.Method != nil {
			outcome.Method = *e.Method
		}
		if e.CanonicalShowID != nil {
			outcome.CanonicalShowID = *e.CanonicalShowID
		}
		summary.Shows = append(summary.Shows, outcome)
	}
	return summary
}

func shiftDate(date string, days int) string {
	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return date
	}
	return d.AddDate(0, 0, days).Format(time.DateOnly)
}

func encodeJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
