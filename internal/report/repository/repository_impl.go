package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	reportdomain "github.com/smallbiznis/tixsync/internal/report/domain"
	"gorm.io/gorm"
)

const runColumns = `id, org_id, raw_body, report_fingerprint, status, parsed_show_count, matched_count,
	unmatched_count, new_mapping_count, notifications_sent, delivery_failures, parse_errors, summary,
	error_message, received_at, processed_at, created_at, updated_at`

// Listing skips the raw body; it is only loaded for a single run.
const runListColumns = `id, org_id, report_fingerprint, status, parsed_show_count, matched_count,
	unmatched_count, new_mapping_count, notifications_sent, delivery_failures, parse_errors, summary,
	error_message, received_at, processed_at, created_at, updated_at`

const entryColumns = `id, org_id, report_run_id, identity_hash, raw_name, clean_name, show_date, show_time,
	tickets_sold, free_tickets, available, revenue, matched, method, confidence, canonical_show_id,
	is_new_match, reasoning, delivery_id, delivery_status, delivery_attempts, delivery_error,
	created_at, updated_at`

type repo struct{}

func Provide() reportdomain.Repository {
	return &repo{}
}

func (r *repo) InsertRun(ctx context.Context, db *gorm.DB, run *reportdomain.ReportRun) error {
	return db.WithContext(ctx).Create(run).Error
}

func (r *repo) UpdateRun(ctx context.Context, db *gorm.DB, run *reportdomain.ReportRun) error {
	return db.WithContext(ctx).Exec(
		`UPDATE report_runs SET
		   status = ?,
		   parsed_show_count = ?,
		   matched_count = ?,
		   unmatched_count = ?,
		   new_mapping_count = ?,
		   notifications_sent = ?,
		   delivery_failures = ?,
		   parse_errors = ?,
		   summary = ?,
		   error_message = ?,
		   processed_at = ?,
		   updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		run.Status,
		run.ParsedShowCount,
		run.MatchedCount,
		run.UnmatchedCount,
		run.NewMappingCount,
		run.NotificationsSent,
		run.DeliveryFailures,
		run.ParseErrors,
		run.Summary,
		run.ErrorMessage,
		run.ProcessedAt,
		run.UpdatedAt,
		run.OrgID,
		run.ID,
	).Error
}

func (r *repo) FailStaleRuns(ctx context.Context, db *gorm.DB, cutoff time.Time, message string, now time.Time, limit int) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE report_runs SET
		   status = ?,
		   error_message = ?,
		   processed_at = ?,
		   updated_at = ?
		 WHERE id IN (
		   SELECT id FROM report_runs
		   WHERE status = ? AND received_at <= ?
		   ORDER BY id
		   LIMIT ?
		 )`,
		reportdomain.StatusFailed,
		message,
		now,
		now,
		reportdomain.StatusProcessing,
		cutoff,
		limit,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) FindRunByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*reportdomain.ReportRun, error) {
	var run reportdomain.ReportRun
	err := db.WithContext(ctx).Raw(
		`SELECT `+runColumns+` FROM report_runs WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&run).Error
	if err != nil {
		return nil, err
	}
	if run.ID == 0 {
		return nil, nil
	}
	return &run, nil
}

func (r *repo) ListRuns(ctx context.Context, db *gorm.DB, orgID snowflake.ID, status reportdomain.Status, limit int, beforeID snowflake.ID) ([]reportdomain.ReportRun, error) {
	query := `SELECT ` + runListColumns + ` FROM report_runs WHERE org_id = ?`
	args := []any{orgID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	if beforeID != 0 {
		query += ` AND id < ?`
		args = append(args, beforeID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	var runs []reportdomain.ReportRun
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *repo) InsertEntries(ctx context.Context, db *gorm.DB, entries []reportdomain.ReportEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(&entries, 100).Error
}

func (r *repo) UpdateEntryDelivery(ctx context.Context, db *gorm.DB, d reportdomain.EntryDelivery, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE report_entries SET
		   delivery_status = ?,
		   delivery_id = ?,
		   delivery_attempts = ?,
		   delivery_error = ?,
		   updated_at = ?
		 WHERE id = ?`,
		d.Status,
		d.DeliveryID,
		d.Attempts,
		d.Error,
		now,
		d.EntryID,
	).Error
}

func (r *repo) ListEntries(ctx context.Context, db *gorm.DB, orgID, runID snowflake.ID) ([]reportdomain.ReportEntry, error) {
	var entries []reportdomain.ReportEntry
	err := db.WithContext(ctx).Raw(
		`SELECT `+entryColumns+` FROM report_entries
		 WHERE org_id = ? AND report_run_id = ?
		 ORDER BY id ASC`,
		orgID,
		runID,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
