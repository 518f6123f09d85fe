package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertRun(ctx context.Context, db *gorm.DB, run *ReportRun) error
	UpdateRun(ctx context.Context, db *gorm.DB, run *ReportRun) error
	FindRunByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*ReportRun, error)
	ListRuns(ctx context.Context, db *gorm.DB, orgID snowflake.ID, status Status, limit int, beforeID snowflake.ID) ([]ReportRun, error)
	// FailStaleRuns fails up to limit runs still processing that were received at or before cutoff.
	FailStaleRuns(ctx context.Context, db *gorm.DB, cutoff time.Time, message string, now time.Time, limit int) (int64, error)

	InsertEntries(ctx context.Context, db *gorm.DB, entries []ReportEntry) error
	UpdateEntryDelivery(ctx context.Context, db *gorm.DB, delivery EntryDelivery, now time.Time) error
	ListEntries(ctx context.Context, db *gorm.DB, orgID, runID snowflake.ID) ([]ReportEntry, error)
}
