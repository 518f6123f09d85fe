package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Upsert is a single conflict-resolving write on (org_id, identity_hash).
	// When lockConfirmed is set, a confirmed row keeps its canonical show and
	// match metadata and only last_seen_at moves.
	Upsert(ctx context.Context, db *gorm.DB, m *ShowMapping, lockConfirmed bool) error
	FindByHash(ctx context.Context, db *gorm.DB, orgID snowflake.ID, hash string) (*ShowMapping, error)
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*ShowMapping, error)
	TouchLastSeen(ctx context.Context, db *gorm.DB, id snowflake.ID, seenAt time.Time) error
	Confirm(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, canonicalShowID string, at time.Time) error
	Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListFilter, limit int, afterID snowflake.ID) ([]ShowMapping, error)
}
