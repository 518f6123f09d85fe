package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, show *CanonicalShow) error
	FindByID(ctx context.Context, db *gorm.DB, orgID snowflake.ID, id string) (*CanonicalShow, error)
	ListByDateRange(ctx context.Context, db *gorm.DB, orgID snowflake.ID, from, to string) ([]CanonicalShow, error)
}
