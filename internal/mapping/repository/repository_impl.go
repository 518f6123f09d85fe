package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	mappingdomain "github.com/smallbiznis/tixsync/internal/mapping/domain"
	"gorm.io/gorm"
)

const mappingColumns = `id, org_id, identity_hash, canonical_show_id, method, confidence, confirmed,
	reasoning, clean_name, show_date, show_time, matched_at, last_seen_at, created_at, updated_at`

type repo struct{}

func Provide() mappingdomain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, m *mappingdomain.ShowMapping, lockConfirmed bool) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO show_mappings (`+mappingColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (org_id, identity_hash) DO UPDATE SET
		   canonical_show_id = CASE WHEN show_mappings.confirmed AND ? THEN show_mappings.canonical_show_id ELSE excluded.canonical_show_id END,
		   method = CASE WHEN show_mappings.confirmed AND ? THEN show_mappings.method ELSE excluded.method END,
		   confidence = CASE WHEN show_mappings.confirmed AND ? THEN show_mappings.confidence ELSE excluded.confidence END,
		   reasoning = CASE WHEN show_mappings.confirmed AND ? THEN show_mappings.reasoning ELSE excluded.reasoning END,
		   matched_at = CASE WHEN show_mappings.confirmed AND ? THEN show_mappings.matched_at ELSE excluded.matched_at END,
		   confirmed = CASE WHEN show_mappings.confirmed AND ? THEN show_mappings.confirmed ELSE excluded.confirmed END,
		   clean_name = excluded.clean_name,
		   show_date = excluded.show_date,
		   show_time = excluded.show_time,
		   last_seen_at = excluded.last_seen_at,
		   updated_at = excluded.updated_at`,
		m.ID,
		m.OrgID,
		m.IdentityHash,
		m.CanonicalShowID,
		m.Method,
		m.Confidence,
		m.Confirmed,
		m.Reasoning,
		m.CleanName,
		m.ShowDate,
		m.ShowTime,
		m.MatchedAt,
		m.LastSeenAt,
		m.CreatedAt,
		m.UpdatedAt,
		lockConfirmed,
		lockConfirmed,
		lockConfirmed,
		lockConfirmed,
		lockConfirmed,
		lockConfirmed,
	).Error
}

func (r *repo) FindByHash(ctx context.Context, db *gorm.DB, orgID snowflake.ID, hash string) (*mappingdomain.ShowMapping, error) {
	var mapping mappingdomain.ShowMapping
	err := db.WithContext(ctx).Raw(
		`SELECT `+mappingColumns+` FROM show_mappings WHERE org_id = ? AND identity_hash = ?`,
		orgID,
		hash,
	).Scan(&mapping).Error
	if err != nil {
		return nil, err
	}
	if mapping.ID == 0 {
		return nil, nil
	}
	return &mapping, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*mappingdomain.ShowMapping, error) {
	var mapping mappingdomain.ShowMapping
	err := db.WithContext(ctx).Raw(
		`SELECT `+mappingColumns+` FROM show_mappings WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&mapping).Error
	if err != nil {
		return nil, err
	}
	if mapping.ID == 0 {
		return nil, nil
	}
	return &mapping, nil
}

func (r *repo) TouchLastSeen(ctx context.Context, db *gorm.DB, id snowflake.ID, seenAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE show_mappings SET last_seen_at = ?, updated_at = ? WHERE id = ?`,
		seenAt,
		seenAt,
		id,
	).Error
}

func (r *repo) Confirm(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, canonicalShowID string, at time.Time) error {
	if canonicalShowID == "" {
		return db.WithContext(ctx).Exec(
			`UPDATE show_mappings SET confirmed = ?, updated_at = ? WHERE org_id = ? AND id = ?`,
			true,
			at,
			orgID,
			id,
		).Error
	}
	return db.WithContext(ctx).Exec(
		`UPDATE show_mappings
		 SET confirmed = ?, canonical_show_id = ?, matched_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		true,
		canonicalShowID,
		at,
		at,
		orgID,
		id,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM show_mappings WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter mappingdomain.ListFilter, limit int, afterID snowflake.ID) ([]mappingdomain.ShowMapping, error) {
	where := []string{"org_id = ?"}
	args := []any{orgID}
	if filter.Confirmed != nil {
		where = append(where, "confirmed = ?")
		args = append(args, *filter.Confirmed)
	}
	if filter.Method != "" {
		where = append(where, "method = ?")
		args = append(args, filter.Method)
	}
	if afterID != 0 {
		where = append(where, "id > ?")
		args = append(args, afterID)
	}
	args = append(args, limit)

	var mappings []mappingdomain.ShowMapping
	err := db.WithContext(ctx).Raw(
		`SELECT `+mappingColumns+` FROM show_mappings
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY id ASC
		 LIMIT ?`,
		args...,
	).Scan(&mappings).Error
	if err != nil {
		return nil, err
	}
	return mappings, nil
}
