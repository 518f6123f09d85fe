package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	showdomain "github.com/smallbiznis/tixsync/internal/showdirectory/domain"
	"gorm.io/gorm"
)

const showColumns = `id, org_id, name, show_date, show_time, venue, capacity, parent_stop_id,
	parent_project_id, url, app_show_id, created_at, updated_at`

type repo struct{}

func Provide() showdomain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, s *showdomain.CanonicalShow) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO canonical_shows (`+showColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (org_id, id) DO UPDATE SET
		   name = excluded.name,
		   show_date = excluded.show_date,
		   show_time = excluded.show_time,
		   venue = excluded.venue,
		   capacity = excluded.capacity,
		   parent_stop_id = excluded.parent_stop_id,
		   parent_project_id = excluded.parent_project_id,
		   url = excluded.url,
		   app_show_id = excluded.app_show_id,
		   updated_at = excluded.updated_at`,
		s.ID,
		s.OrgID,
		s.Name,
		s.Date,
		s.Time,
		s.Venue,
		s.Capacity,
		s.ParentStopID,
		s.ParentProjectID,
		s.URL,
		s.AppShowID,
		s.CreatedAt,
		s.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID snowflake.ID, id string) (*showdomain.CanonicalShow, error) {
	var show showdomain.CanonicalShow
	err := db.WithContext(ctx).Raw(
		`SELECT `+showColumns+` FROM canonical_shows WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&show).Error
	if err != nil {
		return nil, err
	}
	if show.ID == "" {
		return nil, nil
	}
	return &show, nil
}

func (r *repo) ListByDateRange(ctx context.Context, db *gorm.DB, orgID snowflake.ID, from, to string) ([]showdomain.CanonicalShow, error) {
	var shows []showdomain.CanonicalShow
	err := db.WithContext(ctx).Raw(
		`SELECT `+showColumns+` FROM canonical_shows
		 WHERE org_id = ? AND show_date >= ? AND show_date <= ?
		 ORDER BY show_date ASC, show_time ASC, id ASC`,
		orgID,
		from,
		to,
	).Scan(&shows).Error
	if err != nil {
		return nil, err
	}
	return shows, nil
}
