package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tixsync/internal/clock"
	showdomain "github.com/smallbiznis/tixsync/internal/showdirectory/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  showdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  showdomain.Repository
}

func New(p Params) showdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("showdirectory.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) ListByDateRange(ctx context.Context, orgID snowflake.ID, from, to string) ([]showdomain.CanonicalShow, error) {
	if orgID == 0 {
		return nil, showdomain.ErrInvalidOrganization
	}
	if from > to {
		from, to = to, from
	}
	return s.repo.ListByDateRange(ctx, s.db, orgID, from, to)
}

func (s *Service) FindByID(ctx context.Context, orgID snowflake.ID, id string) (*showdomain.CanonicalShow, error) {
	if orgID == 0 {
		return nil, showdomain.ErrInvalidOrganization
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, showdomain.ErrInvalidID
	}
	return s.repo.FindByID(ctx, s.db, orgID, id)
}

func (s *Service) Upsert(ctx context.Context, orgID snowflake.ID, req showdomain.UpsertRequest) (*showdomain.CanonicalShow, error) {
	if orgID == 0 {
		return nil, showdomain.ErrInvalidOrganization
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		return nil, showdomain.ErrInvalidID
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, showdomain.ErrInvalidName
	}
	date := strings.TrimSpace(req.Date)
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return nil, showdomain.ErrInvalidDate
	}
	var showTime *string
	if req.Time != nil && strings.TrimSpace(*req.Time) != "" {
		value := strings.TrimSpace(*req.Time)
		if _, err := time.Parse("15:04", value); err != nil {
			return nil, showdomain.ErrInvalidTime
		}
		showTime = &value
	}

	now := s.clock.Now().UTC()
	show := &showdomain.CanonicalShow{
		ID:              id,
		OrgID:           orgID,
		Name:            name,
		Date:            date,
		Time:            showTime,
		Venue:           req.Venue,
		Capacity:        req.Capacity,
		ParentStopID:    req.ParentStopID,
		ParentProjectID: req.ParentProjectID,
		URL:             strings.TrimSpace(req.URL),
		AppShowID:       req.AppShowID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Upsert(ctx, s.db, show); err != nil {
		return nil, err
	}

	s.log.Debug("canonical show upserted", zap.String("show_id", id), zap.String("org_id", orgID.String()))
	return s.repo.FindByID(ctx, s.db, orgID, id)
}
