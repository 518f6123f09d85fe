package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tixsync/internal/clock"
	mappingdomain "github.com/smallbiznis/tixsync/internal/mapping/domain"
	"github.com/smallbiznis/tixsync/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  mappingdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  mappingdomain.Repository
}

func New(p Params) mappingdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("mapping.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Lookup(ctx context.Context, orgID snowflake.ID, hash string) (*mappingdomain.ShowMapping, error) {
	if orgID == 0 {
		return nil, mappingdomain.ErrInvalidOrganization
	}
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, mappingdomain.ErrInvalidHash
	}
	return s.repo.FindByHash(ctx, s.db, orgID, hash)
}

func (s *Service) Upsert(ctx context.Context, req mappingdomain.UpsertRequest) (*mappingdomain.ShowMapping, error) {
	if req.OrgID == 0 {
		return nil, mappingdomain.ErrInvalidOrganization
	}
	hash := strings.TrimSpace(req.IdentityHash)
	if hash == "" {
		return nil, mappingdomain.ErrInvalidHash
	}
	canonicalID := strings.TrimSpace(req.CanonicalShowID)
	if canonicalID == "" {
		return nil, mappingdomain.ErrInvalidCanonicalID
	}
	switch req.Method {
	case mappingdomain.MethodExact, mappingdomain.MethodFuzzy, mappingdomain.MethodAI:
	default:
		return nil, mappingdomain.ErrInvalidMethod
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		return nil, mappingdomain.ErrInvalidConfidence
	}

	now := s.clock.Now().UTC()
	var showDate *string
	if date := strings.TrimSpace(req.ShowDate); date != "" {
		showDate = &date
	}

	mapping := &mappingdomain.ShowMapping{
		ID:              s.genID.Generate(),
		OrgID:           req.OrgID,
		IdentityHash:    hash,
		CanonicalShowID: canonicalID,
		Method:          req.Method,
		Confidence:      req.Confidence,
		Confirmed:       req.Confirmed,
		Reasoning:       req.Reasoning,
		CleanName:       req.CleanName,
		ShowDate:        showDate,
		ShowTime:        req.ShowTime,
		MatchedAt:       now,
		LastSeenAt:      now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Upsert(ctx, s.db, mapping, !req.AllowRepoint); err != nil {
		return nil, fmt.Errorf("upsert show mapping: %w", err)
	}

	stored, err := s.repo.FindByHash(ctx, s.db, req.OrgID, hash)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, mappingdomain.ErrNotFound
	}

	if stored.CanonicalShowID != canonicalID {
		s.log.Info("confirmed mapping kept its canonical show",
			zap.String("org_id", req.OrgID.String()),
			zap.String("identity_hash", hash),
			zap.String("kept_show_id", stored.CanonicalShowID),
			zap.String("proposed_show_id", canonicalID),
		)
	}
	return stored, nil
}

func (s *Service) TouchLastSeen(ctx context.Context, mappingID snowflake.ID) error {
	if mappingID == 0 {
		return mappingdomain.ErrInvalidID
	}
	return s.repo.TouchLastSeen(ctx, s.db, mappingID, s.clock.Now().UTC())
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID, req mappingdomain.ListRequest) (*mappingdomain.ListResponse, error) {
	if orgID == 0 {
		return nil, mappingdomain.ErrInvalidOrganization
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	limit := page.Limit()

	var afterID snowflake.ID
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return nil, err
		}
		afterID, err = snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
	}

	items, err := s.repo.List(ctx, s.db, orgID, req.ListFilter, limit+1, afterID)
	if err != nil {
		return nil, err
	}

	items, info := pagination.Trim(items, limit, func(m mappingdomain.ShowMapping) string {
		return m.ID.String()
	})
	if items == nil {
		items = []mappingdomain.ShowMapping{}
	}
	return &mappingdomain.ListResponse{
		Mappings:      items,
		NextPageToken: info.NextPageToken,
		HasMore:       info.HasMore,
	}, nil
}

func (s *Service) Confirm(ctx context.Context, orgID, mappingID snowflake.ID, req mappingdomain.ConfirmRequest) (*mappingdomain.ShowMapping, error) {
	if orgID == 0 {
		return nil, mappingdomain.ErrInvalidOrganization
	}
	if mappingID == 0 {
		return nil, mappingdomain.ErrInvalidID
	}

	existing, err := s.repo.FindByID(ctx, s.db, orgID, mappingID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, mappingdomain.ErrNotFound
	}

	canonicalID := strings.TrimSpace(req.CanonicalShowID)
	if err := s.repo.Confirm(ctx, s.db, orgID, mappingID, canonicalID, s.clock.Now().UTC()); err != nil {
		return nil, err
	}

	s.log.Info("mapping confirmed",
		zap.String("org_id", orgID.String()),
		zap.String("mapping_id", mappingID.String()),
		zap.Bool("repointed", canonicalID != "" && canonicalID != existing.CanonicalShowID),
	)
	return s.repo.FindByID(ctx, s.db, orgID, mappingID)
}

func (s *Service) Delete(ctx context.Context, orgID, mappingID snowflake.ID) error {
	if orgID == 0 {
		return mappingdomain.ErrInvalidOrganization
	}
	if mappingID == 0 {
		return mappingdomain.ErrInvalidID
	}

	existing, err := s.repo.FindByID(ctx, s.db, orgID, mappingID)
	if err != nil {
		return err
	}
	if existing == nil {
		return mappingdomain.ErrNotFound
	}
	return s.repo.Delete(ctx, s.db, orgID, mappingID)
}
