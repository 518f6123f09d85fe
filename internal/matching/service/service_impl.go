package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	aidomain "github.com/smallbiznis/tixsync/internal/aimatch/domain"
	"github.com/smallbiznis/tixsync/internal/config"
	mappingdomain "github.com/smallbiznis/tixsync/internal/mapping/domain"
	matchingdomain "github.com/smallbiznis/tixsync/internal/matching/domain"
	"github.com/smallbiznis/tixsync/internal/observability/metrics"
	reportdomain "github.com/smallbiznis/tixsync/internal/report/domain"
	showdomain "github.com/smallbiznis/tixsync/internal/showdirectory/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Cache     mappingdomain.Cache
	Directory showdomain.Directory
	Suggester aidomain.Suggester
	Tuning    *config.TuningHolder     `optional:"true"`
	Metrics   *metrics.PipelineMetrics `optional:"true"`
}

// Service runs the cascade: cached mapping, exact, fuzzy, then AI.
type Service struct {
	log        *zap.Logger
	cache      mappingdomain.Cache
	strategies []matchingdomain.Strategy
}

func New(p Params) matchingdomain.Matcher {
	log := p.Log.Named("matching.service")
	return NewWithStrategies(log, p.Cache,
		NewCacheStrategy(p.Cache, p.Directory, log),
		ExactStrategy{},
		FuzzyStrategy{Threshold: FuzzyThreshold, Tuning: p.Tuning},
		NewAIStrategy(p.Suggester, p.Metrics).WithTuning(p.Tuning),
	)
}

// NewWithStrategies builds a matcher over an explicit cascade.
func NewWithStrategies(log *zap.Logger, cache mappingdomain.Cache, strategies ...matchingdomain.Strategy) *Service {
	return &Service{log: log, cache: cache, strategies: strategies}
}

func (s *Service) Match(ctx context.Context, orgID snowflake.ID, show reportdomain.ParsedShow, candidates []showdomain.CanonicalShow) matchingdomain.MatchResult {
	in := &matchingdomain.Input{
		OrgID:      orgID,
		Show:       show,
		Candidates: validCandidates(candidates),
	}

	for _, strategy := range s.strategies {
		if ctx.Err() != nil {
			break
		}
		result, ok := strategy.Resolve(ctx, in)
		if !ok {
			continue
		}
		if result.IsNewMatch {
			s.persist(ctx, in, &result)
		}
		s.log.Debug("show resolved",
			zap.String("identity_hash", show.Hash),
			zap.String("clean_name", show.CleanName),
			zap.String("method", result.Method),
			zap.Float64("confidence", result.Confidence),
			zap.String("canonical_show_id", result.CanonicalShow.ID),
		)
		return result
	}

	s.log.Debug("show unmatched",
		zap.String("identity_hash", show.Hash),
		zap.String("clean_name", show.CleanName),
		zap.Int("candidates", len(in.Candidates)),
	)
	return matchingdomain.Unmatched()
}

// persist stores a live match. A failed write is logged; the match still stands.
func (s *Service) persist(ctx context.Context, in *matchingdomain.Input, result *matchingdomain.MatchResult) {
	if s.cache == nil || in.OrgID == 0 || in.Show.Hash == "" {
		return
	}

	confirmed := result.Method == matchingdomain.MethodExact && result.Confidence >= mappingdomain.ConfirmThreshold
	stored, err := s.cache.Upsert(ctx, mappingdomain.UpsertRequest{
		OrgID:           in.OrgID,
		IdentityHash:    in.Show.Hash,
		CanonicalShowID: result.CanonicalShow.ID,
		Method:          result.Method,
		Confidence:      result.Confidence,
		Confirmed:       confirmed,
		Reasoning:       result.Reasoning,
		CleanName:       in.Show.CleanName,
		ShowDate:        in.Show.Date,
		ShowTime:        in.Show.Time,
		AllowRepoint:    in.Dangling,
	})
	if err != nil {
		s.log.Warn("persist show mapping failed",
			zap.String("identity_hash", in.Show.Hash),
			zap.String("method", result.Method),
			zap.Error(err),
		)
		return
	}
	result.MappingID = stored.ID
}

// validCandidates drops candidates without an id so a malformed directory
// response cannot produce an unusable match.
func validCandidates(candidates []showdomain.CanonicalShow) []showdomain.CanonicalShow {
	out := make([]showdomain.CanonicalShow, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}
