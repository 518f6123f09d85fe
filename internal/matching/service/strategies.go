package service

import (
	"context"

	aidomain "github.com/smallbiznis/tixsync/internal/aimatch/domain"
	"github.com/smallbiznis/tixsync/internal/config"
	"github.com/smallbiznis/tixsync/internal/identity"
	mappingdomain "github.com/smallbiznis/tixsync/internal/mapping/domain"
	matchingdomain "github.com/smallbiznis/tixsync/internal/matching/domain"
	"github.com/smallbiznis/tixsync/internal/matching/similarity"
	"github.com/smallbiznis/tixsync/internal/observability/metrics"
	showdomain "github.com/smallbiznis/tixsync/internal/showdirectory/domain"
	"go.uber.org/zap"
)

const (
	FuzzyThreshold        = 0.75
	AIConfidenceThreshold = 0.6

	exactConfidence       = 1.0
	containmentConfidence = 0.95
)

// CacheStrategy honors an existing mapping whose canonical show still resolves.
type CacheStrategy struct {
	cache     mappingdomain.Cache
	directory showdomain.Directory
	log       *zap.Logger
}

func NewCacheStrategy(cache mappingdomain.Cache, directory showdomain.Directory, log *zap.Logger) *CacheStrategy {
	return &CacheStrategy{cache: cache, directory: directory, log: log}
}

func (s *CacheStrategy) Name() string { return matchingdomain.MethodMapping }

func (s *CacheStrategy) Resolve(ctx context.Context, in *matchingdomain.Input) (matchingdomain.MatchResult, bool) {
	mapping, err := s.cache.Lookup(ctx, in.OrgID, in.Show.Hash)
	if err != nil {
		s.log.Warn("mapping lookup failed", zap.String("identity_hash", in.Show.Hash), zap.Error(err))
		return matchingdomain.Unmatched(), false
	}
	if mapping == nil {
		return matchingdomain.Unmatched(), false
	}

	show, err := s.resolveShow(ctx, in, mapping.CanonicalShowID)
	if err != nil {
		// A failed lookup never marks the mapping dangling.
		s.log.Warn("canonical show lookup failed",
			zap.String("canonical_show_id", mapping.CanonicalShowID),
			zap.Error(err),
		)
		return matchingdomain.Unmatched(), false
	}
	if show == nil {
		in.Dangling = true
		s.log.Info("mapping points at a show that no longer resolves",
			zap.String("identity_hash", in.Show.Hash),
			zap.String("canonical_show_id", mapping.CanonicalShowID),
			zap.Bool("confirmed", mapping.Confirmed),
		)
		return matchingdomain.Unmatched(), false
	}

	if err := s.cache.TouchLastSeen(ctx, mapping.ID); err != nil {
		s.log.Warn("touch mapping last seen failed", zap.String("mapping_id", mapping.ID.String()), zap.Error(err))
	}

	return matchingdomain.MatchResult{
		Matched:       true,
		CanonicalShow: show,
		Method:        matchingdomain.MethodMapping,
		CachedMethod:  mapping.Method,
		Confidence:    mapping.Confidence,
		IsNewMatch:    false,
		Reasoning:     mapping.Reasoning,
		MappingID:     mapping.ID,
	}, true
}

func (s *CacheStrategy) resolveShow(ctx context.Context, in *matchingdomain.Input, id string) (*showdomain.CanonicalShow, error) {
	for i := range in.Candidates {
		if in.Candidates[i].ID == id {
			show := in.Candidates[i]
			return &show, nil
		}
	}
	if s.directory == nil {
		return nil, nil
	}
	return s.directory.FindByID(ctx, in.OrgID, id)
}

// ExactStrategy matches a same-day candidate that passes the name gate. Show
// times only break ties between several such candidates.
type ExactStrategy struct{}

func (ExactStrategy) Name() string { return matchingdomain.MethodExact }

func (ExactStrategy) Resolve(_ context.Context, in *matchingdomain.Input) (matchingdomain.MatchResult, bool) {
	var sameDay []int
	for i := range in.Candidates {
		if in.Candidates[i].Date != in.Show.Date {
			continue
		}
		if !similarity.NamesMatch(in.Show.CleanName, in.Candidates[i].Name) {
			continue
		}
		sameDay = append(sameDay, i)
	}
	if len(sameDay) == 0 {
		return matchingdomain.Unmatched(), false
	}

	pick := -1
	if len(sameDay) == 1 {
		pick = sameDay[0]
	} else {
		for _, i := range sameDay {
			if minutes, ok := similarity.MinutesApart(in.Show.Time, in.Candidates[i].Time); !ok || minutes == 0 {
				pick = i
				break
			}
		}
	}
	if pick < 0 {
		return matchingdomain.Unmatched(), false
	}

	candidate := in.Candidates[pick]
	confidence := containmentConfidence
	if identity.NormalizeName(in.Show.CleanName) == identity.NormalizeName(candidate.Name) {
		confidence = exactConfidence
	}
	return matchingdomain.MatchResult{
		Matched:       true,
		CanonicalShow: &candidate,
		Method:        matchingdomain.MethodExact,
		Confidence:    confidence,
		IsNewMatch:    true,
	}, true
}

// FuzzyStrategy picks the best scoring candidate at or above the threshold.
// A Tuning holder, when set, overrides Threshold on every call.
type FuzzyStrategy struct {
	Threshold float64
	Tuning    *config.TuningHolder
}

func (FuzzyStrategy) Name() string { return matchingdomain.MethodFuzzy }

func (s FuzzyStrategy) Resolve(_ context.Context, in *matchingdomain.Input) (matchingdomain.MatchResult, bool) {
	threshold := s.Threshold
	if s.Tuning != nil {
		threshold = s.Tuning.Get().FuzzyThreshold
	}
	if threshold <= 0 {
		threshold = FuzzyThreshold
	}

	best := -1
	bestScore := 0.0
	for i := range in.Candidates {
		score := similarity.MatchScore(in.Show, in.Candidates[i])
		if score >= threshold && score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return matchingdomain.Unmatched(), false
	}

	candidate := in.Candidates[best]
	return matchingdomain.MatchResult{
		Matched:       true,
		CanonicalShow: &candidate,
		Method:        matchingdomain.MethodFuzzy,
		Confidence:    bestScore,
		IsNewMatch:    true,
	}, true
}

// AIStrategy defers to the reasoning service and accepts confident answers only.
type AIStrategy struct {
	suggester     aidomain.Suggester
	minConfidence float64
	tuning        *config.TuningHolder
	metrics       *metrics.PipelineMetrics
}

func NewAIStrategy(suggester aidomain.Suggester, m *metrics.PipelineMetrics) *AIStrategy {
	if suggester == nil {
		suggester = aidomain.Noop{}
	}
	return &AIStrategy{suggester: suggester, minConfidence: AIConfidenceThreshold, metrics: m}
}

// WithTuning makes the acceptance threshold follow the holder.
func (s *AIStrategy) WithTuning(h *config.TuningHolder) *AIStrategy {
	s.tuning = h
	return s
}

func (s *AIStrategy) Name() string { return matchingdomain.MethodAI }

func (s *AIStrategy) Resolve(ctx context.Context, in *matchingdomain.Input) (matchingdomain.MatchResult, bool) {
	suggestion, ok := s.suggester.SuggestMatch(ctx, in.Show, in.Candidates)
	if !ok || suggestion == nil {
		return matchingdomain.Unmatched(), false
	}
	minConfidence := s.minConfidence
	if s.tuning != nil {
		minConfidence = s.tuning.Get().AIMinConfidence
	}
	if suggestion.Confidence < minConfidence {
		s.metrics.IncAISuggestion(metrics.AIOutcomeRejected)
		return matchingdomain.Unmatched(), false
	}
	s.metrics.IncAISuggestion(metrics.AIOutcomeAccepted)

	candidate := suggestion.Candidate
	reasoning := suggestion.Reasoning
	return matchingdomain.MatchResult{
		Matched:       true,
		CanonicalShow: &candidate,
		Method:        matchingdomain.MethodAI,
		Confidence:    suggestion.Confidence,
		IsNewMatch:    true,
		Reasoning:     &reasoning,
	}, true
}
