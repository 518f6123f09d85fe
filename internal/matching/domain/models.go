package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	reportdomain "github.com/smallbiznis/tixsync/internal/report/domain"
	showdomain "github.com/smallbiznis/tixsync/internal/showdirectory/domain"
)

// Methods reported on a MatchResult. A cache hit reports MethodMapping and
// keeps the method that originally created the mapping in CachedMethod.
const (
	MethodMapping = "mapping"
	MethodExact   = "exact"
	MethodFuzzy   = "fuzzy"
	MethodAI      = "ai"
)

// MatchResult is the outcome of resolving one parsed show.
type MatchResult struct {
	Matched       bool                      `json:"matched"`
	CanonicalShow *showdomain.CanonicalShow `json:"canonical_show"`
	Method        string                    `json:"method,omitempty"`
	CachedMethod  string                    `json:"cached_method,omitempty"`
	Confidence    float64                   `json:"confidence"`
	IsNewMatch    bool                      `json:"is_new_match"`
	Reasoning     *string                   `json:"reasoning,omitempty"`
	MappingID     snowflake.ID              `json:"mapping_id,omitempty"`
}

// Unmatched is the terminal result.
func Unmatched() MatchResult {
	return MatchResult{}
}

// Input carries one show through the strategy cascade.
type Input struct {
	OrgID      snowflake.ID
	Show       reportdomain.ParsedShow
	Candidates []showdomain.CanonicalShow

	// Dangling is set when a cached mapping exists but its canonical show no
	// longer resolves. A live match then replaces the stale reference.
	Dangling bool
}

// Strategy is one step of the cascade. ok=false passes the show to the next step.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, in *Input) (result MatchResult, ok bool)
}

// Matcher resolves a parsed show to a canonical show. It never returns an error;
// failures end in an unmatched result.
type Matcher interface {
	Match(ctx context.Context, orgID snowflake.ID, show reportdomain.ParsedShow, candidates []showdomain.CanonicalShow) MatchResult
}
