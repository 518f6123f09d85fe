package domain

import (
	"context"

	reportdomain "github.com/smallbiznis/tixsync/internal/report/domain"
	showdomain "github.com/smallbiznis/tixsync/internal/showdirectory/domain"
)

// WindowDays bounds the candidate set sent to the reasoning service.
const WindowDays = 7

// Suggestion is an accepted answer from the reasoning service.
type Suggestion struct {
	Candidate  showdomain.CanonicalShow
	Confidence float64
	Reasoning  string
}

// Suggester proposes a match for a show the deterministic strategies could not
// resolve. Any failure yields ok=false.
type Suggester interface {
	SuggestMatch(ctx context.Context, show reportdomain.ParsedShow, candidates []showdomain.CanonicalShow) (*Suggestion, bool)
}

// Noop never suggests anything. It stands in when no credential is configured.
type Noop struct{}

func (Noop) SuggestMatch(context.Context, reportdomain.ParsedShow, []showdomain.CanonicalShow) (*Suggestion, bool) {
	return nil, false
}
