// Package similarity scores how closely a parsed report show resembles a canonical show.
package similarity

import (
	"strings"
	"time"

	"github.com/smallbiznis/tixsync/internal/identity"
	reportdomain "github.com/smallbiznis/tixsync/internal/report/domain"
	showdomain "github.com/smallbiznis/tixsync/internal/showdirectory/domain"
)

const (
	weightDateExact   = 0.4
	weightDateOneDay  = 0.3
	weightDateThree   = 0.1
	weightName        = 0.5
	weightTimeExact   = 0.1
	weightTimeNearby  = 0.05
	coreNameThreshold = 0.85
)

// StringSimilarity returns 1 - levenshtein(a, b) / max(len(a), len(b)) over
// lowercased, trimmed input.
func StringSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

// NamesMatch is the name gate used by exact matching.
func NamesMatch(a, b string) bool {
	na := identity.NormalizeName(a)
	nb := identity.NormalizeName(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb || strings.Contains(na, nb) || strings.Contains(nb, na) {
		return true
	}

	ca, cb := coreName(na), coreName(nb)
	if ca == "" || cb == "" {
		return false
	}
	if ca == cb || strings.Contains(ca, cb) || strings.Contains(cb, ca) {
		return true
	}
	return StringSimilarity(ca, cb) > coreNameThreshold
}

// coreName is the text before the first dash or colon.
func coreName(name string) string {
	if i := strings.IndexAny(name, "-–—:"); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}

// MatchScore weighs date proximity, name similarity and time proximity into [0,1].
func MatchScore(show reportdomain.ParsedShow, candidate showdomain.CanonicalShow) float64 {
	score := 0.0

	if days, ok := DaysApart(show.Date, candidate.Date); ok {
		switch {
		case days == 0:
			score += weightDateExact
		case days <= 1:
			score += weightDateOneDay
		case days <= 3:
			score += weightDateThree
		}
	}

	score += StringSimilarity(show.CleanName, candidate.Name) * weightName

	if minutes, ok := MinutesApart(show.Time, candidate.Time); ok {
		switch {
		case minutes == 0:
			score += weightTimeExact
		case minutes <= 60:
			score += weightTimeNearby
		}
	}

	return clamp(score)
}

// DaysApart returns the absolute number of days between two ISO dates.
func DaysApart(a, b string) (int, bool) {
	da, err := time.Parse(time.DateOnly, strings.TrimSpace(a))
	if err != nil {
		return 0, false
	}
	db, err := time.Parse(time.DateOnly, strings.TrimSpace(b))
	if err != nil {
		return 0, false
	}
	days := int(da.Sub(db).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days, true
}

// MinutesApart returns the absolute distance between two "HH:MM" times.
// Both must be present.
func MinutesApart(a, b *string) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	ta, err := time.Parse("15:04", strings.TrimSpace(*a))
	if err != nil {
		return 0, false
	}
	tb, err := time.Parse("15:04", strings.TrimSpace(*b))
	if err != nil {
		return 0, false
	}
	minutes := int(ta.Sub(tb).Minutes())
	if minutes < 0 {
		minutes = -minutes
	}
	return minutes, true
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
