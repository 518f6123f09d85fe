package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	reportdomain "github.com/smallbiznis/tixsync/internal/report/domain"
	showdomain "github.com/smallbiznis/tixsync/internal/showdirectory/domain"
)

const systemPrompt = `You match ticket sales report entries to a list of known shows.
Names may differ in spelling, word order, suffixes such as "m/band" or tour names, and language.
Only pick a candidate when you are confident it is the same performance.
Answer with strict JSON: {"match_index": <1-based index or null>, "confidence": <0..1>, "reasoning": "<short explanation>"}.`

var errMalformedAnswer = errors.New("malformed_answer")

type answer struct {
	MatchIndex *int    `json:"match_index"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

func buildPrompt(show reportdomain.ParsedShow, candidates []showdomain.CanonicalShow) string {
	var b strings.Builder
	b.WriteString("Report entry:\n")
	fmt.Fprintf(&b, "- name: %s\n- date: %s\n- time: %s\n\n", show.CleanName, show.Date, valueOr(show.Time, "unknown"))
	b.WriteString("Candidates:\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s | %s | %s | %s\n", i+1, c.Name, c.Date, valueOr(c.Time, "unknown"), valueOr(c.Venue, "unknown venue"))
	}
	b.WriteString("\nWhich candidate, if any, is the same show?")
	return b.String()
}

// parseAnswer decodes the model output and resolves the chosen candidate.
func parseAnswer(content string, candidates []showdomain.CanonicalShow) (*showdomain.CanonicalShow, answer, error) {
	var a answer
	body := strings.TrimSpace(content)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &a); err != nil {
		return nil, a, fmt.Errorf("%w: %v", errMalformedAnswer, err)
	}
	if a.MatchIndex == nil {
		return nil, a, nil
	}
	idx := *a.MatchIndex
	if idx < 1 || idx > len(candidates) {
		return nil, a, fmt.Errorf("%w: index %d out of range", errMalformedAnswer, idx)
	}

	a.Confidence = min(max(a.Confidence, 0), 1)
	chosen := candidates[idx-1]
	return &chosen, a, nil
}

func valueOr(v *string, def string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return def
	}
	return *v
}
