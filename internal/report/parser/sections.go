package parser

import (
	"regexp"
	"strings"

	reportdomain "github.com/smallbiznis/tixsync/internal/report/domain"
)

var (
	detailHeader  = regexp.MustCompile(`(?i)^(salgsdetaljer|salg per forestilling|detaljer per forestilling|forestillinger)\b`)
	summaryHeader = regexp.MustCompile(`(?i)^(totalt|oppsummering|sammendrag)\b`)

	labelLine        = regexp.MustCompile(`(?i)^(dato|solgte|fribilletter|tilgjengelige|omsetning)\s*:\s*(.*)$`)
	summaryLabelLine = regexp.MustCompile(`(?i)^(antall forestillinger|solgte|fribilletter|tilgjengelige|omsetning)\s*:\s*(.*)$`)
)

type sections struct {
	detail  []string
	summary []string
}

// locateSections splits the report into the per-show detail lines and the
// aggregate summary lines. Without a detail header everything outside the
// summary is treated as detail.
func locateSections(lines []string) sections {
	detailAt, summaryAt := -1, -1
	for i, line := range lines {
		if detailAt < 0 && detailHeader.MatchString(line) {
			detailAt = i
		}
		if summaryAt < 0 && summaryHeader.MatchString(line) {
			summaryAt = i
		}
	}

	var out sections
	summaryEnd := -1
	if summaryAt >= 0 {
		summaryEnd = summaryExtent(lines, summaryAt+1)
		out.summary = lines[summaryAt+1 : summaryEnd]
	}

	switch {
	case detailAt >= 0:
		end := len(lines)
		if summaryAt > detailAt {
			end = summaryAt
		}
		out.detail = lines[detailAt+1 : end]
	case summaryAt >= 0:
		out.detail = append(append([]string{}, lines[:summaryAt]...), lines[summaryEnd:]...)
	default:
		out.detail = lines
	}
	return out
}

// summaryExtent returns the index one past the last line belonging to the
// summary that starts at from. The summary runs over blank lines, label lines
// and the value lines that follow empty labels when they fit the label.
func summaryExtent(lines []string, from int) int {
	i := from
	for i < len(lines) {
		line := lines[i]
		if line == "" {
			i++
			continue
		}
		m := summaryLabelLine.FindStringSubmatch(line)
		if m == nil {
			break
		}
		i++
		if strings.TrimSpace(m[2]) != "" {
			continue
		}
		for i < len(lines) && lines[i] == "" {
			i++
		}
		if i < len(lines) && !summaryLabelLine.MatchString(lines[i]) && fitsField(strings.ToLower(m[1]), lines[i]) {
			i++
		}
	}
	for i > from && lines[i-1] == "" {
		i--
	}
	return i
}

func parseSummary(lines []string) *reportdomain.Summary {
	if len(lines) == 0 {
		return nil
	}

	values := map[string]string{}
	for i := 0; i < len(lines); i++ {
		m := summaryLabelLine.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		field := strings.ToLower(m[1])
		value := strings.TrimSpace(m[2])
		if value == "" {
			for j := i + 1; j < len(lines); j++ {
				if lines[j] == "" {
					continue
				}
				if !summaryLabelLine.MatchString(lines[j]) && fitsField(field, lines[j]) {
					value = lines[j]
					i = j
				}
				break
			}
		}
		if _, seen := values[field]; !seen {
			values[field] = value
		}
	}
	if len(values) == 0 {
		return nil
	}

	revenue, _ := ParseCurrency(values[fieldRevenue])
	return &reportdomain.Summary{
		ShowCount:   ParseCount(values[fieldShowCount]),
		TicketsSold: ParseCount(values[fieldSold]),
		FreeTickets: ParseCount(values[fieldFree]),
		Available:   ParseCount(values[fieldAvailable]),
		Revenue:     revenue,
	}
}
