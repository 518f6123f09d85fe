// Package parser extracts per-show sales records from Tixly report text.
//
// Reports are Norwegian-labelled and only loosely structured: a label and its
// value may share a line or the value may follow on the next line. Parsing is
// best effort. Blocks that cannot be turned into a show are reported as parse
// errors and never abort the rest of the report.
package parser

import (
	"fmt"
	"strings"

	reportdomain "github.com/smallbiznis/tixsync/internal/report/domain"
	"github.com/smallbiznis/tixsync/internal/identity"
	"golang.org/x/text/unicode/norm"
)

const (
	fieldDate      = "dato"
	fieldSold      = "solgte"
	fieldFree      = "fribilletter"
	fieldAvailable = "tilgjengelige"
	fieldRevenue   = "omsetning"
	fieldShowCount = "antall forestillinger"
)

type block struct {
	index  int
	name   []string
	fields map[string]string
}

func newBlock(index int, name []string) *block {
	return &block{index: index, name: name, fields: make(map[string]string, 5)}
}

// set keeps the first value of a field and reports whether value was taken.
func (b *block) set(field, value string) bool {
	if _, ok := b.fields[field]; ok {
		return false
	}
	b.fields[field] = value
	return true
}

// Parse turns one raw report into shows, an optional summary and the list of
// rejected blocks. It never fails.
func Parse(raw string) reportdomain.ParseResult {
	result := reportdomain.ParseResult{
		Shows:       []reportdomain.ParsedShow{},
		ParseErrors: []string{},
	}

	lines := splitLines(raw)
	if len(lines) == 0 {
		result.ParseErrors = append(result.ParseErrors, "report is empty")
		return result
	}

	sections := locateSections(lines)
	result.Summary = parseSummary(sections.summary)

	blocks, stray := tokenize(sections.detail)
	result.ParseErrors = append(result.ParseErrors, stray...)
	if len(blocks) == 0 {
		blocks = fallbackBlocks(sections.detail)
	}

	for _, b := range blocks {
		show, err := b.toShow()
		if err != nil {
			result.ParseErrors = append(result.ParseErrors, err.Error())
			continue
		}
		result.Shows = append(result.Shows, show)
	}

	if len(blocks) == 0 && result.Summary == nil {
		result.ParseErrors = append(result.ParseErrors, "no show blocks found")
	}
	return result
}

func splitLines(raw string) []string {
	text := norm.NFC.String(raw)
	text = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\u00a0", " ", "\u202f", " ", "\t", " ").Replace(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	parts := strings.Split(text, "\n")
	lines := make([]string, len(parts))
	for i, part := range parts {
		lines[i] = strings.TrimSpace(part)
	}
	return lines
}

// tokenize walks detail lines and groups them into blocks anchored on the
// date label. Free lines preceding a date label form the block's name; a
// blank line starts a new name paragraph. Labels repeated inside a block are
// returned as stray errors.
func tokenize(lines []string) ([]*block, []string) {
	var (
		blocks     []*block
		stray      []string
		current    *block
		pending    []string
		newPara    bool
		blockIndex int
	)

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			newPara = len(pending) > 0
			continue
		}

		field, value, ok := matchLabel(line)
		if !ok {
			if newPara {
				pending = nil
				newPara = false
			}
			pending = append(pending, line)
			continue
		}
		newPara = false

		if value == "" {
			if next, ok := nextValueLine(lines, i+1, field); ok {
				value = lines[next]
				i = next
			}
		}

		// A label after fresh name lines opens a new block even without a date.
		if field == fieldDate || current == nil || len(pending) > 0 {
			blockIndex++
			current = newBlock(blockIndex, pending)
			blocks = append(blocks, current)
			pending = nil
		}
		if !current.set(field, value) {
			stray = append(stray, fmt.Sprintf("block %d: repeated %q label without a new show ignored", current.index, field))
		}
	}

	return blocks, stray
}

// nextValueLine returns the index of the next non-empty line when it can be
// the value of field. Anything else stays put and may name the next show.
func nextValueLine(lines []string, from int, field string) (int, bool) {
	for j := from; j < len(lines); j++ {
		if lines[j] == "" {
			continue
		}
		if !fitsField(field, lines[j]) {
			return 0, false
		}
		return j, true
	}
	return 0, false
}

func fitsField(field, value string) bool {
	switch field {
	case fieldDate:
		return dateTimePattern.MatchString(value)
	case fieldRevenue:
		return amountValue.MatchString(value)
	default:
		return countValue.MatchString(value)
	}
}

func matchLabel(line string) (field, value string, ok bool) {
	m := labelLine.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	return strings.ToLower(m[1]), strings.TrimSpace(m[2]), true
}

func (b *block) toShow() (reportdomain.ParsedShow, error) {
	rawName := strings.TrimSpace(strings.Join(b.name, " "))
	cleanName := CleanName(rawName)
	dateValue, hasDate := b.fields[fieldDate]
	dateValue = strings.TrimSpace(dateValue)

	switch {
	case cleanName == "" && (!hasDate || dateValue == ""):
		return reportdomain.ParsedShow{}, fmt.Errorf("block %d: missing name and date", b.index)
	case cleanName == "":
		return reportdomain.ParsedShow{}, fmt.Errorf("block %d: missing name", b.index)
	case !hasDate || dateValue == "":
		return reportdomain.ParsedShow{}, fmt.Errorf("block %d (%s): missing date", b.index, cleanName)
	}

	date, showTime, ok := ParseDateTime(dateValue)
	if !ok {
		return reportdomain.ParsedShow{}, fmt.Errorf("block %d (%s): invalid date %q", b.index, cleanName, dateValue)
	}

	revenue, _ := ParseCurrency(b.fields[fieldRevenue])
	show := reportdomain.ParsedShow{
		RawName:     rawName,
		CleanName:   cleanName,
		Date:        date,
		Time:        showTime,
		TicketsSold: ParseCount(b.fields[fieldSold]),
		FreeTickets: ParseCount(b.fields[fieldFree]),
		Available:   ParseCount(b.fields[fieldAvailable]),
		Revenue:     revenue,
	}
	show.Hash = identity.Hash(show.CleanName, show.Date, show.Time)
	return show, nil
}

// CleanName strips trailing separators and collapses whitespace.
func CleanName(raw string) string {
	name := strings.Join(strings.Fields(raw), " ")
	name = strings.TrimRight(name, " -–—:")
	return strings.TrimSpace(name)
}
