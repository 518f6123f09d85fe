package parser

import (
	"regexp"
	"strings"
)

var (
	looseLabelStart = regexp.MustCompile(`(?i)^(dato|solgte|fribilletter|tilgjengelige|omsetning)\b`)
	looseRevenue    = regexp.MustCompile(`(?i)\bomsetning\b`)

	looseFields = map[string]*regexp.Regexp{
		fieldDate:      regexp.MustCompile(`(?i)\bdato\b\s*:?\s*(\d{1,2}\.\d{1,2}\.\d{4}(?:\s+(?:kl\.?\s*)?\d{1,2}[:.]\d{2})?)`),
		fieldSold:      regexp.MustCompile(`(?i)\bsolgte\b\s*:?\s*(\d[\d ]*)`),
		fieldFree:      regexp.MustCompile(`(?i)\bfribilletter\b\s*:?\s*(\d[\d ]*)`),
		fieldAvailable: regexp.MustCompile(`(?i)\btilgjengelige\b\s*:?\s*(\d[\d ]*)`),
		fieldRevenue:   regexp.MustCompile(`(?i)\bomsetning\b\s*:?\s*((?:kr\.?\s*)?-?\d[\d .,]*(?:,-)?)`),
	}
)

// fallbackBlocks splits detail lines after each revenue field and extracts
// fields with label patterns that do not require a colon.
func fallbackBlocks(lines []string) []*block {
	var (
		blocks []*block
		chunk  []string
	)

	flush := func() {
		if b := looseBlock(len(blocks)+1, chunk); b != nil {
			blocks = append(blocks, b)
		}
		chunk = nil
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			continue
		}
		chunk = append(chunk, line)
		if !looseRevenue.MatchString(line) {
			continue
		}
		if !strings.ContainsAny(line, "0123456789") {
			for j := i + 1; j < len(lines); j++ {
				if lines[j] == "" {
					continue
				}
				chunk = append(chunk, lines[j])
				i = j
				break
			}
		}
		flush()
	}
	if len(chunk) > 0 {
		flush()
	}
	return blocks
}

func looseBlock(index int, chunk []string) *block {
	var name []string
	bodyStart := len(chunk)
	for i, line := range chunk {
		if looseLabelStart.MatchString(line) {
			bodyStart = i
			break
		}
		name = append(name, line)
	}
	if bodyStart == len(chunk) {
		return nil
	}

	body := strings.Join(chunk[bodyStart:], "\n")
	b := newBlock(index, name)
	for field, pattern := range looseFields {
		if m := pattern.FindStringSubmatch(body); m != nil {
			b.set(field, strings.TrimSpace(m[1]))
		}
	}
	return b
}
