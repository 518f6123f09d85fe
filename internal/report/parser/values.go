package parser

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	dateTimePattern     = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4})(?:\s+(?:kl\.?\s*)?(\d{1,2})[:.](\d{2}))?`)
	thousandsDotPattern = regexp.MustCompile(`^-?\d{1,3}(\.\d{3})+$`)
	leadingCount        = regexp.MustCompile(`^-?\d+(?:[ .]\d{3})*`)

	countValue  = regexp.MustCompile(`^-?\d[\d .]*$`)
	amountValue = regexp.MustCompile(`(?i)^(?:kr\.?|nok)?\s*-?\d[\d .,]*(?:,-|\.-)?(?:\s*(?:kr|nok))?$`)
)

// ParseDateTime reads "DD.MM.YYYY[ HH:MM]" and returns the ISO date and an
// optional "HH:MM" time.
func ParseDateTime(value string) (string, *string, bool) {
	m := dateTimePattern.FindStringSubmatch(value)
	if m == nil {
		return "", nil, false
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || int(d.Month()) != month || d.Year() != year {
		return "", nil, false
	}
	date := d.Format(time.DateOnly)

	if m[4] == "" {
		return date, nil, true
	}
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	if hour > 23 || minute > 59 {
		return "", nil, false
	}
	hhmm := fmt.Sprintf("%02d:%02d", hour, minute)
	return date, &hhmm, true
}

// ParseCount reads the leading integer of value, which may carry grouping
// spaces or dots. Trailing text such as "(3)" is ignored. Unparseable values
// count as zero.
func ParseCount(value string) int {
	run := leadingCount.FindString(strings.TrimSpace(value))
	digits := strings.NewReplacer(" ", "", ".", "").Replace(run)
	if digits == "" {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

// ParseCurrency reads a NOK amount such as "kr 45 000", "45.000,50" or
// "1 200,-" and rounds it to the nearest krone.
func ParseCurrency(value string) (int64, bool) {
	s := strings.ToLower(strings.TrimSpace(value))
	if s == "" {
		return 0, false
	}
	s = strings.NewReplacer("kr.", "", "kr", "", "nok", "", ",-", "", ".-", "", " ", "", "\u00a0", "", "\u202f", "").Replace(s)
	if s == "" {
		return 0, false
	}

	switch {
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case thousandsDotPattern.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int64(math.Round(f)), true
}
