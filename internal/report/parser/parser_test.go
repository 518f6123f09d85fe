package parser

import (
	"testing"

	"github.com/smallbiznis/tixsync/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSingleBlockValuesOnNextLine(t *testing.T) {
	raw := "Espen Lind -\nDato:\n12.03.2025 20:00\nSolgte:\n150\nFribilletter:\n5\nTilgjengelige:\n50\nOmsetning:\nkr 45 000"

	result := Parse(raw)

	require.Len(t, result.Shows, 1)
	assert.Empty(t, result.ParseErrors)
	assert.Nil(t, result.Summary)

	show := result.Shows[0]
	assert.Equal(t, "Espen Lind -", show.RawName)
	assert.Equal(t, "Espen Lind", show.CleanName)
	assert.Equal(t, "2025-03-12", show.Date)
	require.NotNil(t, show.Time)
	assert.Equal(t, "20:00", *show.Time)
	assert.Equal(t, 150, show.TicketsSold)
	assert.Equal(t, 5, show.FreeTickets)
	assert.Equal(t, 50, show.Available)
	assert.Equal(t, int64(45000), show.Revenue)
	assert.Equal(t, identity.Hash("Espen Lind", "2025-03-12", show.Time), show.Hash)
}

const fullReport = `Salgsrapport Tixly
Periode: 01.03.2025 - 31.03.2025

Salgsdetaljer
Espen Lind -
Dato: 12.03.2025 20:00
Solgte: 150
Fribilletter: 5
Tilgjengelige: 50
Omsetning: kr 45 000

Kurt Nilsen: Hele veien
Dato: 14.03.2025 kl. 19.30
Solgte: 1 200
Fribilletter: 0
Tilgjengelige: 0
Omsetning: kr 360 000,50

Mangler dato
Solgte: 10
Omsetning: kr 100

Familieforestilling
Dato: 31.02.2025
Solgte: 3

Totalt
Antall forestillinger: 3
Solgte: 1 360
Omsetning:
kr 405 100
`

func TestParseFullReportWithPartialFailures(t *testing.T) {
	result := Parse(fullReport)

	require.Len(t, result.Shows, 2)
	assert.Len(t, result.ParseErrors, 2)
	assert.Contains(t, result.ParseErrors[0], "Mangler dato")
	assert.Contains(t, result.ParseErrors[0], "missing date")
	assert.Contains(t, result.ParseErrors[1], "invalid date")

	first := result.Shows[0]
	assert.Equal(t, "Espen Lind", first.CleanName)
	assert.Equal(t, int64(45000), first.Revenue)

	second := result.Shows[1]
	assert.Equal(t, "Kurt Nilsen: Hele veien", second.CleanName)
	assert.Equal(t, "2025-03-14", second.Date)
	require.NotNil(t, second.Time)
	assert.Equal(t, "19:30", *second.Time)
	assert.Equal(t, 1200, second.TicketsSold)
	assert.Equal(t, int64(360001), second.Revenue)

	require.NotNil(t, result.Summary)
	assert.Equal(t, 3, result.Summary.ShowCount)
	assert.Equal(t, 1360, result.Summary.TicketsSold)
	assert.Equal(t, int64(405100), result.Summary.Revenue)
}

func TestParseFallbackWithoutColons(t *testing.T) {
	raw := `Espen Lind
Dato 12.03.2025 20:00
Solgte 150
Fribilletter 5
Tilgjengelige 50
Omsetning kr 45 000
Other Show
Dato 13.03.2025
Solgte 20
Omsetning kr 2 000`

	result := Parse(raw)

	require.Len(t, result.Shows, 2)
	assert.Empty(t, result.ParseErrors)
	assert.Equal(t, "Espen Lind", result.Shows[0].CleanName)
	assert.Equal(t, 150, result.Shows[0].TicketsSold)
	assert.Equal(t, int64(45000), result.Shows[0].Revenue)
	assert.Equal(t, "Other Show", result.Shows[1].CleanName)
	assert.Nil(t, result.Shows[1].Time)
	assert.Equal(t, int64(2000), result.Shows[1].Revenue)
}

func TestParseEmptyDateDoesNotSwallowNextShow(t *testing.T) {
	raw := "Broken Show\nDato:\n\nGood Show\nDato: 13.03.2025 19:00\nSolgte: 10\nOmsetning: kr 1 000"

	result := Parse(raw)

	require.Len(t, result.Shows, 1)
	assert.Equal(t, "Good Show", result.Shows[0].CleanName)
	assert.Equal(t, 10, result.Shows[0].TicketsSold)
	require.Len(t, result.ParseErrors, 1)
	assert.Contains(t, result.ParseErrors[0], "Broken Show")
	assert.Contains(t, result.ParseErrors[0], "missing date")
}

func TestParseEmptyCountKeepsNameLine(t *testing.T) {
	raw := "First\nDato: 12.03.2025\nSolgte:\nSecond\nDato: 13.03.2025\nSolgte: 4"

	result := Parse(raw)

	require.Len(t, result.Shows, 2)
	assert.Empty(t, result.ParseErrors)
	assert.Zero(t, result.Shows[0].TicketsSold)
	assert.Equal(t, "Second", result.Shows[1].CleanName)
	assert.Equal(t, 4, result.Shows[1].TicketsSold)
}

func TestParseRepeatedLabelsAreReported(t *testing.T) {
	raw := "Good Show\nDato: 12.03.2025\nSolgte: 10\nOmsetning: kr 100\n\nSolgte: 99\nOmsetning: kr 999"

	result := Parse(raw)

	require.Len(t, result.Shows, 1)
	assert.Equal(t, 10, result.Shows[0].TicketsSold)
	assert.Equal(t, int64(100), result.Shows[0].Revenue)
	require.Len(t, result.ParseErrors, 2)
	assert.Contains(t, result.ParseErrors[0], `"solgte"`)
	assert.Contains(t, result.ParseErrors[1], `"omsetning"`)
}

func TestParseMissingNameAndDate(t *testing.T) {
	raw := "Solgte: 10\nOmsetning: kr 100"

	result := Parse(raw)

	assert.Empty(t, result.Shows)
	require.Len(t, result.ParseErrors, 1)
	assert.Contains(t, result.ParseErrors[0], "missing name and date")
	assert.False(t, result.Usable())
}

func TestParseEmptyReport(t *testing.T) {
	result := Parse("  \n\n ")

	assert.Empty(t, result.Shows)
	assert.Nil(t, result.Summary)
	assert.Equal(t, []string{"report is empty"}, result.ParseErrors)
}

func TestParseSummaryOnly(t *testing.T) {
	result := Parse("Oppsummering\nSolgte: 42\nOmsetning: kr 4 200")

	assert.Empty(t, result.Shows)
	require.NotNil(t, result.Summary)
	assert.Equal(t, 42, result.Summary.TicketsSold)
	assert.Equal(t, int64(4200), result.Summary.Revenue)
	assert.True(t, result.Usable())
}

func TestParseNonBreakingSpaces(t *testing.T) {
	raw := "Konsert\u00a0i parken\nDato:\u00a001.06.2025\nSolgte: 1\u00a0000\nOmsetning: kr\u202f12\u00a0500"

	result := Parse(raw)

	require.Len(t, result.Shows, 1)
	assert.Equal(t, "Konsert i parken", result.Shows[0].CleanName)
	assert.Equal(t, 1000, result.Shows[0].TicketsSold)
	assert.Equal(t, int64(12500), result.Shows[0].Revenue)
}

func TestParseDateTime(t *testing.T) {
	cases := []struct {
		in   string
		date string
		time string
		ok   bool
	}{
		{in: "12.03.2025", date: "2025-03-12", ok: true},
		{in: "1.3.2025 9:05", date: "2025-03-01", time: "09:05", ok: true},
		{in: "12.03.2025 kl 20.00", date: "2025-03-12", time: "20:00", ok: true},
		{in: "31.02.2025", ok: false},
		{in: "12.03.2025 25:00", ok: false},
		{in: "i morgen", ok: false},
	}

	for _, tc := range cases {
		date, tm, ok := ParseDateTime(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		if !tc.ok {
			continue
		}
		assert.Equal(t, tc.date, date, tc.in)
		if tc.time == "" {
			assert.Nil(t, tm, tc.in)
		} else if assert.NotNil(t, tm, tc.in) {
			assert.Equal(t, tc.time, *tm, tc.in)
		}
	}
}

func TestParseCount(t *testing.T) {
	cases := map[string]int{
		"150":     150,
		"1 200":   1200,
		"1.200":   1200,
		"150 (3)": 150,
		" 42 ":    42,
		"-5":      -5,
		"":        0,
		"mange":   0,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseCount(in), in)
	}
}

func TestParseCurrency(t *testing.T) {
	cases := map[string]int64{
		"kr 45 000":    45000,
		"kr 1 200,-":   1200,
		"45.000,50":    45001,
		"kr 12.500":    12500,
		"99,49":        99,
		"NOK 1000":     1000,
		"kr. 2 345,00": 2345,
	}
	for in, want := range cases {
		got, ok := ParseCurrency(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseCurrency("gratis")
	assert.False(t, ok)
}

func TestCleanName(t *testing.T) {
	assert.Equal(t, "Espen Lind", CleanName("  Espen   Lind - "))
	assert.Equal(t, "Show", CleanName("Show:"))
	assert.Equal(t, "A - B", CleanName("A - B —"))
}
