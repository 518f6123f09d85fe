package domain

// ParsedShow is one per-show record extracted from a report. It is never mutated after parsing.
type ParsedShow struct {
	RawName     string  `json:"raw_name"`
	CleanName   string  `json:"clean_name"`
	Date        string  `json:"date"`
	Time        *string `json:"time"`
	TicketsSold int     `json:"tickets_sold"`
	FreeTickets int     `json:"free_tickets"`
	Available   int     `json:"available"`
	Revenue     int64   `json:"revenue"`
	Hash        string  `json:"hash"`
}

// Summary is the aggregate section of a report.
type Summary struct {
	ShowCount   int   `json:"show_count"`
	TicketsSold int   `json:"tickets_sold"`
	FreeTickets int   `json:"free_tickets"`
	Available   int   `json:"available"`
	Revenue     int64 `json:"revenue"`
}

// ParseResult is the outcome of parsing one raw report. Partial success is normal.
type ParseResult struct {
	Shows       []ParsedShow `json:"shows"`
	Summary     *Summary     `json:"summary"`
	ParseErrors []string     `json:"parse_errors"`
}

// Usable reports whether the result carries any show or summary content.
func (r ParseResult) Usable() bool {
	return len(r.Shows) > 0 || r.Summary != nil
}

// DateRange returns the min and max show dates, or ok=false when no shows were parsed.
func (r ParseResult) DateRange() (from, to string, ok bool) {
	for i, show := range r.Shows {
		if i == 0 || show.Date < from {
			from = show.Date
		}
		if i == 0 || show.Date > to {
			to = show.Date
		}
	}
	return from, to, len(r.Shows) > 0
}
