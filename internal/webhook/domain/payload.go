package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	matchingdomain "github.com/smallbiznis/tixsync/internal/matching/domain"
	reportdomain "github.com/smallbiznis/tixsync/internal/report/domain"
)

const (
	PayloadVersion = "1"
	Currency       = "NOK"
)

// Payload is the versioned notification sent for one matched show.
type Payload struct {
	WebhookID string       `json:"webhook_id"`
	ReportID  string       `json:"report_id"`
	Timestamp string       `json:"timestamp"`
	Tixly     TixlyFields  `json:"tixly"`
	Notion    NotionFields `json:"notion"`
	Match     MatchFields  `json:"match"`
	App       *AppFields   `json:"app"`
}

type TixlyFields struct {
	RawName     string  `json:"raw_name"`
	CleanName   string  `json:"clean_name"`
	Date        string  `json:"date"`
	Time        *string `json:"time"`
	TicketsSold int     `json:"tickets_sold"`
	FreeTickets int     `json:"free_tickets"`
	Available   int     `json:"available"`
	Revenue     int64   `json:"revenue"`
	Currency    string  `json:"currency"`
}

type NotionFields struct {
	ShowID    string  `json:"show_id"`
	ShowName  string  `json:"show_name"`
	ShowURL   string  `json:"show_url"`
	StopID    *string `json:"stop_id"`
	ProjectID *string `json:"project_id"`
	Venue     *string `json:"venue"`
	Capacity  *int    `json:"capacity"`
}

type MatchFields struct {
	Method     string  `json:"method"`
	Confidence float64 `json:"confidence"`
	IsNewMatch bool    `json:"is_new_match"`
}

type AppFields struct {
	ShowID         *string `json:"show_id"`
	TicketReportID *string `json:"ticket_report_id"`
}

// Item is one resolved show queued for notification.
type Item struct {
	EntryID snowflake.ID
	Show    reportdomain.ParsedShow
	Result  matchingdomain.MatchResult
}

// ReportRef identifies the report run a notification belongs to.
type ReportRef struct {
	ID    snowflake.ID
	OrgID snowflake.ID
}

// BuildPayload flattens an item into the outbound payload. The item must be matched.
func BuildPayload(webhookID string, report ReportRef, item Item, now time.Time) Payload {
	show := item.Show
	canonical := item.Result.CanonicalShow

	p := Payload{
		WebhookID: webhookID,
		ReportID:  report.ID.String(),
		Timestamp: now.UTC().Format(time.RFC3339),
		Tixly: TixlyFields{
			RawName:     show.RawName,
			CleanName:   show.CleanName,
			Date:        show.Date,
			Time:        show.Time,
			TicketsSold: show.TicketsSold,
			FreeTickets: show.FreeTickets,
			Available:   show.Available,
			Revenue:     show.Revenue,
			Currency:    Currency,
		},
		Match: MatchFields{
			Method:     item.Result.Method,
			Confidence: item.Result.Confidence,
			IsNewMatch: item.Result.IsNewMatch,
		},
	}

	if canonical != nil {
		p.Notion = NotionFields{
			ShowID:    canonical.ID,
			ShowName:  canonical.Name,
			ShowURL:   canonical.URL,
			StopID:    canonical.ParentStopID,
			ProjectID: canonical.ParentProjectID,
			Venue:     canonical.Venue,
			Capacity:  canonical.Capacity,
		}
	}

	var app AppFields
	if canonical != nil && canonical.AppShowID != nil {
		app.ShowID = canonical.AppShowID
	}
	if item.EntryID != 0 {
		entryID := item.EntryID.String()
		app.TicketReportID = &entryID
	}
	if app.ShowID != nil || app.TicketReportID != nil {
		p.App = &app
	}
	return p
}
