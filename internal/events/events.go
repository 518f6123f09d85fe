// Package events publishes pipeline events for downstream consumers.
package events

import (
	"context"
	"time"
)

const QueueReportProcessed = "tixsync.report.processed"

// ReportProcessed is emitted once per finalized report run.
type ReportProcessed struct {
	ReportID          string    `json:"report_id"`
	OrgID             string    `json:"org_id"`
	Status            string    `json:"status"`
	Parsed            int       `json:"parsed"`
	Matched           int       `json:"matched"`
	Unmatched         int       `json:"unmatched"`
	NewMappings       int       `json:"new_mappings"`
	NotificationsSent int       `json:"notifications_sent"`
	DeliveryFailures  int       `json:"delivery_failures"`
	ProcessedAt       time.Time `json:"processed_at"`
}

type Publisher interface {
	PublishReportProcessed(ctx context.Context, event ReportProcessed) error
}

// Noop drops every event.
type Noop struct{}

func (Noop) PublishReportProcessed(context.Context, ReportProcessed) error { return nil }
