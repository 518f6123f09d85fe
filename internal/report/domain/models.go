package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Status is the lifecycle state of a report run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Delivery states recorded on a report entry.
const (
	DeliveryPending   = "pending"
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
	DeliverySkipped   = "skipped"
)

// ReportRun is the audit record of one processed report.
type ReportRun struct {
	ID                snowflake.ID   `json:"id" gorm:"primaryKey"`
	OrgID             snowflake.ID   `json:"organization_id" gorm:"column:org_id;not null;index"`
	RawBody           string         `json:"raw_body,omitempty" gorm:"type:text;not null"`
	ReportFingerprint string         `json:"report_fingerprint" gorm:"type:text;not null"`
	Status            Status         `json:"status" gorm:"type:text;not null"`
	ParsedShowCount   int            `json:"parsed_show_count" gorm:"not null;default:0"`
	MatchedCount      int            `json:"matched_count" gorm:"not null;default:0"`
	UnmatchedCount    int            `json:"unmatched_count" gorm:"not null;default:0"`
	NewMappingCount   int            `json:"new_mapping_count" gorm:"not null;default:0"`
	NotificationsSent int            `json:"notifications_sent" gorm:"not null;default:0"`
	DeliveryFailures  int            `json:"delivery_failures" gorm:"not null;default:0"`
	ParseErrors       datatypes.JSON `json:"parse_errors" gorm:"type:jsonb"`
	Summary           datatypes.JSON `json:"summary" gorm:"type:jsonb"`
	ErrorMessage      *string        `json:"error_message,omitempty" gorm:"type:text"`
	ReceivedAt        time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt       *time.Time     `json:"processed_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time      `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ReportRun) TableName() string { return "report_runs" }

// ReportEntry is one parsed show of a run together with its match and delivery outcome.
type ReportEntry struct {
	ID               snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID            snowflake.ID `json:"organization_id" gorm:"column:org_id;not null"`
	ReportRunID      snowflake.ID `json:"report_run_id" gorm:"not null;index"`
	IdentityHash     string       `json:"identity_hash" gorm:"type:text;not null"`
	RawName          string       `json:"raw_name" gorm:"type:text;not null"`
	CleanName        string       `json:"clean_name" gorm:"type:text;not null"`
	ShowDate         string       `json:"show_date" gorm:"type:text;not null"`
	ShowTime         *string      `json:"show_time" gorm:"type:text"`
	TicketsSold      int          `json:"tickets_sold" gorm:"not null;default:0"`
	FreeTickets      int          `json:"free_tickets" gorm:"not null;default:0"`
	Available        int          `json:"available" gorm:"not null;default:0"`
	Revenue          int64        `json:"revenue" gorm:"not null;default:0"`
	Matched          bool         `json:"matched" gorm:"not null;default:false"`
	Method           *string      `json:"method" gorm:"type:text"`
	Confidence       float64      `json:"confidence" gorm:"not null;default:0"`
	CanonicalShowID  *string      `json:"canonical_show_id" gorm:"type:text"`
	IsNewMatch       bool         `json:"is_new_match" gorm:"not null;default:false"`
	Reasoning        *string      `json:"reasoning,omitempty" gorm:"type:text"`
	DeliveryID       *string      `json:"delivery_id,omitempty" gorm:"type:text"`
	DeliveryStatus   string       `json:"delivery_status" gorm:"type:text;not null;default:'skipped'"`
	DeliveryAttempts int          `json:"delivery_attempts" gorm:"not null;default:0"`
	DeliveryError    *string      `json:"delivery_error,omitempty" gorm:"type:text"`
	CreatedAt        time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ReportEntry) TableName() string { return "report_entries" }

// EntryDelivery is the delivery outcome written back onto an entry.
type EntryDelivery struct {
	EntryID    snowflake.ID
	Status     string
	DeliveryID *string
	Attempts   int
	Error      *string
}
