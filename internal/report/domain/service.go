package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Process(ctx context.Context, req ProcessRequest) (*ProcessSummary, error)
	List(ctx context.Context, orgID snowflake.ID, req ListRequest) (*ListResponse, error)
	Get(ctx context.Context, orgID, id snowflake.ID) (*ReportDetail, error)
}

// Locker guards a report against concurrent duplicate processing.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type ProcessRequest struct {
	OrgID snowflake.ID
	Body  string
}

// ShowOutcome is the per-show line of a processing summary.
type ShowOutcome struct {
	EntryID         string  `json:"entry_id"`
	IdentityHash    string  `json:"identity_hash"`
	CleanName       string  `json:"clean_name"`
	Date            string  `json:"date"`
	Time            *string `json:"time"`
	Matched         bool    `json:"matched"`
	Method          string  `json:"method,omitempty"`
	Confidence      float64 `json:"confidence"`
	CanonicalShowID string  `json:"canonical_show_id,omitempty"`
	IsNewMatch      bool    `json:"is_new_match"`
	DeliveryStatus  string  `json:"delivery_status"`
}

// ProcessSummary is what a caller gets back after a report run.
type ProcessSummary struct {
	ReportID          string        `json:"report_id"`
	Status            Status        `json:"status"`
	ParsedShowCount   int           `json:"parsed_show_count"`
	MatchedCount      int           `json:"matched_count"`
	UnmatchedCount    int           `json:"unmatched_count"`
	NewMappingCount   int           `json:"new_mapping_count"`
	NotificationsSent int           `json:"notifications_sent"`
	DeliveryFailures  int           `json:"delivery_failures"`
	ParseErrors       []string      `json:"parse_errors"`
	Summary           *Summary      `json:"summary"`
	ErrorMessage      string        `json:"error_message,omitempty"`
	Shows             []ShowOutcome `json:"shows"`
}

type ListRequest struct {
	Status    Status
	PageToken string
	PageSize  int
}

type ListResponse struct {
	Reports       []ReportRun `json:"reports"`
	NextPageToken string      `json:"next_page_token,omitempty"`
	HasMore       bool        `json:"has_more"`
}

type ReportDetail struct {
	ReportRun
	Entries []ReportEntry `json:"entries"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrNotFound            = errors.New("report_not_found")
	ErrReportInProgress    = errors.New("report_in_progress")
)
