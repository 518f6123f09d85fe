package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Directory is the read side used while resolving report entries.
type Directory interface {
	// ListByDateRange returns shows dated within [from, to], both ISO dates, inclusive.
	ListByDateRange(ctx context.Context, orgID snowflake.ID, from, to string) ([]CanonicalShow, error)
	// FindByID returns nil when the show no longer exists.
	FindByID(ctx context.Context, orgID snowflake.ID, id string) (*CanonicalShow, error)
}

type Service interface {
	Directory
	Upsert(ctx context.Context, orgID snowflake.ID, req UpsertRequest) (*CanonicalShow, error)
}

type UpsertRequest struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Date            string  `json:"date"`
	Time            *string `json:"time"`
	Venue           *string `json:"venue"`
	Capacity        *int    `json:"capacity"`
	ParentStopID    *string `json:"parent_stop_id"`
	ParentProjectID *string `json:"parent_project_id"`
	URL             string  `json:"url"`
	AppShowID       *string `json:"app_show_id"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_show_id")
	ErrInvalidName         = errors.New("invalid_show_name")
	ErrInvalidDate         = errors.New("invalid_show_date")
	ErrInvalidTime         = errors.New("invalid_show_time")
)
