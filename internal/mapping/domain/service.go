package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Cache is the contract the matcher resolves through.
type Cache interface {
	Lookup(ctx context.Context, orgID snowflake.ID, hash string) (*ShowMapping, error)
	Upsert(ctx context.Context, req UpsertRequest) (*ShowMapping, error)
	TouchLastSeen(ctx context.Context, mappingID snowflake.ID) error
}

type Service interface {
	Cache
	List(ctx context.Context, orgID snowflake.ID, req ListRequest) (*ListResponse, error)
	Confirm(ctx context.Context, orgID, mappingID snowflake.ID, req ConfirmRequest) (*ShowMapping, error)
	Delete(ctx context.Context, orgID, mappingID snowflake.ID) error
}

type UpsertRequest struct {
	OrgID           snowflake.ID
	IdentityHash    string
	CanonicalShowID string
	Method          string
	Confidence      float64
	Confirmed       bool
	Reasoning       *string
	CleanName       string
	ShowDate        string
	ShowTime        *string
	// AllowRepoint lets the write replace the canonical show of a confirmed mapping.
	AllowRepoint bool
}

type ListFilter struct {
	Confirmed *bool
	Method    string
}

type ListRequest struct {
	ListFilter
	PageToken string
	PageSize  int
}

type ListResponse struct {
	Mappings      []ShowMapping `json:"mappings"`
	NextPageToken string        `json:"next_page_token,omitempty"`
	HasMore       bool          `json:"has_more"`
}

type ConfirmRequest struct {
	// CanonicalShowID optionally repoints the mapping while confirming it.
	CanonicalShowID string `json:"canonical_show_id"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidHash         = errors.New("invalid_identity_hash")
	ErrInvalidCanonicalID  = errors.New("invalid_canonical_show_id")
	ErrInvalidMethod       = errors.New("invalid_method")
	ErrInvalidConfidence   = errors.New("invalid_confidence")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("mapping_not_found")
)
