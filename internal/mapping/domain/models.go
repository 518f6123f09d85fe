package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ShowMapping is the cached resolution of one identity hash to a canonical show.
type ShowMapping struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID           snowflake.ID `json:"organization_id" gorm:"column:org_id;not null"`
	IdentityHash    string       `json:"identity_hash" gorm:"column:identity_hash;type:text;not null"`
	CanonicalShowID string       `json:"canonical_show_id" gorm:"column:canonical_show_id;type:text;not null"`
	Method          string       `json:"method" gorm:"type:text;not null"`
	Confidence      float64      `json:"confidence" gorm:"not null"`
	Confirmed       bool         `json:"confirmed" gorm:"not null;default:false"`
	Reasoning       *string      `json:"reasoning,omitempty" gorm:"type:text"`
	CleanName       string       `json:"clean_name" gorm:"column:clean_name;type:text"`
	ShowDate        *string      `json:"show_date" gorm:"column:show_date;type:text"`
	ShowTime        *string      `json:"show_time" gorm:"column:show_time;type:text"`
	MatchedAt       time.Time    `json:"matched_at" gorm:"not null"`
	LastSeenAt      time.Time    `json:"last_seen_at" gorm:"not null"`
	CreatedAt       time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ShowMapping) TableName() string { return "show_mappings" }

// Methods a mapping can be created with.
const (
	MethodExact = "exact"
	MethodFuzzy = "fuzzy"
	MethodAI    = "ai"
)

// ConfirmThreshold is the minimum exact-match confidence that auto-confirms a mapping.
const ConfirmThreshold = 0.95
