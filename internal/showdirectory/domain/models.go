package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// CanonicalShow is the authoritative show record that report entries are matched against.
type CanonicalShow struct {
	ID              string       `json:"id" gorm:"primaryKey;type:text"`
	OrgID           snowflake.ID `json:"organization_id" gorm:"column:org_id;primaryKey"`
	Name            string       `json:"name" gorm:"type:text;not null"`
	Date            string       `json:"date" gorm:"column:show_date;type:text;not null;index"`
	Time            *string      `json:"time" gorm:"column:show_time;type:text"`
	Venue           *string      `json:"venue" gorm:"type:text"`
	Capacity        *int         `json:"capacity"`
	ParentStopID    *string      `json:"parent_stop_id" gorm:"column:parent_stop_id;type:text"`
	ParentProjectID *string      `json:"parent_project_id" gorm:"column:parent_project_id;type:text"`
	URL             string       `json:"url" gorm:"column:url;type:text"`
	AppShowID       *string      `json:"app_show_id" gorm:"column:app_show_id;type:text"`
	CreatedAt       time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CanonicalShow) TableName() string { return "canonical_shows" }
