package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Type string

const (
	TypeSource      Type = "source"
	TypeDestination Type = "destination"
)

func (t Type) Valid() bool {
	return t == TypeSource || t == TypeDestination
}

// Connection links a website to an external platform. Config is validated
// against the platform schema before it is stored and is opaque afterwards.
type Connection struct {
	ID                   snowflake.ID   `gorm:"primaryKey" json:"id"`
	WebsiteID            snowflake.ID   `gorm:"not null;index:website_id_idx" json:"website_id"`
	Platform             string         `gorm:"type:text;not null" json:"platform"`
	Type                 Type           `gorm:"type:connection_type;not null" json:"type"`
	Config               datatypes.JSON `gorm:"type:jsonb;not null" json:"config"`
	EncryptedAccessToken *string        `gorm:"type:text" json:"-"`
	IsActive             bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt            time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Connection) TableName() string { return "connections" }

func (c Connection) HasAccessToken() bool {
	return c.EncryptedAccessToken != nil && *c.EncryptedAccessToken != ""
}
