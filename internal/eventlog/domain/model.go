package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusFailed     ProcessingStatus = "failed"
	// StatusDuplicate exists in the storage enum. Ingest never writes it:
	// duplicates are rejected and the original row is left alone.
	StatusDuplicate ProcessingStatus = "duplicate"
)

func (s ProcessingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusFailed, StatusDuplicate:
		return true
	}
	return false
}

// EventLog is one conversion event. (WebsiteID, EventID) is unique.
// ReceivedAt is assigned by the server and EventTime by the caller; the two
// are never derived from each other.
type EventLog struct {
	ID                snowflake.ID     `gorm:"primaryKey" json:"id"`
	WebsiteID         snowflake.ID     `gorm:"not null;uniqueIndex:unique_event_id_per_site,priority:1" json:"website_id"`
	EventID           string           `gorm:"type:text;not null;uniqueIndex:unique_event_id_per_site,priority:2" json:"event_id"`
	EventName         string           `gorm:"type:text;not null" json:"event_name"`
	EventSourceURL    *string          `gorm:"type:text" json:"event_source_url,omitempty"`
	UserIPAddress     *string          `gorm:"column:user_ip_address;type:text" json:"user_ip_address,omitempty"`
	UserAgent         *string          `gorm:"type:text" json:"user_agent,omitempty"`
	Fbp               *string          `gorm:"type:text" json:"fbp,omitempty"`
	Fbc               *string          `gorm:"type:text" json:"fbc,omitempty"`
	HashedEmail       *string          `gorm:"type:text" json:"hashed_email,omitempty"`
	HashedPhone       *string          `gorm:"type:text" json:"hashed_phone,omitempty"`
	Value             *string          `gorm:"type:text" json:"value,omitempty"`
	Currency          *string          `gorm:"type:text" json:"currency,omitempty"`
	Status            ProcessingStatus `gorm:"type:processing_status;not null;default:pending" json:"status"`
	PlatformResponse  datatypes.JSON   `gorm:"type:jsonb" json:"platform_response,omitempty"`
	OriginalPayload   datatypes.JSON   `gorm:"type:jsonb" json:"original_payload,omitempty"`
	MatchQualityScore *string          `gorm:"type:text" json:"match_quality_score,omitempty"`
	ReceivedAt        time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"received_at"`
	EventTime         time.Time        `gorm:"not null" json:"event_time"`
}

func (EventLog) TableName() string { return "event_logs" }
