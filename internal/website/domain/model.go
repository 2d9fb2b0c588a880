package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	DefaultCurrency = "USD"
	DefaultTimezone = "UTC"
)

// Website is one tracked store. Currency and Timezone drive revenue reporting.
type Website struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID `gorm:"not null;index" json:"user_id"`
	URL       string       `gorm:"column:url;not null" json:"url"`
	Name      string       `gorm:"not null" json:"name"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	Currency  string       `gorm:"not null;default:USD" json:"currency"`
	Timezone  string       `gorm:"not null;default:UTC" json:"timezone"`
}

func (Website) TableName() string { return "websites" }
