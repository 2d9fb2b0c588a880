package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User mirrors an identity provider account. ClerkID is the join key with the
// provider; every owned resource references ID instead.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	ClerkID      string       `gorm:"column:clerk_id;not null;uniqueIndex" json:"clerk_id"`
	Email        string       `gorm:"not null" json:"email"`
	Name         *string      `json:"name,omitempty"`
	RegisteredAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"registered_at"`
	IsOnboarded  bool         `gorm:"not null;default:false" json:"is_onboarded"`
}

func (User) TableName() string { return "users" }
