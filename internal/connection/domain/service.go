package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clarity/pkg/db/pagination"
	"gorm.io/datatypes"
)

type CreateConnectionRequest struct {
	WebsiteID   string         `json:"-"`
	Platform    string         `json:"platform"`
	Type        string         `json:"type"`
	Config      map[string]any `json:"config"`
	AccessToken string         `json:"access_token"`
}

type ListConnectionRequest struct {
	WebsiteID string
	PageToken string
	PageSize  int
}

// ConnectionResponse never carries the access token, only whether one is set.
type ConnectionResponse struct {
	ID             string         `json:"id"`
	WebsiteID      string         `json:"website_id"`
	Platform       string         `json:"platform"`
	Type           Type           `json:"type"`
	Config         datatypes.JSON `json:"config"`
	HasAccessToken bool           `json:"has_access_token"`
	IsActive       bool           `json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
}

type ListConnectionResponse struct {
	pagination.PageInfo
	Connections []ConnectionResponse `json:"connections"`
}

// Service manages connections of websites owned by the signed-in user.
// AccessToken is for in-process forwarders and performs no owner check.
type Service interface {
	Create(context.Context, CreateConnectionRequest) (ConnectionResponse, error)
	List(context.Context, ListConnectionRequest) (ListConnectionResponse, error)
	Get(context.Context, string) (ConnectionResponse, error)
	Activate(context.Context, string) (ConnectionResponse, error)
	Deactivate(context.Context, string) (ConnectionResponse, error)
	Delete(context.Context, string) error
	AccessToken(context.Context, snowflake.ID) (string, error)
}

var (
	ErrInvalidID            = errors.New("invalid_connection_id")
	ErrInvalidPlatform      = errors.New("invalid_platform")
	ErrPlatformDisabled     = errors.New("platform_disabled")
	ErrInvalidType          = errors.New("invalid_connection_type")
	ErrDirectionNotAllowed  = errors.New("direction_not_allowed")
	ErrInvalidConfig        = errors.New("invalid_config")
	ErrEncryptionKeyMissing = errors.New("encryption_key_missing")
	ErrNoAccessToken        = errors.New("no_access_token")
	ErrNotFound             = errors.New("connection_not_found")
)

// ConfigFieldError points at the config key that failed its platform schema.
type ConfigFieldError struct {
	Field string
	Code  string
}

func (e *ConfigFieldError) Error() string {
	return fmt.Sprintf("invalid_config: %s %s", e.Field, e.Code)
}

func (e *ConfigFieldError) Unwrap() error { return ErrInvalidConfig }

func NewConfigFieldError(field, code string) error {
	return &ConfigFieldError{Field: field, Code: code}
}
