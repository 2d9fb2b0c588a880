package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/clarity/pkg/db/pagination"
)

type CreateWebsiteRequest struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Timezone string `json:"timezone"`
}

type ListWebsiteRequest struct {
	PageToken string
	PageSize  int
}

type ListWebsiteResponse struct {
	pagination.PageInfo
	Websites []Website `json:"websites"`
}

// Service scopes every call to the signed-in user.
type Service interface {
	Create(context.Context, CreateWebsiteRequest) (Website, error)
	List(context.Context, ListWebsiteRequest) (ListWebsiteResponse, error)
	Get(context.Context, string) (Website, error)
	Delete(context.Context, string) error
}

var (
	ErrInvalidURL      = errors.New("invalid_url")
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidCurrency = errors.New("invalid_currency")
	ErrInvalidTimezone = errors.New("invalid_timezone")
	ErrInvalidID       = errors.New("invalid_id")
	ErrNotFound        = errors.New("website_not_found")
)
