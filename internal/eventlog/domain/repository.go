package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clarity/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status    ProcessingStatus
	EventName string
}

type Repository interface {
	// Insert writes the event unless (website_id, event_id) already exists,
	// in which case it returns ErrDuplicateEvent and writes nothing.
	Insert(ctx context.Context, db *gorm.DB, event *EventLog) error
	FindByKey(ctx context.Context, db *gorm.DB, websiteID snowflake.ID, eventID string) (*EventLog, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*EventLog, error)
	List(ctx context.Context, db *gorm.DB, websiteID snowflake.ID, filter ListFilter, page pagination.Pagination) ([]*EventLog, error)
	// ListPendingBetween returns pending events received in (after, before]
	// that were never relayed or last relayed no later than before. Events
	// never relayed come first, then the least recently relayed.
	ListPendingBetween(ctx context.Context, db *gorm.DB, after, before time.Time, limit int) ([]*EventLog, error)
	MarkRelayed(ctx context.Context, db *gorm.DB, ids []snowflake.ID, at time.Time) error
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to ProcessingStatus, platformResponse datatypes.JSON, matchQualityScore *string) (int64, error)
}
