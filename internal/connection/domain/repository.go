package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clarity/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, conn *Connection) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Connection, error)
	ListByWebsite(ctx context.Context, db *gorm.DB, websiteID snowflake.ID, page pagination.Pagination) ([]*Connection, error)
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) (int64, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
}
