package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	// InsertIfAbsent reports false when a user with the same clerk id exists.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, user *User) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByClerkID(ctx context.Context, db *gorm.DB, clerkID string) (*User, error)
	MarkOnboarded(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
}
