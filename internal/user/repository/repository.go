package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clarity/internal/user/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const userColumns = `id, clerk_id, email, name, registered_at, is_onboarded`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO users (id, clerk_id, email, name, registered_at, is_onboarded)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.ClerkID,
		user.Email,
		user.Name,
		user.RegisteredAt,
		user.IsOnboarded,
	).Error
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, user *domain.User) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO users (id, clerk_id, email, name, registered_at, is_onboarded)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (clerk_id) DO NOTHING`,
		user.ID,
		user.ClerkID,
		user.Email,
		user.Name,
		user.RegisteredAt,
		user.IsOnboarded,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT `+userColumns+` FROM users WHERE id = ?`,
		id,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) FindByClerkID(ctx context.Context, db *gorm.DB, clerkID string) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT `+userColumns+` FROM users WHERE clerk_id = ?`,
		clerkID,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) MarkOnboarded(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users SET is_onboarded = ? WHERE id = ?`,
		true,
		id,
	).Error
}

// Delete removes the user; websites, connections and event logs follow
// through ON DELETE CASCADE.
func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM users WHERE id = ?`, id)
	return res.RowsAffected, res.Error
}
