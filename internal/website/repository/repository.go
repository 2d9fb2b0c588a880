package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clarity/internal/website/domain"
	"github.com/smallbiznis/clarity/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, website *domain.Website) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO websites (id, user_id, url, name, created_at, currency, timezone)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		website.ID,
		website.UserID,
		website.URL,
		website.Name,
		website.CreatedAt,
		website.Currency,
		website.Timezone,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*domain.Website, error) {
	var website domain.Website
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, url, name, created_at, currency, timezone
		 FROM websites WHERE user_id = ? AND id = ?`,
		userID,
		id,
	).Scan(&website).Error
	if err != nil {
		return nil, err
	}
	if website.ID == 0 {
		return nil, nil
	}
	return &website, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, userID snowflake.ID, page pagination.Pagination) ([]*domain.Website, error) {
	stmt, err := pagination.Apply(
		db.WithContext(ctx).Model(&domain.Website{}).Where("user_id = ?", userID),
		page,
	)
	if err != nil {
		return nil, err
	}

	var websites []*domain.Website
	if err := stmt.Find(&websites).Error; err != nil {
		return nil, err
	}
	return websites, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM websites WHERE user_id = ? AND id = ?`, userID, id)
	return res.RowsAffected, res.Error
}
