package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clarity/internal/connection/domain"
	"github.com/smallbiznis/clarity/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, conn *domain.Connection) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO connections (id, website_id, platform, type, config, encrypted_access_token, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		conn.ID,
		conn.WebsiteID,
		conn.Platform,
		string(conn.Type),
		conn.Config,
		conn.EncryptedAccessToken,
		conn.IsActive,
		conn.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Connection, error) {
	var conn domain.Connection
	err := db.WithContext(ctx).Raw(
		`SELECT id, website_id, platform, type, config, encrypted_access_token, is_active, created_at
		 FROM connections WHERE id = ?`,
		id,
	).Scan(&conn).Error
	if err != nil {
		return nil, err
	}
	if conn.ID == 0 {
		return nil, nil
	}
	return &conn, nil
}

func (r *repo) ListByWebsite(ctx context.Context, db *gorm.DB, websiteID snowflake.ID, page pagination.Pagination) ([]*domain.Connection, error) {
	stmt, err := pagination.Apply(
		db.WithContext(ctx).Model(&domain.Connection{}).Where("website_id = ?", websiteID),
		page,
	)
	if err != nil {
		return nil, err
	}

	var items []*domain.Connection
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) (int64, error) {
	res := db.WithContext(ctx).Exec(`UPDATE connections SET is_active = ? WHERE id = ?`, active, id)
	return res.RowsAffected, res.Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM connections WHERE id = ?`, id)
	return res.RowsAffected, res.Error
}
