package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clarity/internal/eventlog/domain"
	"github.com/smallbiznis/clarity/pkg/db"
	"github.com/smallbiznis/clarity/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// JSON documents are read as text so NULL comes back empty instead of
// failing the scan.
const selectColumns = `id, website_id, event_id, event_name, event_source_url, user_ip_address,
	user_agent, fbp, fbc, hashed_email, hashed_phone, value, currency, status,
	COALESCE(CAST(platform_response AS TEXT), '') AS platform_response,
	COALESCE(CAST(original_payload AS TEXT), '') AS original_payload,
	match_quality_score, received_at, event_time`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, tx *gorm.DB, event *domain.EventLog) error {
	res := tx.WithContext(ctx).Exec(
		`INSERT INTO event_logs (
			id, website_id, event_id, event_name, event_source_url, user_ip_address, user_agent,
			fbp, fbc, hashed_email, hashed_phone, value, currency, status, original_payload,
			received_at, event_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (website_id, event_id) DO NOTHING`,
		event.ID,
		event.WebsiteID,
		event.EventID,
		event.EventName,
		event.EventSourceURL,
		event.UserIPAddress,
		event.UserAgent,
		event.Fbp,
		event.Fbc,
		event.HashedEmail,
		event.HashedPhone,
		event.Value,
		event.Currency,
		string(event.Status),
		event.OriginalPayload,
		event.ReceivedAt,
		event.EventTime,
	)
	if res.Error != nil {
		if db.IsDuplicateKeyErr(res.Error) {
			return domain.ErrDuplicateEvent
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrDuplicateEvent
	}
	return nil
}

func (r *repo) FindByKey(ctx context.Context, tx *gorm.DB, websiteID snowflake.ID, eventID string) (*domain.EventLog, error) {
	return r.findOne(ctx, tx, "website_id = ? AND event_id = ?", websiteID, eventID)
}

func (r *repo) FindByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.EventLog, error) {
	return r.findOne(ctx, tx, "id = ?", id)
}

func (r *repo) findOne(ctx context.Context, tx *gorm.DB, where string, args ...any) (*domain.EventLog, error) {
	var event domain.EventLog
	err := tx.WithContext(ctx).Raw(`SELECT `+selectColumns+` FROM event_logs WHERE `+where, args...).
		Scan(&event).Error
	if err != nil {
		return nil, err
	}
	if event.ID == 0 {
		return nil, nil
	}
	clearEmptyDocuments(&event)
	return &event, nil
}

func (r *repo) List(ctx context.Context, tx *gorm.DB, websiteID snowflake.ID, filter domain.ListFilter, page pagination.Pagination) ([]*domain.EventLog, error) {
	stmt := tx.WithContext(ctx).
		Table("event_logs").
		Select(selectColumns).
		Where("website_id = ?", websiteID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", string(filter.Status))
	}
	if filter.EventName != "" {
		stmt = stmt.Where("event_name = ?", filter.EventName)
	}

	stmt, err := pagination.Apply(stmt, page)
	if err != nil {
		return nil, err
	}

	var events []*domain.EventLog
	if err := stmt.Scan(&events).Error; err != nil {
		return nil, err
	}
	for _, event := range events {
		clearEmptyDocuments(event)
	}
	return events, nil
}

func (r *repo) ListPendingBetween(ctx context.Context, tx *gorm.DB, after, before time.Time, limit int) ([]*domain.EventLog, error) {
	var events []*domain.EventLog
	err := tx.WithContext(ctx).
		Table("event_logs").
		Select(selectColumns).
		Where("status = ? AND received_at > ? AND received_at <= ?", string(domain.StatusPending), after, before).
		Where("(relayed_at IS NULL OR relayed_at <= ?)", before).
		Order("relayed_at IS NOT NULL, relayed_at, id").
		Limit(limit).
		Scan(&events).Error
	if err != nil {
		return nil, err
	}
	for _, event := range events {
		clearEmptyDocuments(event)
	}
	return events, nil
}

func (r *repo) MarkRelayed(ctx context.Context, tx *gorm.DB, ids []snowflake.ID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return tx.WithContext(ctx).
		Exec(`UPDATE event_logs SET relayed_at = ? WHERE id IN ?`, at, ids).Error
}

func (r *repo) UpdateStatus(ctx context.Context, tx *gorm.DB, id snowflake.ID, from, to domain.ProcessingStatus, platformResponse datatypes.JSON, matchQualityScore *string) (int64, error) {
	res := tx.WithContext(ctx).Exec(
		`UPDATE event_logs
		 SET status = ?,
		     platform_response = COALESCE(?, platform_response),
		     match_quality_score = COALESCE(?, match_quality_score)
		 WHERE id = ? AND status = ?`,
		string(to),
		platformResponse,
		matchQualityScore,
		id,
		string(from),
	)
	return res.RowsAffected, res.Error
}

func clearEmptyDocuments(event *domain.EventLog) {
	if len(event.PlatformResponse) == 0 {
		event.PlatformResponse = nil
	}
	if len(event.OriginalPayload) == 0 {
		event.OriginalPayload = nil
	}
}
