package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clarity/internal/clock"
	"github.com/smallbiznis/clarity/internal/config"
	"github.com/smallbiznis/clarity/internal/connection/domain"
	"github.com/smallbiznis/clarity/internal/connection/platform"
	"github.com/smallbiznis/clarity/internal/observability/metrics"
	websitedomain "github.com/smallbiznis/clarity/internal/website/domain"
	"github.com/smallbiznis/clarity/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	Repo       domain.Repository
	Platforms  *platform.Registry
	Catalog    *config.PlatformCatalogHolder
	WebsiteSvc websitedomain.Service
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	platforms  *platform.Registry
	catalog    *config.PlatformCatalogHolder
	websiteSvc websitedomain.Service
	metrics    *metrics.Metrics
	sealer     tokenSealer
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("connection.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		platforms:  p.Platforms,
		catalog:    p.Catalog,
		websiteSvc: p.WebsiteSvc,
		metrics:    p.Metrics,
		sealer:     newTokenSealer(p.Cfg.ConnectionSecret),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateConnectionRequest) (domain.ConnectionResponse, error) {
	website, err := s.websiteSvc.Get(ctx, req.WebsiteID)
	if err != nil {
		return domain.ConnectionResponse{}, err
	}

	key := strings.ToLower(strings.TrimSpace(req.Platform))
	if key == "" || !s.platforms.Exists(key) {
		return domain.ConnectionResponse{}, domain.ErrInvalidPlatform
	}
	connType := domain.Type(strings.ToLower(strings.TrimSpace(req.Type)))
	if !connType.Valid() {
		return domain.ConnectionResponse{}, domain.ErrInvalidType
	}

	catalog := s.catalog.Get()
	if !catalog.Enabled(key) {
		return domain.ConnectionResponse{}, domain.ErrPlatformDisabled
	}
	if !catalog.Allows(key, string(connType)) {
		return domain.ConnectionResponse{}, domain.ErrDirectionNotAllowed
	}

	normalized, err := s.platforms.Normalize(key, req.Config)
	if err != nil {
		return domain.ConnectionResponse{}, err
	}
	document, err := json.Marshal(normalized)
	if err != nil {
		return domain.ConnectionResponse{}, domain.ErrInvalidConfig
	}

	var sealed *string
	if token := strings.TrimSpace(req.AccessToken); token != "" {
		value, err := s.sealer.seal(token)
		if err != nil {
			return domain.ConnectionResponse{}, err
		}
		sealed = &value
	}

	conn := domain.Connection{
		ID:                   s.genID.Generate(),
		WebsiteID:            website.ID,
		Platform:             key,
		Type:                 connType,
		Config:               datatypes.JSON(document),
		EncryptedAccessToken: sealed,
		IsActive:             true,
		CreatedAt:            s.clock.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, s.db, &conn); err != nil {
		return domain.ConnectionResponse{}, err
	}

	s.metrics.RecordConnectionChange(ctx, key, "create")
	s.log.Info("connection created",
		zap.String("connection_id", conn.ID.String()),
		zap.String("website_id", website.ID.String()),
		zap.String("platform", key),
		zap.String("type", string(connType)),
	)
	return toResponse(conn), nil
}

func (s *Service) List(ctx context.Context, req domain.ListConnectionRequest) (domain.ListConnectionResponse, error) {
	website, err := s.websiteSvc.Get(ctx, req.WebsiteID)
	if err != nil {
		return domain.ListConnectionResponse{}, err
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}.Normalize()
	items, err := s.repo.ListByWebsite(ctx, s.db, website.ID, page)
	if err != nil {
		return domain.ListConnectionResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, page.PageSize, func(c *domain.Connection) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        c.ID.String(),
			CreatedAt: c.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})

	resp := domain.ListConnectionResponse{
		PageInfo:    pageInfo,
		Connections: make([]domain.ConnectionResponse, 0, len(items)),
	}
	for _, item := range items {
		resp.Connections = append(resp.Connections, toResponse(*item))
	}
	return resp, nil
}

func (s *Service) Get(ctx context.Context, rawID string) (domain.ConnectionResponse, error) {
	conn, err := s.owned(ctx, rawID)
	if err != nil {
		return domain.ConnectionResponse{}, err
	}
	return toResponse(conn), nil
}

func (s *Service) Activate(ctx context.Context, rawID string) (domain.ConnectionResponse, error) {
	return s.setActive(ctx, rawID, true)
}

func (s *Service) Deactivate(ctx context.Context, rawID string) (domain.ConnectionResponse, error) {
	return s.setActive(ctx, rawID, false)
}

func (s *Service) Delete(ctx context.Context, rawID string) error {
	conn, err := s.owned(ctx, rawID)
	if err != nil {
		return err
	}

	affected, err := s.repo.Delete(ctx, s.db, conn.ID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	s.metrics.RecordConnectionChange(ctx, conn.Platform, "delete")
	s.log.Info("connection deleted", zap.String("connection_id", conn.ID.String()))
	return nil
}

func (s *Service) AccessToken(ctx context.Context, id snowflake.ID) (string, error) {
	conn, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return "", err
	}
	if conn == nil {
		return "", domain.ErrNotFound
	}
	if !conn.HasAccessToken() {
		return "", domain.ErrNoAccessToken
	}

	token, err := s.sealer.open(*conn.EncryptedAccessToken)
	if err != nil {
		s.log.Error("access token could not be opened",
			zap.String("connection_id", conn.ID.String()),
			zap.Error(err),
		)
		return "", err
	}
	return token, nil
}

func (s *Service) setActive(ctx context.Context, rawID string, active bool) (domain.ConnectionResponse, error) {
	conn, err := s.owned(ctx, rawID)
	if err != nil {
		return domain.ConnectionResponse{}, err
	}
	if conn.IsActive == active {
		return toResponse(conn), nil
	}

	affected, err := s.repo.SetActive(ctx, s.db, conn.ID, active)
	if err != nil {
		return domain.ConnectionResponse{}, err
	}
	if affected == 0 {
		return domain.ConnectionResponse{}, domain.ErrNotFound
	}
	conn.IsActive = active

	action := "deactivate"
	if active {
		action = "activate"
	}
	s.metrics.RecordConnectionChange(ctx, conn.Platform, action)
	s.log.Info("connection "+action+"d", zap.String("connection_id", conn.ID.String()))
	return toResponse(conn), nil
}

// owned loads the connection and checks that its website belongs to the
// signed-in user. Connections of other users read as not found.
func (s *Service) owned(ctx context.Context, rawID string) (domain.Connection, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id <= 0 {
		return domain.Connection{}, domain.ErrInvalidID
	}

	conn, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Connection{}, err
	}
	if conn == nil {
		return domain.Connection{}, domain.ErrNotFound
	}

	if _, err := s.websiteSvc.Get(ctx, conn.WebsiteID.String()); err != nil {
		if errors.Is(err, websitedomain.ErrNotFound) {
			return domain.Connection{}, domain.ErrNotFound
		}
		return domain.Connection{}, err
	}
	return *conn, nil
}

func toResponse(conn domain.Connection) domain.ConnectionResponse {
	return domain.ConnectionResponse{
		ID:             conn.ID.String(),
		WebsiteID:      conn.WebsiteID.String(),
		Platform:       conn.Platform,
		Type:           conn.Type,
		Config:         conn.Config,
		HasAccessToken: conn.HasAccessToken(),
		IsActive:       conn.IsActive,
		CreatedAt:      conn.CreatedAt,
	}
}
