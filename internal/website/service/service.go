package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clarity/internal/clock"
	userdomain "github.com/smallbiznis/clarity/internal/user/domain"
	"github.com/smallbiznis/clarity/internal/website/domain"
	"github.com/smallbiznis/clarity/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/text/currency"
	"gorm.io/gorm"
)

const maxNameLength = 100

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	UserSvc userdomain.Service
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	userSvc userdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("website.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		userSvc: p.UserSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateWebsiteRequest) (domain.Website, error) {
	owner, err := s.userSvc.Current(ctx)
	if err != nil {
		return domain.Website{}, err
	}

	siteURL, err := normalizeURL(req.URL)
	if err != nil {
		return domain.Website{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" || len([]rune(name)) > maxNameLength {
		return domain.Website{}, domain.ErrInvalidName
	}

	code, err := normalizeCurrency(req.Currency)
	if err != nil {
		return domain.Website{}, err
	}

	tz, err := normalizeTimezone(req.Timezone)
	if err != nil {
		return domain.Website{}, err
	}

	website := domain.Website{
		ID:        s.genID.Generate(),
		UserID:    owner.ID,
		URL:       siteURL,
		Name:      name,
		CreatedAt: s.clock.Now().UTC(),
		Currency:  code,
		Timezone:  tz,
	}
	if err := s.repo.Insert(ctx, s.db, &website); err != nil {
		return domain.Website{}, err
	}

	s.log.Info("website created",
		zap.String("website_id", website.ID.String()),
		zap.String("user_id", owner.ID.String()),
	)
	return website, nil
}

func (s *Service) List(ctx context.Context, req domain.ListWebsiteRequest) (domain.ListWebsiteResponse, error) {
	owner, err := s.userSvc.Current(ctx)
	if err != nil {
		return domain.ListWebsiteResponse{}, err
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}.Normalize()
	items, err := s.repo.List(ctx, s.db, owner.ID, page)
	if err != nil {
		return domain.ListWebsiteResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, page.PageSize, func(w *domain.Website) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        w.ID.String(),
			CreatedAt: w.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})

	websites := make([]domain.Website, 0, len(items))
	for _, item := range items {
		websites = append(websites, *item)
	}

	return domain.ListWebsiteResponse{PageInfo: pageInfo, Websites: websites}, nil
}

func (s *Service) Get(ctx context.Context, rawID string) (domain.Website, error) {
	owner, err := s.userSvc.Current(ctx)
	if err != nil {
		return domain.Website{}, err
	}

	id, err := parseID(rawID)
	if err != nil {
		return domain.Website{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, owner.ID, id)
	if err != nil {
		return domain.Website{}, err
	}
	if item == nil {
		return domain.Website{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) Delete(ctx context.Context, rawID string) error {
	owner, err := s.userSvc.Current(ctx)
	if err != nil {
		return err
	}

	id, err := parseID(rawID)
	if err != nil {
		return err
	}

	affected, err := s.repo.Delete(ctx, s.db, owner.ID, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	s.log.Info("website deleted", zap.String("website_id", id.String()))
	return nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	parsed, err := url.ParseRequestURI(raw)
	if err != nil {
		return "", domain.ErrInvalidURL
	}
	scheme := strings.ToLower(parsed.Scheme)
	if (scheme != "http" && scheme != "https") || parsed.Host == "" {
		return "", domain.ErrInvalidURL
	}
	return raw, nil
}

func normalizeCurrency(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.DefaultCurrency, nil
	}
	unit, err := currency.ParseISO(raw)
	if err != nil {
		return "", domain.ErrInvalidCurrency
	}
	return unit.String(), nil
}

func normalizeTimezone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.DefaultTimezone, nil
	}
	if strings.EqualFold(raw, "local") {
		return "", domain.ErrInvalidTimezone
	}
	loc, err := time.LoadLocation(raw)
	if err != nil {
		return "", domain.ErrInvalidTimezone
	}
	return loc.String(), nil
}
