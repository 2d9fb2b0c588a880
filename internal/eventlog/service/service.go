package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clarity/internal/clock"
	"github.com/smallbiznis/clarity/internal/eventlog/domain"
	"github.com/smallbiznis/clarity/internal/events"
	"github.com/smallbiznis/clarity/internal/observability/metrics"
	websitedomain "github.com/smallbiznis/clarity/internal/website/domain"
	"github.com/smallbiznis/clarity/pkg/db"
	"github.com/smallbiznis/clarity/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const publishTimeout = 2 * time.Second

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	WebsiteSvc websitedomain.Service
	Publisher  events.Publisher `optional:"true"`
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	websiteSvc websitedomain.Service
	publisher  events.Publisher
	metrics    *metrics.Metrics
}

func New(p Params) domain.Service {
	publisher := p.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("eventlog.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		websiteSvc: p.WebsiteSvc,
		publisher:  publisher,
		metrics:    p.Metrics,
	}
}

// AcceptedEvent is published for every first occurrence of an event.
type AcceptedEvent struct {
	ID         string    `json:"id"`
	WebsiteID  string    `json:"website_id"`
	EventID    string    `json:"event_id"`
	EventName  string    `json:"event_name"`
	EventTime  time.Time `json:"event_time"`
	ReceivedAt time.Time `json:"received_at"`
}

func (s *Service) Ingest(ctx context.Context, req domain.IngestRequest) (domain.IngestResult, error) {
	event, err := s.newEvent(req)
	if err != nil {
		return domain.IngestResult{}, err
	}

	log := s.log.With(
		zap.String("website_id", event.WebsiteID.String()),
		zap.String("event_id", event.EventID),
		zap.String("event_name", event.EventName),
	)

	err = s.repo.Insert(ctx, s.db, &event)
	switch {
	case err == nil:
		s.metrics.RecordEventIngest(ctx, string(domain.OutcomeAccepted))
		log.Debug("event accepted", zap.String("event_log_id", event.ID.String()))
		s.publishAccepted(ctx, log, event)
		return domain.IngestResult{Event: event, Outcome: domain.OutcomeAccepted}, nil

	case errors.Is(err, domain.ErrDuplicateEvent):
		original, findErr := s.repo.FindByKey(ctx, s.db, event.WebsiteID, event.EventID)
		if findErr != nil {
			s.metrics.RecordEventIngest(ctx, "failed")
			return domain.IngestResult{}, fmt.Errorf("load duplicate event: %w", findErr)
		}
		if original == nil {
			s.metrics.RecordEventIngest(ctx, "failed")
			return domain.IngestResult{}, domain.ErrDuplicateEvent
		}
		s.metrics.RecordEventIngest(ctx, string(domain.OutcomeDuplicate))
		log.Info("duplicate event ignored", zap.String("event_log_id", original.ID.String()))
		return domain.IngestResult{Event: *original, Outcome: domain.OutcomeDuplicate}, nil

	case db.IsForeignKeyErr(err):
		s.metrics.RecordEventIngest(ctx, "failed")
		return domain.IngestResult{}, domain.ErrUnknownWebsite

	default:
		s.metrics.RecordEventIngest(ctx, "failed")
		log.Error("event ingest failed", zap.Error(err))
		return domain.IngestResult{}, fmt.Errorf("ingest event: %w", err)
	}
}

func (s *Service) List(ctx context.Context, req domain.ListEventRequest) (domain.ListEventResponse, error) {
	website, err := s.websiteSvc.Get(ctx, req.WebsiteID)
	if err != nil {
		return domain.ListEventResponse{}, err
	}

	filter := domain.ListFilter{
		Status:    domain.ProcessingStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		EventName: strings.TrimSpace(req.EventName),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return domain.ListEventResponse{}, domain.ErrInvalidStatus
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}.Normalize()
	items, err := s.repo.List(ctx, s.db, website.ID, filter, page)
	if err != nil {
		return domain.ListEventResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, page.PageSize, func(e *domain.EventLog) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        e.ID.String(),
			CreatedAt: e.ReceivedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})

	resp := domain.ListEventResponse{PageInfo: pageInfo, Events: make([]domain.EventLog, 0, len(items))}
	for _, item := range items {
		resp.Events = append(resp.Events, *item)
	}
	return resp, nil
}

func (s *Service) Get(ctx context.Context, rawID string) (domain.EventLog, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id <= 0 {
		return domain.EventLog{}, domain.ErrInvalidID
	}

	event, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.EventLog{}, err
	}
	if event == nil {
		return domain.EventLog{}, domain.ErrNotFound
	}

	if _, err := s.websiteSvc.Get(ctx, event.WebsiteID.String()); err != nil {
		if errors.Is(err, websitedomain.ErrNotFound) {
			return domain.EventLog{}, domain.ErrNotFound
		}
		return domain.EventLog{}, err
	}
	return *event, nil
}

func (s *Service) Transition(ctx context.Context, req domain.TransitionRequest) (domain.EventLog, error) {
	if req.ID <= 0 {
		return domain.EventLog{}, domain.ErrInvalidID
	}
	if !domain.CanTransition(req.From, req.To) {
		return domain.EventLog{}, domain.ErrInvalidTransition
	}

	response, err := validateDocument(req.PlatformResponse)
	if err != nil {
		return domain.EventLog{}, err
	}

	affected, err := s.repo.UpdateStatus(ctx, s.db, req.ID, req.From, req.To,
		datatypes.JSON(response), optional(req.MatchQualityScore))
	if err != nil {
		return domain.EventLog{}, err
	}

	event, err := s.repo.FindByID(ctx, s.db, req.ID)
	if err != nil {
		return domain.EventLog{}, err
	}
	if event == nil {
		return domain.EventLog{}, domain.ErrNotFound
	}
	if affected == 0 {
		return domain.EventLog{}, domain.ErrStatusConflict
	}

	s.metrics.RecordEventTransition(ctx, string(req.From), string(req.To))
	s.log.Info("event status changed",
		zap.String("event_log_id", req.ID.String()),
		zap.String("from_status", string(req.From)),
		zap.String("to_status", string(req.To)),
	)
	return *event, nil
}

func (s *Service) newEvent(req domain.IngestRequest) (domain.EventLog, error) {
	websiteID, err := snowflake.ParseString(strings.TrimSpace(req.WebsiteID))
	if err != nil || websiteID <= 0 {
		return domain.EventLog{}, domain.ErrInvalidWebsiteID
	}
	eventID, err := validateEventID(req.EventID)
	if err != nil {
		return domain.EventLog{}, err
	}
	eventName, err := validateEventName(req.EventName)
	if err != nil {
		return domain.EventLog{}, err
	}
	if req.EventTime.IsZero() {
		return domain.EventLog{}, domain.ErrInvalidEventTime
	}
	sourceURL, err := validateSourceURL(req.EventSourceURL)
	if err != nil {
		return domain.EventLog{}, err
	}
	ip, err := validateIPAddress(req.UserIPAddress)
	if err != nil {
		return domain.EventLog{}, err
	}
	value, err := validateValue(req.Value)
	if err != nil {
		return domain.EventLog{}, err
	}
	code, err := validateCurrency(req.Currency)
	if err != nil {
		return domain.EventLog{}, err
	}
	email, err := validateSHA256(req.HashedEmail, domain.ErrInvalidHashedEmail)
	if err != nil {
		return domain.EventLog{}, err
	}
	phone, err := validateSHA256(req.HashedPhone, domain.ErrInvalidHashedPhone)
	if err != nil {
		return domain.EventLog{}, err
	}
	userAgent, err := validateUserAgent(req.UserAgent)
	if err != nil {
		return domain.EventLog{}, err
	}
	fbp, err := validateClickID(req.Fbp, domain.ErrInvalidFbp)
	if err != nil {
		return domain.EventLog{}, err
	}
	fbc, err := validateClickID(req.Fbc, domain.ErrInvalidFbc)
	if err != nil {
		return domain.EventLog{}, err
	}
	payload, err := validateDocument(req.OriginalPayload)
	if err != nil {
		return domain.EventLog{}, err
	}

	return domain.EventLog{
		ID:              s.genID.Generate(),
		WebsiteID:       websiteID,
		EventID:         eventID,
		EventName:       eventName,
		EventSourceURL:  sourceURL,
		UserIPAddress:   ip,
		UserAgent:       userAgent,
		Fbp:             fbp,
		Fbc:             fbc,
		HashedEmail:     email,
		HashedPhone:     phone,
		Value:           value,
		Currency:        code,
		Status:          domain.StatusPending,
		OriginalPayload: datatypes.JSON(payload),
		ReceivedAt:      s.clock.Now().UTC(),
		EventTime:       req.EventTime.UTC(),
	}, nil
}

func (s *Service) publishAccepted(ctx context.Context, log *zap.Logger, event domain.EventLog) {
	if err := s.publish(ctx, event); err != nil {
		log.Warn("publish accepted event failed", zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, event domain.EventLog) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	return s.publisher.Publish(ctx, event.WebsiteID.String(), events.EventAccepted, AcceptedEvent{
		ID:         event.ID.String(),
		WebsiteID:  event.WebsiteID.String(),
		EventID:    event.EventID,
		EventName:  event.EventName,
		EventTime:  event.EventTime,
		ReceivedAt: event.ReceivedAt,
	})
}

func (s *Service) RepublishPending(ctx context.Context, req domain.RepublishRequest) (int, error) {
	if req.Limit <= 0 || !req.Before.After(req.After) {
		return 0, nil
	}

	pending, err := s.repo.ListPendingBetween(ctx, s.db, req.After.UTC(), req.Before.UTC(), req.Limit)
	if err != nil {
		return 0, err
	}

	var (
		sent    []snowflake.ID
		failure error
	)
	for _, event := range pending {
		if err := ctx.Err(); err != nil {
			failure = errors.Join(failure, err)
			break
		}
		if err := s.publish(ctx, *event); err != nil {
			failure = errors.Join(failure, fmt.Errorf("republish %s: %w", event.ID, err))
			continue
		}
		sent = append(sent, event.ID)
	}
	if len(sent) == 0 {
		return 0, failure
	}

	// Marked even when the context is done so the next sweep moves past them.
	if err := s.repo.MarkRelayed(context.WithoutCancel(ctx), s.db, sent, s.clock.Now().UTC()); err != nil {
		failure = errors.Join(failure, fmt.Errorf("mark relayed: %w", err))
	}
	s.log.Info("pending events republished", zap.Int("count", len(sent)))
	return len(sent), failure
}
