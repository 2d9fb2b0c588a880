package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clarity/pkg/db/pagination"
)

type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeDuplicate Outcome = "duplicate"
)

type IngestRequest struct {
	WebsiteID       string          `json:"-"`
	EventID         string          `json:"event_id"`
	EventName       string          `json:"event_name"`
	EventTime       time.Time       `json:"event_time"`
	EventSourceURL  string          `json:"event_source_url"`
	UserIPAddress   string          `json:"user_ip_address"`
	UserAgent       string          `json:"user_agent"`
	Fbp             string          `json:"fbp"`
	Fbc             string          `json:"fbc"`
	HashedEmail     string          `json:"hashed_email"`
	HashedPhone     string          `json:"hashed_phone"`
	Value           string          `json:"value"`
	Currency        string          `json:"currency"`
	OriginalPayload json.RawMessage `json:"original_payload"`
}

// IngestResult carries the stored row. For a duplicate it is the row written
// by the first occurrence, unchanged.
type IngestResult struct {
	Event   EventLog `json:"event"`
	Outcome Outcome  `json:"outcome"`
}

type ListEventRequest struct {
	WebsiteID string
	Status    string
	EventName string
	PageToken string
	PageSize  int
}

type ListEventResponse struct {
	pagination.PageInfo
	Events []EventLog `json:"events"`
}

type TransitionRequest struct {
	ID                snowflake.ID
	From              ProcessingStatus
	To                ProcessingStatus
	PlatformResponse  json.RawMessage
	MatchQualityScore string
}

// RepublishRequest selects pending events received in (After, Before]. An
// event relayed earlier is selected again only once its last relay is no
// later than Before.
type RepublishRequest struct {
	After  time.Time
	Before time.Time
	Limit  int
}

type Service interface {
	// Ingest is the deduplication gate. It performs no owner check; callers
	// authorise access to the website first.
	Ingest(context.Context, IngestRequest) (IngestResult, error)
	List(context.Context, ListEventRequest) (ListEventResponse, error)
	Get(context.Context, string) (EventLog, error)
	// Transition moves an event between processing states for the forwarder.
	Transition(context.Context, TransitionRequest) (EventLog, error)
	// RepublishPending hands stale pending events to the publisher again and
	// reports how many were sent.
	RepublishPending(context.Context, RepublishRequest) (int, error)
}

var (
	ErrInvalidWebsiteID   = errors.New("invalid_website_id")
	ErrUnknownWebsite     = errors.New("unknown_website")
	ErrInvalidEventID     = errors.New("invalid_event_id")
	ErrInvalidEventName   = errors.New("invalid_event_name")
	ErrInvalidEventTime   = errors.New("invalid_event_time")
	ErrInvalidSourceURL   = errors.New("invalid_event_source_url")
	ErrInvalidIPAddress   = errors.New("invalid_user_ip_address")
	ErrInvalidValue       = errors.New("invalid_value")
	ErrInvalidCurrency    = errors.New("invalid_currency")
	ErrInvalidHashedEmail = errors.New("invalid_hashed_email")
	ErrInvalidHashedPhone = errors.New("invalid_hashed_phone")
	ErrInvalidUserAgent   = errors.New("invalid_user_agent")
	ErrInvalidFbp         = errors.New("invalid_fbp")
	ErrInvalidFbc         = errors.New("invalid_fbc")
	ErrInvalidPayload     = errors.New("invalid_payload")
	ErrInvalidID          = errors.New("invalid_event_log_id")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidTransition  = errors.New("invalid_transition")
	ErrStatusConflict     = errors.New("status_conflict")
	ErrDuplicateEvent     = errors.New("duplicate_event")
	ErrNotFound           = errors.New("event_log_not_found")
)

var transitions = map[ProcessingStatus][]ProcessingStatus{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusFailed, StatusPending},
	StatusFailed:     {StatusPending},
}

// CanTransition reports whether an event may move from one status to another.
func CanTransition(from, to ProcessingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
