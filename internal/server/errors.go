package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/clarity/internal/auth"
	connectiondomain "github.com/smallbiznis/clarity/internal/connection/domain"
	eventlogdomain "github.com/smallbiznis/clarity/internal/eventlog/domain"
	userdomain "github.com/smallbiznis/clarity/internal/user/domain"
	websitedomain "github.com/smallbiznis/clarity/internal/website/domain"
	"github.com/smallbiznis/clarity/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// classifyErrorForLog reduces an error to the type and code written in the
// request log line.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var fieldErr *connectiondomain.ConfigFieldError
	if errors.As(err, &fieldErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   "config." + fieldErr.Field,
					Code:    fieldErr.Code,
					Message: validationErrorMessage(fieldErr.Code),
				},
			},
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isUnauthorizedError(err):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, userdomain.ErrUserExists),
		errors.Is(err, eventlogdomain.ErrStatusConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, connectiondomain.ErrEncryptionKeyMissing):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isUnauthorizedError(err error) bool {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, userdomain.ErrUnauthenticated),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrUnauthorizedParty),
		errors.Is(err, auth.ErrUnknownKey):
		return true
	default:
		return false
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, pagination.ErrInvalidPageToken):
		return true
	case isUserValidationError(err),
		isWebsiteValidationError(err),
		isConnectionValidationError(err),
		isEventValidationError(err):
		return true
	default:
		return false
	}
}

func isUserValidationError(err error) bool {
	switch {
	case errors.Is(err, userdomain.ErrInvalidClerkID),
		errors.Is(err, userdomain.ErrInvalidEmail),
		errors.Is(err, userdomain.ErrInvalidName):
		return true
	default:
		return false
	}
}

func isWebsiteValidationError(err error) bool {
	switch {
	case errors.Is(err, websitedomain.ErrInvalidURL),
		errors.Is(err, websitedomain.ErrInvalidName),
		errors.Is(err, websitedomain.ErrInvalidCurrency),
		errors.Is(err, websitedomain.ErrInvalidTimezone),
		errors.Is(err, websitedomain.ErrInvalidID):
		return true
	default:
		return false
	}
}

func isConnectionValidationError(err error) bool {
	switch {
	case errors.Is(err, connectiondomain.ErrInvalidID),
		errors.Is(err, connectiondomain.ErrInvalidPlatform),
		errors.Is(err, connectiondomain.ErrPlatformDisabled),
		errors.Is(err, connectiondomain.ErrInvalidType),
		errors.Is(err, connectiondomain.ErrDirectionNotAllowed),
		errors.Is(err, connectiondomain.ErrInvalidConfig):
		return true
	default:
		return false
	}
}

func isEventValidationError(err error) bool {
	switch {
	case errors.Is(err, eventlogdomain.ErrInvalidWebsiteID),
		errors.Is(err, eventlogdomain.ErrInvalidEventID),
		errors.Is(err, eventlogdomain.ErrInvalidEventName),
		errors.Is(err, eventlogdomain.ErrInvalidEventTime),
		errors.Is(err, eventlogdomain.ErrInvalidSourceURL),
		errors.Is(err, eventlogdomain.ErrInvalidIPAddress),
		errors.Is(err, eventlogdomain.ErrInvalidValue),
		errors.Is(err, eventlogdomain.ErrInvalidCurrency),
		errors.Is(err, eventlogdomain.ErrInvalidHashedEmail),
		errors.Is(err, eventlogdomain.ErrInvalidHashedPhone),
		errors.Is(err, eventlogdomain.ErrInvalidUserAgent),
		errors.Is(err, eventlogdomain.ErrInvalidFbp),
		errors.Is(err, eventlogdomain.ErrInvalidFbc),
		errors.Is(err, eventlogdomain.ErrInvalidPayload),
		errors.Is(err, eventlogdomain.ErrInvalidID),
		errors.Is(err, eventlogdomain.ErrInvalidStatus),
		errors.Is(err, eventlogdomain.ErrInvalidTransition):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, websitedomain.ErrNotFound),
		errors.Is(err, connectiondomain.ErrNotFound),
		errors.Is(err, eventlogdomain.ErrNotFound),
		errors.Is(err, eventlogdomain.ErrUnknownWebsite),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, pagination.ErrInvalidPageToken):
		return "invalid_page_token"
	case errors.Is(err, connectiondomain.ErrInvalidConfig):
		return "invalid_config"
	default:
		return err.Error()
	}
}

var validationFields = map[string]string{
	"invalid_request":         "request",
	"invalid_clerk_id":        "clerk_id",
	"invalid_id":              "id",
	"invalid_connection_id":   "id",
	"invalid_event_log_id":    "id",
	"invalid_connection_type": "type",
	"platform_disabled":       "platform",
	"direction_not_allowed":   "type",
	"invalid_transition":      "status",
}

func validationErrorField(code string) string {
	if field, ok := validationFields[code]; ok {
		return field
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "required":
		return "is required"
	case "unknown":
		return "is not a known field"
	case "platform_disabled":
		return "platform is not available"
	case "direction_not_allowed":
		return "platform does not support this direction"
	default:
		return "invalid value"
	}
}
