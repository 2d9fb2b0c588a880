package server

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/clarity/internal/auth"
	"github.com/smallbiznis/clarity/internal/authcontext"
	obscontext "github.com/smallbiznis/clarity/internal/observability/context"
	"github.com/smallbiznis/clarity/internal/observability/logger"
	websitedomain "github.com/smallbiznis/clarity/internal/website/domain"
	"go.uber.org/zap"
)

const (
	contextUserIDKey  = "user_id"
	contextWebsiteKey = "website"
)

// SessionRequired rejects the request before any handler runs unless it
// carries a valid session token.
func (s *Server) SessionRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		cookie, _ := c.Cookie(auth.SessionCookie)
		raw := auth.TokenFromHeaders(c.GetHeader("Authorization"), cookie)

		session, err := s.verifier.Verify(ctx, raw)
		if err != nil {
			s.obsMetrics.RecordSessionRejected(ctx, sessionRejectReason(err))
			logger.FromContext(ctx).Debug("session rejected", zap.Error(err))
			AbortWithError(c, err)
			return
		}

		ctx = authcontext.WithSubject(ctx, session.Subject)
		ctx = authcontext.WithSessionID(ctx, session.SessionID)
		ctx = obscontext.WithUserID(ctx, session.Subject)
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextUserIDKey, session.Subject)
		c.Next()
	}
}

// WebsiteRequired resolves the :id website for the session owner and keeps it
// on the gin context. Anything that is not the caller's website stops here.
func (s *Server) WebsiteRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		site, err := s.websiteSvc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Set(contextWebsiteKey, site)
		c.Set("website_id", site.ID.String())
		c.Next()
	}
}

func websiteFromContext(c *gin.Context) (websitedomain.Website, bool) {
	value, ok := c.Get(contextWebsiteKey)
	if !ok {
		return websitedomain.Website{}, false
	}
	site, ok := value.(websitedomain.Website)
	return site, ok
}

func sessionRejectReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return "missing"
	case errors.Is(err, auth.ErrExpiredToken):
		return "expired"
	case errors.Is(err, auth.ErrUnauthorizedParty):
		return "unauthorized_party"
	case errors.Is(err, auth.ErrUnknownKey):
		return "unknown_key"
	default:
		return "invalid"
	}
}
