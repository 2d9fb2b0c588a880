package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/clarity/internal/observability/logger"
	"go.uber.org/zap"
)

const rateLimitReasonWebsiteRate = "website-rate"

// EventIngestRateLimit throttles ingestion per website. It runs after
// WebsiteRequired so the bucket is keyed on the resolved id and only the
// owner spends it. Redis being unreachable fails the request rather than
// letting traffic through unmetered.
func (s *Server) EventIngestRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.eventLimiter == nil || !s.eventLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)
		site, ok := websiteFromContext(c)
		if !ok {
			AbortWithError(c, ErrInternal)
			return
		}

		result, err := s.eventLimiter.AllowWebsite(ctx, site.ID.String())
		if err != nil {
			logger.FromContext(ctx).Warn("event ingest rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			s.denyEventIngest(c, endpoint, result.RetryAfter)
			return
		}

		s.obsMetrics.RecordRateLimitAllowed(ctx, endpoint)
		c.Next()
	}
}

func (s *Server) denyEventIngest(c *gin.Context, endpoint string, retryAfter time.Duration) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("event ingest rate limit exceeded",
		zap.String("reason", rateLimitReasonWebsiteRate),
		zap.String("endpoint", endpoint),
	)
	s.obsMetrics.RecordRateLimitDenied(ctx, endpoint, rateLimitReasonWebsiteRate)

	c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(retryAfter)))
	c.Header("X-Rate-Limited-Reason", rateLimitReasonWebsiteRate)
	AbortWithError(c, ErrRateLimited)
}

func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
