package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/clarity/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyEventIngestWebsite = "events:ingest:website:%s"

// WebsiteLimiter meters event ingestion per website. Callers pass the
// canonical website id so every spelling of one id shares a bucket.
type WebsiteLimiter interface {
	Enabled() bool
	AllowWebsite(ctx context.Context, websiteID string) (*RateLimitResult, error)
}

// EventIngestLimiter caps how fast events are accepted for one website.
// A nil limiter allows everything.
type EventIngestLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewEventIngestLimiter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*EventIngestLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.EventIngestWebsiteRate <= 0 || limitCfg.EventIngestWebsiteBurst <= 0 {
		return nil, errors.New("event ingest rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("rate limit redis unreachable", zap.String("addr", addr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	return &EventIngestLimiter{
		bucket: NewTokenBucket(client),
		rate:   limitCfg.EventIngestWebsiteRate,
		burst:  limitCfg.EventIngestWebsiteBurst,
	}, nil
}

func (l *EventIngestLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *EventIngestLimiter) AllowWebsite(ctx context.Context, websiteID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyEventIngestWebsite, strings.TrimSpace(websiteID)), l.rate, l.burst)
}
