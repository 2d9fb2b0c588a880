package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/clarity/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func TestDefaultBucketTTL(t *testing.T) {
	assert.Equal(t, 4*time.Second, defaultBucketTTL(50, 100))
	assert.Equal(t, time.Second, defaultBucketTTL(1000, 1))
	assert.Equal(t, time.Second, defaultBucketTTL(0, 10))
}

func TestCastHelpers(t *testing.T) {
	assert.Equal(t, int64(1), castToInt(int64(1)))
	assert.Equal(t, int64(2), castToInt(2.9))
	assert.Equal(t, int64(0), castToInt("x"))
	assert.Equal(t, 3.5, castToFloat("3.5"))
	assert.Equal(t, float64(4), castToFloat(int64(4)))
	assert.Equal(t, float64(0), castToFloat(nil))
}

func TestNilBucketIsNotConfigured(t *testing.T) {
	var bucket *TokenBucket
	res, err := bucket.Allow(context.Background(), "k", 1, 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, res.Allowed)
}

func TestDisabledLimiterAllows(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	limiter, err := NewEventIngestLimiter(lc, config.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, limiter)
	assert.False(t, limiter.Enabled())

	res, err := limiter.AllowWebsite(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestEnabledLimiterValidatesConfig(t *testing.T) {
	lc := fxtest.NewLifecycle(t)

	_, err := NewEventIngestLimiter(lc, config.Config{RateLimit: config.RateLimitConfig{Enabled: true}}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewEventIngestLimiter(lc, config.Config{RateLimit: config.RateLimitConfig{
		Enabled:   true,
		RedisAddr: "localhost:6379",
	}}, zap.NewNop())
	assert.Error(t, err)

	limiter, err := NewEventIngestLimiter(lc, config.Config{RateLimit: config.RateLimitConfig{
		Enabled:                 true,
		RedisAddr:               "localhost:6379",
		EventIngestWebsiteRate:  10,
		EventIngestWebsiteBurst: 20,
	}}, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, limiter.Enabled())
}
