package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clarity/internal/authcontext"
	"github.com/smallbiznis/clarity/internal/clock"
	"github.com/smallbiznis/clarity/internal/dbtest"
	"github.com/smallbiznis/clarity/internal/user/domain"
	"github.com/smallbiznis/clarity/internal/user/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func setupUserService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()

	db := dbtest.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(fixedNow)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  repository.Provide(),
	})
	return svc, db
}

func TestEnsureFromIdentityIsIdempotent(t *testing.T) {
	svc, db := setupUserService(t)
	ctx := context.Background()

	first, err := svc.EnsureFromIdentity(ctx, domain.Identity{ClerkID: "user_2abc", Email: "ana@example.com", Name: "Ana"})
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.False(t, first.IsOnboarded)
	assert.True(t, first.RegisteredAt.Equal(fixedNow))
	require.NotNil(t, first.Name)
	assert.Equal(t, "Ana", *first.Name)

	second, err := svc.EnsureFromIdentity(ctx, domain.Identity{ClerkID: "user_2abc", Email: "other@example.com"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "ana@example.com", second.Email)
	assert.Equal(t, int64(1), dbtest.Count(t, db, "users", ""))
}

func TestEnsureFromIdentityValidates(t *testing.T) {
	svc, _ := setupUserService(t)
	ctx := context.Background()

	_, err := svc.EnsureFromIdentity(ctx, domain.Identity{Email: "ana@example.com"})
	assert.ErrorIs(t, err, domain.ErrInvalidClerkID)

	_, err = svc.EnsureFromIdentity(ctx, domain.Identity{ClerkID: "user_1", Email: "not-an-email"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
}

func TestCreateTestUserRequiresSession(t *testing.T) {
	svc, db := setupUserService(t)

	_, err := svc.CreateTestUser(context.Background(), domain.CreateTestUserRequest{Email: "ana@example.com"})
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.Equal(t, int64(0), dbtest.Count(t, db, "users", ""))
}

func TestCreateTestUser(t *testing.T) {
	svc, db := setupUserService(t)
	ctx := authcontext.WithSubject(context.Background(), "user_2xyz")

	user, err := svc.CreateTestUser(ctx, domain.CreateTestUserRequest{Email: "test@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "user_2xyz", user.ClerkID)
	require.NotNil(t, user.Name)
	assert.Equal(t, domain.TestUserName, *user.Name)

	stored, err := svc.GetByClerkID(context.Background(), "user_2xyz")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)
	assert.Equal(t, "test@example.com", stored.Email)

	_, err = svc.CreateTestUser(ctx, domain.CreateTestUserRequest{Email: "again@example.com"})
	assert.ErrorIs(t, err, domain.ErrUserExists)
	assert.Equal(t, int64(1), dbtest.Count(t, db, "users", ""))

	_, err = svc.CreateTestUser(authcontext.WithSubject(context.Background(), "user_other"), domain.CreateTestUserRequest{Email: "bad"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
}

func TestMarkOnboarded(t *testing.T) {
	svc, _ := setupUserService(t)
	ctx := authcontext.WithSubject(context.Background(), "user_2abc")

	_, err := svc.MarkOnboarded(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.EnsureFromIdentity(ctx, domain.Identity{ClerkID: "user_2abc", Email: "ana@example.com"})
	require.NoError(t, err)

	user, err := svc.MarkOnboarded(ctx)
	require.NoError(t, err)
	assert.True(t, user.IsOnboarded)

	stored, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.True(t, stored.IsOnboarded)
}

func TestDeleteCurrentCascadesToOwnedData(t *testing.T) {
	svc, db := setupUserService(t)
	ctx := authcontext.WithSubject(context.Background(), "user_2abc")

	owner, err := svc.EnsureFromIdentity(ctx, domain.Identity{ClerkID: "user_2abc", Email: "ana@example.com"})
	require.NoError(t, err)
	other, err := svc.EnsureFromIdentity(ctx, domain.Identity{ClerkID: "user_other", Email: "bo@example.com"})
	require.NoError(t, err)

	now := time.Now().UTC()
	for i, userID := range []snowflake.ID{owner.ID, other.ID} {
		websiteID := int64(100 + i)
		require.NoError(t, db.Exec(`INSERT INTO websites (id, user_id, url, name, created_at) VALUES (?, ?, ?, ?, ?)`,
			websiteID, userID, "https://shop.example.com", "Shop", now).Error)
		require.NoError(t, db.Exec(`INSERT INTO connections (id, website_id, platform, type, config, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			200+i, websiteID, "meta", "destination", `{"pixel_id":"123"}`, now).Error)
		require.NoError(t, db.Exec(`INSERT INTO event_logs (id, website_id, event_id, event_name, status, received_at, event_time) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			300+i, websiteID, "evt_abc", "Purchase", "pending", now, now).Error)
	}

	require.NoError(t, svc.DeleteCurrent(ctx))

	assert.Equal(t, int64(0), dbtest.Count(t, db, "users", "id = ?", owner.ID))
	assert.Equal(t, int64(0), dbtest.Count(t, db, "websites", "user_id = ?", owner.ID))
	assert.Equal(t, int64(0), dbtest.Count(t, db, "connections", "website_id = ?", 100))
	assert.Equal(t, int64(0), dbtest.Count(t, db, "event_logs", "website_id = ?", 100))

	assert.Equal(t, int64(1), dbtest.Count(t, db, "websites", "user_id = ?", other.ID))
	assert.Equal(t, int64(1), dbtest.Count(t, db, "connections", ""))
	assert.Equal(t, int64(1), dbtest.Count(t, db, "event_logs", ""))

	assert.ErrorIs(t, svc.DeleteCurrent(ctx), domain.ErrNotFound)
}
