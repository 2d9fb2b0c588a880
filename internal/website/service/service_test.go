package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clarity/internal/authcontext"
	"github.com/smallbiznis/clarity/internal/clock"
	"github.com/smallbiznis/clarity/internal/dbtest"
	userdomain "github.com/smallbiznis/clarity/internal/user/domain"
	userrepository "github.com/smallbiznis/clarity/internal/user/repository"
	userservice "github.com/smallbiznis/clarity/internal/user/service"
	"github.com/smallbiznis/clarity/internal/website/domain"
	"github.com/smallbiznis/clarity/internal/website/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc   domain.Service
	users userdomain.Service
	db    *gorm.DB
}

func setup(t *testing.T) fixture {
	t.Helper()

	db := dbtest.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(fixedNow)

	users := userservice.New(userservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  userrepository.Provide(),
	})
	svc := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   fake,
		Repo:    repository.Provide(),
		UserSvc: users,
	})
	return fixture{svc: svc, users: users, db: db}
}

func signIn(t *testing.T, f fixture, clerkID string) context.Context {
	t.Helper()
	ctx := authcontext.WithSubject(context.Background(), clerkID)
	_, err := f.users.EnsureFromIdentity(ctx, userdomain.Identity{ClerkID: clerkID, Email: clerkID + "@example.com"})
	require.NoError(t, err)
	return ctx
}

func TestCreateAppliesDefaults(t *testing.T) {
	f := setup(t)
	ctx := signIn(t, f, "user_ana")

	site, err := f.svc.Create(ctx, domain.CreateWebsiteRequest{URL: "https://shop.example.com", Name: " Ana's Shop "})
	require.NoError(t, err)
	assert.NotZero(t, site.ID)
	assert.Equal(t, "Ana's Shop", site.Name)
	assert.Equal(t, domain.DefaultCurrency, site.Currency)
	assert.Equal(t, domain.DefaultTimezone, site.Timezone)
	assert.True(t, site.CreatedAt.Equal(fixedNow))

	stored, err := f.svc.Get(ctx, site.ID.String())
	require.NoError(t, err)
	assert.Equal(t, site.URL, stored.URL)
	assert.Equal(t, "USD", stored.Currency)
}

func TestCreateNormalizesCurrencyAndTimezone(t *testing.T) {
	f := setup(t)
	ctx := signIn(t, f, "user_ana")

	site, err := f.svc.Create(ctx, domain.CreateWebsiteRequest{
		URL:      "http://boutique.example.fr",
		Name:     "Boutique",
		Currency: "eur",
		Timezone: "Europe/Paris",
	})
	require.NoError(t, err)
	assert.Equal(t, "EUR", site.Currency)
	assert.Equal(t, "Europe/Paris", site.Timezone)
}

func TestCreateValidates(t *testing.T) {
	f := setup(t)
	ctx := signIn(t, f, "user_ana")

	cases := []struct {
		name string
		req  domain.CreateWebsiteRequest
		err  error
	}{
		{"relative url", domain.CreateWebsiteRequest{URL: "shop.example.com", Name: "Shop"}, domain.ErrInvalidURL},
		{"ftp url", domain.CreateWebsiteRequest{URL: "ftp://shop.example.com", Name: "Shop"}, domain.ErrInvalidURL},
		{"blank name", domain.CreateWebsiteRequest{URL: "https://shop.example.com", Name: "  "}, domain.ErrInvalidName},
		{"bad currency", domain.CreateWebsiteRequest{URL: "https://shop.example.com", Name: "Shop", Currency: "XXQ"}, domain.ErrInvalidCurrency},
		{"bad timezone", domain.CreateWebsiteRequest{URL: "https://shop.example.com", Name: "Shop", Timezone: "Mars/Olympus"}, domain.ErrInvalidTimezone},
		{"local timezone", domain.CreateWebsiteRequest{URL: "https://shop.example.com", Name: "Shop", Timezone: "Local"}, domain.ErrInvalidTimezone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tc.req)
			assert.ErrorIs(t, err, tc.err)
		})
	}
	assert.Equal(t, int64(0), dbtest.Count(t, f.db, "websites", ""))
}

func TestCreateRequiresKnownUser(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Create(context.Background(), domain.CreateWebsiteRequest{URL: "https://shop.example.com", Name: "Shop"})
	assert.ErrorIs(t, err, userdomain.ErrUnauthenticated)

	ctx := authcontext.WithSubject(context.Background(), "user_unknown")
	_, err = f.svc.Create(ctx, domain.CreateWebsiteRequest{URL: "https://shop.example.com", Name: "Shop"})
	assert.ErrorIs(t, err, userdomain.ErrNotFound)
	assert.Equal(t, int64(0), dbtest.Count(t, f.db, "websites", ""))
}

func TestWebsitesAreOwnerScoped(t *testing.T) {
	f := setup(t)
	ana := signIn(t, f, "user_ana")
	bo := signIn(t, f, "user_bo")

	site, err := f.svc.Create(ana, domain.CreateWebsiteRequest{URL: "https://ana.example.com", Name: "Ana"})
	require.NoError(t, err)

	_, err = f.svc.Get(bo, site.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(bo, site.ID.String()), domain.ErrNotFound)

	list, err := f.svc.List(bo, domain.ListWebsiteRequest{})
	require.NoError(t, err)
	assert.Empty(t, list.Websites)

	_, err = f.svc.Get(ana, "not-a-number")
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	require.NoError(t, f.svc.Delete(ana, site.ID.String()))
	_, err = f.svc.Get(ana, site.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	f := setup(t)
	ctx := signIn(t, f, "user_ana")

	var created []domain.Website
	for _, name := range []string{"one", "two", "three"} {
		site, err := f.svc.Create(ctx, domain.CreateWebsiteRequest{URL: "https://" + name + ".example.com", Name: name})
		require.NoError(t, err)
		created = append(created, site)
	}

	first, err := f.svc.List(ctx, domain.ListWebsiteRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Websites, 2)
	assert.True(t, first.HasMore)
	assert.NotEmpty(t, first.NextPageToken)
	assert.Equal(t, created[2].ID, first.Websites[0].ID)
	assert.Equal(t, created[1].ID, first.Websites[1].ID)

	second, err := f.svc.List(ctx, domain.ListWebsiteRequest{PageSize: 2, PageToken: first.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.Websites, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, created[0].ID, second.Websites[0].ID)
}

func TestDeleteCascadesToConnectionsAndEvents(t *testing.T) {
	f := setup(t)
	ctx := signIn(t, f, "user_ana")

	site, err := f.svc.Create(ctx, domain.CreateWebsiteRequest{URL: "https://shop.example.com", Name: "Shop"})
	require.NoError(t, err)

	require.NoError(t, f.db.Exec(`INSERT INTO connections (id, website_id, platform, type, config) VALUES (?, ?, ?, ?, ?)`,
		1, site.ID, "meta", "destination", `{}`).Error)
	require.NoError(t, f.db.Exec(`INSERT INTO event_logs (id, website_id, event_id, event_name, event_time) VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		1, site.ID, "evt_1", "Purchase").Error)

	require.NoError(t, f.svc.Delete(ctx, site.ID.String()))
	assert.Equal(t, int64(0), dbtest.Count(t, f.db, "connections", ""))
	assert.Equal(t, int64(0), dbtest.Count(t, f.db, "event_logs", ""))
}
