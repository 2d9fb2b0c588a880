package server

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/clarity/internal/auth"
	"github.com/smallbiznis/clarity/internal/clock"
	"github.com/smallbiznis/clarity/internal/config"
	connectionplatform "github.com/smallbiznis/clarity/internal/connection/platform"
	connectionrepository "github.com/smallbiznis/clarity/internal/connection/repository"
	connectionservice "github.com/smallbiznis/clarity/internal/connection/service"
	"github.com/smallbiznis/clarity/internal/dbtest"
	eventlogrepository "github.com/smallbiznis/clarity/internal/eventlog/repository"
	eventlogservice "github.com/smallbiznis/clarity/internal/eventlog/service"
	"github.com/smallbiznis/clarity/internal/observability"
	"github.com/smallbiznis/clarity/internal/ratelimit"
	userrepository "github.com/smallbiznis/clarity/internal/user/repository"
	userservice "github.com/smallbiznis/clarity/internal/user/service"
	websiterepository "github.com/smallbiznis/clarity/internal/website/repository"
	websiteservice "github.com/smallbiznis/clarity/internal/website/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testServer struct {
	engine *gin.Engine
	db     *gorm.DB
	key    *rsa.PrivateKey
}

func newTestServer(t *testing.T, opts ...func(*ServerParams)) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dbtest.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	keys, err := auth.NewStaticKey(string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})))
	require.NoError(t, err)

	users := userservice.New(userservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.New(),
		Repo:  userrepository.Provide(),
	})
	websites := websiteservice.New(websiteservice.Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clock.New(),
		Repo:    websiterepository.Provide(),
		UserSvc: users,
	})
	connections := connectionservice.New(connectionservice.Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clock.New(),
		Cfg:        config.Config{ConnectionSecret: "s3cret"},
		Repo:       connectionrepository.Provide(),
		Platforms:  connectionplatform.NewDefaultRegistry(),
		Catalog:    config.NewStaticPlatformCatalogHolder(config.DefaultPlatformCatalog()),
		WebsiteSvc: websites,
	})
	events := eventlogservice.New(eventlogservice.Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clock.New(),
		Repo:       eventlogrepository.Provide(),
		WebsiteSvc: websites,
	})

	engine := NewEngine(observability.Config{Environment: config.EnvTest}, nil)
	params := ServerParams{
		Gin:           engine,
		Cfg:           config.Config{Environment: config.EnvTest},
		Verifier:      auth.NewVerifier(keys, nil),
		UserSvc:       users,
		WebsiteSvc:    websites,
		ConnectionSvc: connections,
		EventSvc:      events,
	}
	for _, opt := range opts {
		opt(&params)
	}
	NewServer(params)

	return testServer{engine: engine, db: db, key: key}
}

func (s testServer) token(t *testing.T, subject string) string {
	t.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
		SessionID: "sess_" + subject,
	})
	signed, err := token.SignedString(s.key)
	require.NoError(t, err)
	return signed
}

func (s testServer) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// signUp registers subject and creates one website, returning its id.
func (s testServer) signUp(t *testing.T, subject string) (string, string) {
	t.Helper()
	token := s.token(t, subject)
	rec := s.do(t, http.MethodPost, "/api/me", token, map[string]string{"email": subject + "@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/websites", token, map[string]string{
		"url":  "https://shop.example.com",
		"name": "Shop",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]any)
	return token, data["id"].(string)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHelloIsPublic(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/trpc/example.hello?text=world", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello world, welcome to ClarityTracking v2!", decode(t, rec)["greeting"])

	input := url.QueryEscape(`{"text":"Ada"}`)
	rec = s.do(t, http.MethodGet, "/api/trpc/example.hello?input="+input, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello Ada, welcome to ClarityTracking v2!", decode(t, rec)["greeting"])

	rec = s.do(t, http.MethodGet, "/api/trpc/example.hello", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateTestUserRequiresSession(t *testing.T) {
	s := newTestServer(t)

	for name, token := range map[string]string{
		"missing": "",
		"garbage": "not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/trpc/example.createTestUser", token, map[string]string{"email": "a@example.com"})
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			errBody := decode(t, rec)["error"].(map[string]any)
			assert.Equal(t, "unauthorized", errBody["type"])
		})
	}
	assert.Zero(t, dbtest.Count(t, s.db, "users", ""))
}

func TestCreateTestUser(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "user_2abc")

	rec := s.do(t, http.MethodPost, "/api/trpc/example.createTestUser", token, map[string]string{"email": "ana@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decode(t, rec)["success"])
	assert.Equal(t, int64(1), dbtest.Count(t, s.db, "users", "clerk_id = ?", "user_2abc"))

	rec = s.do(t, http.MethodPost, "/api/trpc/example.createTestUser", token, map[string]string{"email": "ana@example.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/trpc/example.createTestUser", s.token(t, "user_other"), map[string]string{"email": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSecretMessage(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/trpc/example.getSecretMessage", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/trpc/example.getSecretMessage", s.token(t, "user_2abc"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var msg string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.Equal(t, "You are logged in! Your user ID is user_2abc", msg)
}

func TestSessionCookieIsAccepted(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/trpc/example.getSecretMessage", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: s.token(t, "user_cookie")})
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMeUnknownUser(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/me", s.token(t, "user_ghost"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIngestDuplicateAnswersWithOriginal(t *testing.T) {
	s := newTestServer(t)
	token, websiteID := s.signUp(t, "user_ana")
	path := "/api/websites/" + websiteID + "/events"

	rec := s.do(t, http.MethodPost, path, token, map[string]any{
		"event_id":   "evt_abc",
		"event_name": "Purchase",
		"event_time": "2026-05-10T08:00:00Z",
		"value":      "49.99",
		"currency":   "USD",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "accepted", body["outcome"])
	assert.Equal(t, "pending", body["data"].(map[string]any)["status"])

	rec = s.do(t, http.MethodPost, path, token, map[string]any{
		"event_id":   "evt_abc",
		"event_name": "Purchase",
		"event_time": "2026-05-10T08:30:00Z",
		"value":      "10.00",
		"currency":   "USD",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = decode(t, rec)
	assert.Equal(t, "duplicate", body["outcome"])
	assert.Equal(t, "49.99", body["data"].(map[string]any)["value"])
	assert.Equal(t, int64(1), dbtest.Count(t, s.db, "event_logs", ""))
}

func TestIngestValidationAndOwnership(t *testing.T) {
	s := newTestServer(t)
	token, websiteID := s.signUp(t, "user_ana")
	otherToken, _ := s.signUp(t, "user_bob")
	path := "/api/websites/" + websiteID + "/events"

	rec := s.do(t, http.MethodPost, path, token, map[string]any{
		"event_id":   "evt_1",
		"event_name": "Purchase",
		"event_time": "2026-05-10T08:00:00Z",
		"value":      "-1",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errBody := decode(t, rec)["error"].(map[string]any)
	fieldErr := errBody["errors"].([]any)[0].(map[string]any)
	assert.Equal(t, "value", fieldErr["field"])
	assert.Equal(t, "invalid_value", fieldErr["code"])

	rec = s.do(t, http.MethodPost, path, otherToken, map[string]any{
		"event_id":   "evt_1",
		"event_name": "Purchase",
		"event_time": "2026-05-10T08:00:00Z",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, path, "", map[string]any{"event_id": "evt_1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, dbtest.Count(t, s.db, "event_logs", ""))
}

func TestListAndGetEvents(t *testing.T) {
	s := newTestServer(t)
	token, websiteID := s.signUp(t, "user_ana")
	path := "/api/websites/" + websiteID + "/events"

	for _, id := range []string{"evt_1", "evt_2"} {
		rec := s.do(t, http.MethodPost, path, token, map[string]any{
			"event_id":   id,
			"event_name": "Purchase",
			"event_time": "2026-05-10T08:00:00Z",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := s.do(t, http.MethodGet, path+"?page_size=1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	events := body["data"].([]any)
	require.Len(t, events, 1)
	assert.Equal(t, "evt_2", events[0].(map[string]any)["event_id"])
	assert.Equal(t, true, body["page_info"].(map[string]any)["has_more"])

	eventID := events[0].(map[string]any)["id"].(string)
	rec = s.do(t, http.MethodGet, "/api/events/"+eventID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, path+"?status=bogus", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, path+"?page_size=abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConnectionLifecycle(t *testing.T) {
	s := newTestServer(t)
	token, websiteID := s.signUp(t, "user_ana")
	path := "/api/websites/" + websiteID + "/connections"

	rec := s.do(t, http.MethodPost, path, token, map[string]any{
		"platform": "meta",
		"type":     "destination",
		"config":   map[string]any{"pixel_id": "abc"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fieldErr := decode(t, rec)["error"].(map[string]any)["errors"].([]any)[0].(map[string]any)
	assert.Equal(t, "config.pixel_id", fieldErr["field"])
	assert.Equal(t, "invalid", fieldErr["code"])

	rec = s.do(t, http.MethodPost, path, token, map[string]any{
		"platform":     "meta",
		"type":         "destination",
		"config":       map[string]any{"pixel_id": "1234567890"},
		"access_token": "EAAB-secret",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "EAAB-secret")
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, true, data["has_access_token"])
	connID := data["id"].(string)

	rec = s.do(t, http.MethodPost, "/api/connections/"+connID+"/deactivate", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["data"].(map[string]any)["is_active"])

	rec = s.do(t, http.MethodDelete, "/api/connections/"+connID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/connections/"+connID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteMeCascades(t *testing.T) {
	s := newTestServer(t)
	token, websiteID := s.signUp(t, "user_ana")

	rec := s.do(t, http.MethodPost, "/api/websites/"+websiteID+"/events", token, map[string]any{
		"event_id":   "evt_1",
		"event_name": "Purchase",
		"event_time": "2026-05-10T08:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodDelete, "/api/me", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	assert.Zero(t, dbtest.Count(t, s.db, "websites", ""))
	assert.Zero(t, dbtest.Count(t, s.db, "event_logs", ""))
}

type stubLimiter struct {
	mu    sync.Mutex
	keys  []string
	allow int
}

func (l *stubLimiter) Enabled() bool { return true }

func (l *stubLimiter) AllowWebsite(_ context.Context, websiteID string) (*ratelimit.RateLimitResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, websiteID)
	if len(l.keys) > l.allow {
		return &ratelimit.RateLimitResult{Allowed: false, RetryAfter: 1500 * time.Millisecond}, nil
	}
	return &ratelimit.RateLimitResult{Allowed: true}, nil
}

func TestIngestRateLimitKeysOnResolvedWebsite(t *testing.T) {
	limiter := &stubLimiter{allow: 3}
	s := newTestServer(t, func(p *ServerParams) { p.EventLimiter = limiter })
	token, websiteID := s.signUp(t, "user_ana")
	otherToken, _ := s.signUp(t, "user_bob")

	for i, alias := range []string{websiteID, "0" + websiteID, "00" + websiteID} {
		rec := s.do(t, http.MethodPost, "/api/websites/"+alias+"/events", token, map[string]any{
			"event_id":   fmt.Sprintf("evt_%d", i),
			"event_name": "Purchase",
			"event_time": "2026-05-10T08:00:00Z",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	assert.Equal(t, []string{websiteID, websiteID, websiteID}, limiter.keys)

	// Another owner never reaches the bucket.
	rec := s.do(t, http.MethodPost, "/api/websites/"+websiteID+"/events", otherToken, map[string]any{
		"event_id":   "evt_x",
		"event_name": "Purchase",
		"event_time": "2026-05-10T08:00:00Z",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Len(t, limiter.keys, 3)

	rec = s.do(t, http.MethodPost, "/api/websites/0"+websiteID+"/events", token, map[string]any{
		"event_id":   "evt_4",
		"event_name": "Purchase",
		"event_time": "2026-05-10T08:00:00Z",
	})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, rateLimitReasonWebsiteRate, rec.Header().Get("X-Rate-Limited-Reason"))
	assert.Equal(t, int64(3), dbtest.Count(t, s.db, "event_logs", ""))
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, 3, retryAfterSeconds(2500*time.Millisecond))
}

func TestMapErrorRateLimited(t *testing.T) {
	status, payload := mapError(ErrRateLimited)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "rate_limited", payload.Type)
}
