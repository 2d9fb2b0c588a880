// Package auth verifies identity provider session tokens.
package auth

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/clarity/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	SessionCookie = "__session"
	leeway        = 5 * time.Second
)

var (
	ErrMissingToken      = errors.New("missing_session_token")
	ErrInvalidToken      = errors.New("invalid_session_token")
	ErrExpiredToken      = errors.New("expired_session_token")
	ErrUnauthorizedParty = errors.New("unauthorized_party")
	ErrUnknownKey        = errors.New("unknown_signing_key")
)

// Claims are the session claims the application relies on.
type Claims struct {
	jwt.RegisteredClaims
	AuthorizedParty string `json:"azp,omitempty"`
	SessionID       string `json:"sid,omitempty"`
}

// Session is a verified signed-in user.
type Session struct {
	Subject   string
	SessionID string
	ExpiresAt time.Time
}

type Verifier struct {
	keys    KeySource
	parties []string
	now     func() time.Time
}

func NewVerifier(keys KeySource, authorizedParties []string) *Verifier {
	return &Verifier{keys: keys, parties: authorizedParties, now: time.Now}
}

// NewVerifierFromConfig prefers the networkless PEM key and falls back to
// the provider's JWKS endpoint.
func NewVerifierFromConfig(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*Verifier, error) {
	log = log.Named("auth")
	if strings.TrimSpace(cfg.ClerkJWTKey) != "" {
		keys, err := NewStaticKey(cfg.ClerkJWTKey)
		if err != nil {
			return nil, err
		}
		log.Info("session tokens verified with static key")
		return NewVerifier(keys, cfg.ClerkAuthorizedParties), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.StopHook(cancel))

	keys, err := NewJWKS(ctx, cfg.ClerkAPIURL, cfg.ClerkSecretKey, nil, log)
	if err != nil {
		cancel()
		return nil, err
	}
	log.Info("session tokens verified with jwks", zap.String("api_url", cfg.ClerkAPIURL))
	return NewVerifier(keys, cfg.ClerkAuthorizedParties), nil
}

func (v *Verifier) Verify(ctx context.Context, raw string) (Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Session{}, ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return v.keys.Key(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithLeeway(leeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Session{}, ErrExpiredToken
		case errors.Is(err, ErrUnknownKey):
			return Session{}, ErrUnknownKey
		default:
			return Session{}, ErrInvalidToken
		}
	}
	if !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return Session{}, ErrInvalidToken
	}
	if len(v.parties) > 0 && claims.AuthorizedParty != "" && !slices.Contains(v.parties, claims.AuthorizedParty) {
		return Session{}, ErrUnauthorizedParty
	}

	session := Session{Subject: claims.Subject, SessionID: claims.SessionID}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// TokenFromHeaders reads the session token from the Authorization header,
// falling back to the session cookie value.
func TokenFromHeaders(authorization, cookie string) string {
	if scheme, token, ok := strings.Cut(strings.TrimSpace(authorization), " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(cookie)
}
