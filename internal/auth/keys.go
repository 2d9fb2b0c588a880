package auth

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// KeySource resolves the public key a session token was signed with.
type KeySource interface {
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

type staticKey struct {
	key *rsa.PublicKey
}

// NewStaticKey parses a PEM encoded RSA public key. Keys pasted into an
// environment variable on one line are accepted too.
func NewStaticKey(pemKey string) (KeySource, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(reflowPEM(pemKey)))
	if err != nil {
		return nil, fmt.Errorf("parse jwt key: %w", err)
	}
	return staticKey{key: key}, nil
}

func (s staticKey) Key(context.Context, string) (*rsa.PublicKey, error) {
	return s.key, nil
}

func reflowPEM(raw string) string {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, `\n`, "\n"))
	if strings.Contains(raw, "\n") {
		return raw
	}
	const (
		header = "-----BEGIN PUBLIC KEY-----"
		footer = "-----END PUBLIC KEY-----"
	)
	body := strings.TrimSuffix(strings.TrimPrefix(raw, header), footer)
	return header + "\n" + strings.TrimSpace(body) + "\n" + footer + "\n"
}

const (
	jwksRefreshInterval  = time.Hour
	jwksUnknownKIDPeriod = 5 * time.Minute
	jwksRateLimitWait    = time.Second
)

// JWKS serves signing keys from the identity provider's key set. The set is
// refreshed in the background and an unknown kid triggers at most one
// refetch per jwksUnknownKIDPeriod. Lookups never wait on a fetch held by
// another request.
type JWKS struct {
	keys keyfunc.Keyfunc
}

// NewJWKS starts the background refresh, which stops when ctx is done. A
// provider that is down at startup is logged and retried, not fatal.
func NewJWKS(ctx context.Context, apiURL, secretKey string, client *http.Client, log *zap.Logger) (*JWKS, error) {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	authed := *client
	authed.Transport = bearerTransport{base: client.Transport, token: secretKey}

	jwksURL := strings.TrimSuffix(apiURL, "/") + "/v1/jwks"
	parsedURL, err := url.Parse(jwksURL)
	if err != nil {
		return nil, fmt.Errorf("jwks url: %w", err)
	}
	remote, err := jwkset.NewStorageFromHTTP(parsedURL, jwkset.HTTPClientStorageOptions{
		Client:                    &authed,
		Ctx:                       ctx,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           jwksRefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			log.Warn("jwks refresh failed", zap.String("url", jwksURL), zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("jwks storage: %w", err)
	}
	storage, err := jwkset.NewHTTPClient(jwkset.HTTPClientOptions{
		HTTPURLs:          map[string]jwkset.Storage{jwksURL: remote},
		RateLimitWaitMax:  jwksRateLimitWait,
		RefreshUnknownKID: rate.NewLimiter(rate.Every(jwksUnknownKIDPeriod), 1),
	})
	if err != nil {
		return nil, fmt.Errorf("jwks client: %w", err)
	}
	keys, err := keyfunc.New(keyfunc.Options{Ctx: ctx, Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("jwks keyfunc: %w", err)
	}
	return &JWKS{keys: keys}, nil
}

func (j *JWKS) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	jwk, err := j.keys.Storage().KeyRead(ctx, kid)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownKey, err)
	}
	key, ok := jwk.Key().(*rsa.PublicKey)
	if !ok {
		return nil, ErrUnknownKey
	}
	return key, nil
}

type bearerTransport struct {
	base  http.RoundTripper
	token string
}

func (t bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("Accept", "application/json")
	return base.RoundTrip(req)
}
