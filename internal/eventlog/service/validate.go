package service

import (
	"encoding/hex"
	"encoding/json"
	"net/netip"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/clarity/internal/eventlog/domain"
	"golang.org/x/text/currency"
)

const (
	maxEventIDLength   = 255
	maxEventNameLength = 100
	maxUserAgentLength = 1024
	maxClickIDLength   = 500
	sha256HexLength    = 64
)

// optional trims value and returns nil when nothing is left.
func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func validateEventID(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" || len(value) > maxEventIDLength || !utf8.ValidString(value) {
		return "", domain.ErrInvalidEventID
	}
	return value, nil
}

func validateEventName(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" || !utf8.ValidString(value) || utf8.RuneCountInString(value) > maxEventNameLength {
		return "", domain.ErrInvalidEventName
	}
	return value, nil
}

func validateSourceURL(value string) (*string, error) {
	v := optional(value)
	if v == nil {
		return nil, nil
	}
	if !utf8.ValidString(*v) {
		return nil, domain.ErrInvalidSourceURL
	}
	parsed, err := url.ParseRequestURI(*v)
	if err != nil || parsed.Host == "" {
		return nil, domain.ErrInvalidSourceURL
	}
	if scheme := strings.ToLower(parsed.Scheme); scheme != "http" && scheme != "https" {
		return nil, domain.ErrInvalidSourceURL
	}
	return v, nil
}

func validateIPAddress(value string) (*string, error) {
	v := optional(value)
	if v == nil {
		return nil, nil
	}
	addr, err := netip.ParseAddr(*v)
	if err != nil {
		return nil, domain.ErrInvalidIPAddress
	}
	normalized := addr.String()
	return &normalized, nil
}

// validateUserAgent keeps at most maxUserAgentLength bytes, cutting on a
// rune boundary so the stored text stays valid UTF-8.
func validateUserAgent(value string) (*string, error) {
	v := optional(value)
	if v == nil {
		return nil, nil
	}
	if !utf8.ValidString(*v) {
		return nil, domain.ErrInvalidUserAgent
	}
	if len(*v) <= maxUserAgentLength {
		return v, nil
	}
	cut := maxUserAgentLength
	for cut > 0 && !utf8.RuneStart((*v)[cut]) {
		cut--
	}
	truncated := (*v)[:cut]
	return &truncated, nil
}

// validateClickID checks an attribution identifier such as _fbp or _fbc.
// They are forwarded verbatim, so oversized values are rejected rather than cut.
func validateClickID(value string, invalid error) (*string, error) {
	v := optional(value)
	if v == nil {
		return nil, nil
	}
	if len(*v) > maxClickIDLength || !utf8.ValidString(*v) {
		return nil, invalid
	}
	return v, nil
}

// validateValue accepts a plain non-negative decimal such as "19.99". The
// text is stored as given so it reads back byte for byte.
func validateValue(value string) (*string, error) {
	v := optional(value)
	if v == nil {
		return nil, nil
	}
	if strings.ContainsAny(*v, "eE+") {
		return nil, domain.ErrInvalidValue
	}
	amount, err := decimal.NewFromString(*v)
	if err != nil || amount.IsNegative() {
		return nil, domain.ErrInvalidValue
	}
	return v, nil
}

func validateCurrency(value string) (*string, error) {
	v := optional(value)
	if v == nil {
		return nil, nil
	}
	unit, err := currency.ParseISO(*v)
	if err != nil {
		return nil, domain.ErrInvalidCurrency
	}
	code := unit.String()
	return &code, nil
}

// validateSHA256 accepts a hex encoded SHA-256 digest and lowercases it.
func validateSHA256(value string, invalid error) (*string, error) {
	v := optional(value)
	if v == nil {
		return nil, nil
	}
	if len(*v) != sha256HexLength {
		return nil, invalid
	}
	if _, err := hex.DecodeString(*v); err != nil {
		return nil, invalid
	}
	lower := strings.ToLower(*v)
	return &lower, nil
}

// validateDocument accepts an absent document or a JSON object.
func validateDocument(raw json.RawMessage) ([]byte, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	return []byte(trimmed), nil
}
