package platform

import (
	"net/url"
	"regexp"
	"strings"
)

const shopifyDomain = ".myshopify.com"

var shopLabel = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Shopify is the order source. shop_url is stored as https://<shop>.myshopify.com.
type Shopify struct{}

type ShopifyConfig struct {
	ShopURL string `json:"shop_url" validate:"required,myshopify"`
}

func (Shopify) Platform() string { return "shopify" }

func (Shopify) Normalize(config map[string]any) (map[string]any, error) {
	var cfg ShopifyConfig
	if err := decode(config, &cfg); err != nil {
		return nil, err
	}
	if err := check(cfg); err != nil {
		return nil, err
	}
	cfg.ShopURL, _ = canonicalShopURL(cfg.ShopURL)
	return document(cfg)
}

// canonicalShopURL accepts a bare shop host or an https URL without path,
// port or credentials.
func canonicalShopURL(raw string) (string, bool) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme != "https" {
		return "", false
	}
	if parsed.User != nil || parsed.Port() != "" || strings.Trim(parsed.Path, "/") != "" || parsed.RawQuery != "" || parsed.Fragment != "" {
		return "", false
	}

	host := strings.ToLower(parsed.Hostname())
	shop, ok := strings.CutSuffix(host, shopifyDomain)
	if !ok || !shopLabel.MatchString(shop) {
		return "", false
	}
	return "https://" + host, true
}
