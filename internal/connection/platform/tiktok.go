package platform

import "strings"

// TikTok is the Events API destination.
type TikTok struct{}

type TikTokConfig struct {
	PixelCode     string `json:"pixel_code" validate:"required,alphanum"`
	TestEventCode string `json:"test_event_code,omitempty" validate:"omitempty,alphanum"`
}

func (TikTok) Platform() string { return "tiktok" }

func (TikTok) Normalize(config map[string]any) (map[string]any, error) {
	var cfg TikTokConfig
	if err := decode(config, &cfg); err != nil {
		return nil, err
	}
	if err := check(cfg); err != nil {
		return nil, err
	}
	cfg.PixelCode = strings.ToUpper(cfg.PixelCode)
	return document(cfg)
}
