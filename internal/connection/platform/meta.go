package platform

// Meta is the Conversions API destination. pixel_id is the numeric dataset id.
type Meta struct{}

type MetaConfig struct {
	PixelID       string `json:"pixel_id" validate:"required,number"`
	TestEventCode string `json:"test_event_code,omitempty" validate:"omitempty,alphanum"`
}

func (Meta) Platform() string { return "meta" }

func (Meta) Normalize(config map[string]any) (map[string]any, error) {
	var cfg MetaConfig
	if err := decode(config, &cfg); err != nil {
		return nil, err
	}
	if err := check(cfg); err != nil {
		return nil, err
	}
	return document(cfg)
}
