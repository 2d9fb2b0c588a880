package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// PlatformSpec describes one platform the application accepts connections for.
type PlatformSpec struct {
	Key        string   `mapstructure:"key"`
	Enabled    bool     `mapstructure:"enabled"`
	Directions []string `mapstructure:"directions"`
}

// PlatformCatalog is the set of platforms enabled for new connections.
type PlatformCatalog struct {
	Platforms []PlatformSpec `mapstructure:"platforms"`
}

func DefaultPlatformCatalog() PlatformCatalog {
	return PlatformCatalog{
		Platforms: []PlatformSpec{
			{Key: "shopify", Enabled: true, Directions: []string{"source"}},
			{Key: "meta", Enabled: true, Directions: []string{"destination"}},
			{Key: "tiktok", Enabled: true, Directions: []string{"destination"}},
		},
	}
}

// Allows reports whether platform may be connected in the given direction.
func (c PlatformCatalog) Allows(platform, direction string) bool {
	platform = strings.ToLower(strings.TrimSpace(platform))
	direction = strings.ToLower(strings.TrimSpace(direction))
	for _, p := range c.Platforms {
		if !p.Enabled || !strings.EqualFold(p.Key, platform) {
			continue
		}
		for _, d := range p.Directions {
			if strings.EqualFold(d, direction) {
				return true
			}
		}
	}
	return false
}

// Enabled reports whether platform appears in the catalog and is switched on.
func (c PlatformCatalog) Enabled(platform string) bool {
	platform = strings.ToLower(strings.TrimSpace(platform))
	for _, p := range c.Platforms {
		if p.Enabled && strings.EqualFold(p.Key, platform) {
			return true
		}
	}
	return false
}

type PlatformCatalogHolder struct {
	current atomic.Value // holds PlatformCatalog
}

// NewStaticPlatformCatalogHolder returns a holder that never reloads.
func NewStaticPlatformCatalogHolder(catalog PlatformCatalog) *PlatformCatalogHolder {
	holder := &PlatformCatalogHolder{}
	holder.current.Store(catalog)
	return holder
}

// NewPlatformCatalogHolder reads platforms.yml and keeps it fresh as the file changes.
// Without a file the built-in defaults are used.
func NewPlatformCatalogHolder(log *zap.Logger) (*PlatformCatalogHolder, error) {
	log = log.Named("config.platforms")

	v := viper.New()
	v.SetConfigName("platforms")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/clarity/config")
	v.AddConfigPath("/etc/clarity")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CLARITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fromFile := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fromFile = false
	}

	cfg := DefaultPlatformCatalog()
	if fromFile {
		if err := v.Unmarshal(&cfg); err != nil {
			return nil, err
		}
	}
	if err := validatePlatformCatalog(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticPlatformCatalogHolder(cfg)
	if !fromFile {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PlatformCatalog
		if err := v.Unmarshal(&updated); err != nil {
			log.Warn("platform catalog reload failed", zap.Error(err))
			return
		}
		if err := validatePlatformCatalog(updated); err != nil {
			log.Warn("invalid platform catalog ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("platform catalog reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *PlatformCatalogHolder) Get() PlatformCatalog {
	return h.current.Load().(PlatformCatalog)
}

func validatePlatformCatalog(cfg PlatformCatalog) error {
	if len(cfg.Platforms) == 0 {
		return errors.New("platforms cannot be empty")
	}
	seen := map[string]struct{}{}
	for _, p := range cfg.Platforms {
		key := strings.ToLower(strings.TrimSpace(p.Key))
		if key == "" {
			return errors.New("platform key is required")
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("platform %q declared twice", key)
		}
		seen[key] = struct{}{}
		if len(p.Directions) == 0 {
			return fmt.Errorf("platform %q has no directions", key)
		}
		for _, d := range p.Directions {
			switch strings.ToLower(strings.TrimSpace(d)) {
			case "source", "destination":
			default:
				return fmt.Errorf("platform %q has unknown direction %q", key, d)
			}
		}
	}
	return nil
}
