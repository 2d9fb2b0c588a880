// Package platform holds the config schema of every platform a website can
// be connected to.
package platform

import (
	"strings"

	"github.com/smallbiznis/clarity/internal/connection/domain"
)

// Schema validates and normalises the config document of one platform.
type Schema interface {
	Platform() string
	Normalize(config map[string]any) (map[string]any, error)
}

type Registry struct {
	schemas map[string]Schema
}

func NewRegistry(schemas ...Schema) *Registry {
	registry := &Registry{schemas: map[string]Schema{}}
	for _, schema := range schemas {
		if schema == nil {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(schema.Platform()))
		if key == "" {
			continue
		}
		registry.schemas[key] = schema
	}
	return registry
}

// NewDefaultRegistry knows every platform the application ships schemas for.
func NewDefaultRegistry() *Registry {
	return NewRegistry(Meta{}, Shopify{}, TikTok{})
}

func (r *Registry) Exists(platform string) bool {
	if r == nil {
		return false
	}
	_, ok := r.schemas[strings.ToLower(strings.TrimSpace(platform))]
	return ok
}

func (r *Registry) Normalize(platform string, config map[string]any) (map[string]any, error) {
	if r == nil {
		return nil, domain.ErrInvalidPlatform
	}
	schema, ok := r.schemas[strings.ToLower(strings.TrimSpace(platform))]
	if !ok {
		return nil, domain.ErrInvalidPlatform
	}
	return schema.Normalize(config)
}
