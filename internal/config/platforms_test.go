package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPlatformCatalog(t *testing.T) {
	catalog := DefaultPlatformCatalog()

	assert.True(t, catalog.Allows("shopify", "source"))
	assert.False(t, catalog.Allows("shopify", "destination"))
	assert.True(t, catalog.Allows("META", "destination"))
	assert.True(t, catalog.Allows("tiktok", "destination"))
	assert.False(t, catalog.Allows("snapchat", "destination"))
	assert.NoError(t, validatePlatformCatalog(catalog))
}

func TestDisabledPlatformIsNotAllowed(t *testing.T) {
	catalog := PlatformCatalog{Platforms: []PlatformSpec{
		{Key: "meta", Enabled: false, Directions: []string{"destination"}},
	}}

	assert.False(t, catalog.Enabled("meta"))
	assert.False(t, catalog.Allows("meta", "destination"))
}

func TestValidatePlatformCatalog(t *testing.T) {
	cases := map[string]PlatformCatalog{
		"empty":             {},
		"missing key":       {Platforms: []PlatformSpec{{Directions: []string{"source"}}}},
		"no directions":     {Platforms: []PlatformSpec{{Key: "meta"}}},
		"unknown direction": {Platforms: []PlatformSpec{{Key: "meta", Directions: []string{"sideways"}}}},
		"duplicate": {Platforms: []PlatformSpec{
			{Key: "meta", Directions: []string{"destination"}},
			{Key: "Meta", Directions: []string{"destination"}},
		}},
	}
	for name, catalog := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, validatePlatformCatalog(catalog))
		})
	}
}

func TestStaticHolder(t *testing.T) {
	holder := NewStaticPlatformCatalogHolder(DefaultPlatformCatalog())
	assert.True(t, holder.Get().Allows("shopify", "source"))
}
