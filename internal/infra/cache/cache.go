// Package cache provides in-memory caching for probed media metadata, so
// repeated status checks for the same URL avoid re-invoking the engine.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/streamsaavy/streamsaavy-go/internal/domain"
)

// MediaInfoCache caches probe results keyed by URL.
type MediaInfoCache struct {
	cache *gocache.Cache
}

// NewMediaInfoCache creates a cache with the given TTL and cleanup interval.
func NewMediaInfoCache(ttl, cleanupInterval time.Duration) *MediaInfoCache {
	return &MediaInfoCache{
		cache: gocache.New(ttl, cleanupInterval),
	}
}

// DefaultMediaInfoCache creates a cache with a 1 hour TTL.
func DefaultMediaInfoCache() *MediaInfoCache {
	return NewMediaInfoCache(time.Hour, 10*time.Minute)
}

// Get retrieves cached metadata for a URL.
func (c *MediaInfoCache) Get(url string) (*domain.MediaInfo, bool) {
	if item, found := c.cache.Get(url); found {
		if info, ok := item.(*domain.MediaInfo); ok {
			return info, true
		}
	}
	return nil, false
}

// Set stores metadata for a URL with the default TTL.
func (c *MediaInfoCache) Set(url string, info *domain.MediaInfo) {
	c.cache.Set(url, info, gocache.DefaultExpiration)
}

// Delete removes a URL's cached metadata.
func (c *MediaInfoCache) Delete(url string) {
	c.cache.Delete(url)
}

// ItemCount returns the number of cached entries.
func (c *MediaInfoCache) ItemCount() int {
	return c.cache.ItemCount()
}
