// Package cache provides caching infrastructure for hot read paths.
package cache

import (
	"context"
	"sync"
	"time"

	"stockbook/internal/core/id"
	"stockbook/internal/domain/catalogs/hotel"
	"stockbook/pkg/logger"
)

// DefaultConfigTTL is how long a cached hotel configuration stays fresh.
const DefaultConfigTTL = 5 * time.Minute

type cachedConfig struct {
	cfg       hotel.Config
	expiresAt time.Time
}

// HotelConfigCache is a TTL read-through cache over a hotel.ConfigProvider.
// Movement recording and stocktake recomputation resolve the hotel config on
// every call; this keeps those paths off the database.
type HotelConfigCache struct {
	source hotel.ConfigProvider
	ttl    time.Duration

	mu      sync.RWMutex
	entries map[id.ID]cachedConfig
}

var _ hotel.ConfigProvider = (*HotelConfigCache)(nil)

// NewHotelConfigCache wraps a config provider with a TTL cache.
// A non-positive ttl falls back to DefaultConfigTTL.
func NewHotelConfigCache(source hotel.ConfigProvider, ttl time.Duration) *HotelConfigCache {
	if ttl <= 0 {
		ttl = DefaultConfigTTL
	}
	return &HotelConfigCache{
		source:  source,
		ttl:     ttl,
		entries: make(map[id.ID]cachedConfig),
	}
}

// ConfigFor returns the hotel's configuration, loading from the underlying
// provider when the cached entry is missing or stale. Errors from the source
// are returned as-is and never cached.
func (c *HotelConfigCache) ConfigFor(ctx context.Context, hotelID id.ID) (hotel.Config, error) {
	now := time.Now()

	c.mu.RLock()
	entry, ok := c.entries[hotelID]
	c.mu.RUnlock()

	if ok && now.Before(entry.expiresAt) {
		return copyConfig(entry.cfg), nil
	}

	cfg, err := c.source.ConfigFor(ctx, hotelID)
	if err != nil {
		return hotel.Config{}, err
	}

	c.mu.Lock()
	c.entries[hotelID] = cachedConfig{cfg: copyConfig(cfg), expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()

	logger.Debug(ctx, "hotel config refreshed", "hotelId", hotelID, "ttl", c.ttl)
	return cfg, nil
}

// Invalidate drops the cached entry for one hotel. Catalog updates call this
// so config changes take effect without waiting out the TTL.
func (c *HotelConfigCache) Invalidate(hotelID id.ID) {
	c.mu.Lock()
	delete(c.entries, hotelID)
	c.mu.Unlock()
}

// InvalidateAll clears the whole cache.
func (c *HotelConfigCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[id.ID]cachedConfig)
	c.mu.Unlock()
}

// copyConfig deep-copies the slice-valued fields so callers cannot mutate
// cached state.
func copyConfig(cfg hotel.Config) hotel.Config {
	out := cfg
	out.AlertRules = append([]hotel.AlertRule(nil), cfg.AlertRules...)
	return out
}
