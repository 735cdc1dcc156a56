package cache

import (
	"context"
	"errors"
	"time"

	pkgcache "TrustPulse/pkg/cache"
)

// LayeredBytesCache adapts the two-level pkg/cache service to the BytesCache
// API used by the query layer.
type LayeredBytesCache struct {
	svc pkgcache.Service
}

func NewLayeredBytesCache(svc pkgcache.Service) *LayeredBytesCache {
	return &LayeredBytesCache{svc: svc}
}

func (c *LayeredBytesCache) GetBytes(key string) ([]byte, bool, error) {
	var b []byte
	if err := c.svc.Get(context.Background(), key, &b); err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (c *LayeredBytesCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	return c.svc.Set(context.Background(), key, value, ttl)
}
