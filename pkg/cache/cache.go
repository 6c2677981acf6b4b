// Package cache provides a cross-run cache for ASN metadata: a typed
// in-process LRU in front of an optional Redis backend.
package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"github.com/hervehildenbrand/bgp-gateway/pkg/models"
)

const (
	defaultSize = 16384
	keyPrefix   = "bgpgw:asn:"
)

// ASNCache caches ASNInfo lookups. A nil *ASNCache is valid and caches
// nothing, so call sites need no guards.
type ASNCache struct {
	lru   *lru.Cache[string, models.ASNInfo]
	redis *redis.Client
	ttl   time.Duration
}

// New creates a cache with the given LRU capacity. rdb may be nil for an
// in-process-only cache; ttl applies to Redis entries.
func New(size int, rdb *redis.Client, ttl time.Duration) (*ASNCache, error) {
	if size <= 0 {
		size = defaultSize
	}
	l, err := lru.New[string, models.ASNInfo](size)
	if err != nil {
		return nil, err
	}
	return &ASNCache{lru: l, redis: rdb, ttl: ttl}, nil
}

// Get returns cached metadata for an ASN.
func (c *ASNCache) Get(ctx context.Context, asn string) (models.ASNInfo, bool) {
	if c == nil {
		return models.ASNInfo{}, false
	}
	if info, ok := c.lru.Get(asn); ok {
		return info, true
	}
	if c.redis == nil {
		return models.ASNInfo{}, false
	}

	raw, err := c.redis.Get(ctx, keyPrefix+asn).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[cache] redis get failed for AS%s: %v", asn, err)
		}
		return models.ASNInfo{}, false
	}
	var info models.ASNInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return models.ASNInfo{}, false
	}
	c.lru.Add(asn, info)
	return info, true
}

// Put stores metadata for an ASN. Redis write failures are logged, never
// surfaced.
func (c *ASNCache) Put(ctx context.Context, asn string, info models.ASNInfo) {
	if c == nil {
		return
	}
	c.lru.Add(asn, info)
	if c.redis == nil {
		return
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, keyPrefix+asn, raw, c.ttl).Err(); err != nil {
		log.Printf("[cache] redis set failed for AS%s: %v", asn, err)
	}
}

// Len returns the number of entries held in process.
func (c *ASNCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
