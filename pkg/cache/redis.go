package cache

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bastionai/bastion/pkg/detect"
)

// keyPrefix namespaces signal entries so the cache can share a Redis
// instance with other tenants.
const keyPrefix = "bastion:signals:"

// Redis is a SignalCache backed by a Redis instance. Eviction is left to
// Redis (maxmemory-policy allkeys-lru matches the in-memory backend's
// behavior); the TTL here is a safety net, not the eviction mechanism.
// Backend failures degrade to misses so the pipeline never depends on
// Redis being up.
type Redis struct {
	client *redis.Client
	ttl    time.Duration

	// OnCorrupt, when set, is invoked once per corrupt entry dropped by
	// Get, so the owner can count invariant violations. Optional.
	OnCorrupt func()
}

// NewRedis creates a Redis-backed cache. Zero TTL stores entries without
// expiry.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func redisKey(key uint64) string {
	return keyPrefix + strconv.FormatUint(key, 16)
}

// Get implements SignalCache.
func (c *Redis) Get(ctx context.Context, key uint64) ([]detect.Signal, bool) {
	data, err := c.client.Get(ctx, redisKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Printf("[WARN] signal cache get failed, treating as miss: %v", err)
		return nil, false
	}

	var signals []detect.Signal
	if err := json.Unmarshal(data, &signals); err != nil {
		// A corrupt entry must never reach the pipeline; drop it.
		log.Printf("[WARN] signal cache entry corrupt, dropping: %v", err)
		c.client.Del(ctx, redisKey(key))
		if c.OnCorrupt != nil {
			c.OnCorrupt()
		}
		return nil, false
	}
	return signals, true
}

// Put implements SignalCache.
func (c *Redis) Put(ctx context.Context, key uint64, signals []detect.Signal) {
	data, err := json.Marshal(signals)
	if err != nil {
		log.Printf("[WARN] signal cache marshal failed: %v", err)
		return
	}
	if err := c.client.Set(ctx, redisKey(key), data, c.ttl).Err(); err != nil {
		log.Printf("[WARN] signal cache put failed: %v", err)
	}
}
