// Package redis caches the latest entity state in Redis so dashboards and
// other services can read it without subscribing to MQTT.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/nerrad567/gray-logic-homey/internal/infrastructure/config"
)

const (
	keyPrefix   = "entity:state:"
	pingTimeout = 5 * time.Second
	scanCount   = 100
)

// ErrDisabled is returned by Connect when redis.enabled is false.
var ErrDisabled = errors.New("redis: disabled in configuration")

// Connect opens a client and verifies it with PING.
func Connect(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// StateCache stores one JSON document per entity with a TTL.
type StateCache struct {
	rdb *goredis.Client
	ttl time.Duration
}

// NewStateCache wraps rdb. A non-positive ttl keeps keys forever.
func NewStateCache(rdb *goredis.Client, ttl time.Duration) *StateCache {
	if ttl < 0 {
		ttl = 0
	}
	return &StateCache{rdb: rdb, ttl: ttl}
}

// Key returns the Redis key holding an entity's state.
func Key(entityID string) string { return keyPrefix + entityID }

// Set stores the state document for entityID.
func (c *StateCache) Set(ctx context.Context, entityID string, stateJSON []byte) error {
	return c.rdb.Set(ctx, Key(entityID), stateJSON, c.ttl).Err()
}

// RemoveAllExcept deletes cached states whose id is not in keepIDs and
// returns the removed ids.
func (c *StateCache) RemoveAllExcept(ctx context.Context, keepIDs []string) ([]string, error) {
	keep := make(map[string]struct{}, len(keepIDs))
	for _, id := range keepIDs {
		if id != "" {
			keep[id] = struct{}{}
		}
	}

	var removed []string
	iter := c.rdb.Scan(ctx, 0, Key("*"), scanCount).Iterator()
	for iter.Next(ctx) {
		id, ok := strings.CutPrefix(iter.Val(), keyPrefix)
		if !ok {
			continue
		}
		if _, kept := keep[id]; kept {
			continue
		}
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, err
		}
		removed = append(removed, id)
	}
	return removed, iter.Err()
}
