package redis

import (
	"context"
	"errors"
	"os"
	"sort"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/nerrad567/gray-logic-homey/internal/infrastructure/config"
)

func connectOrSkip(t *testing.T) *StateCache {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("set REDIS_ADDR to run Redis tests")
	}
	rdb, err := Connect(context.Background(), config.RedisConfig{Enabled: true, Addr: addr, DB: 15})
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() {
		rdb.FlushDB(context.Background())
		rdb.Close() //nolint:errcheck // Test cleanup
	})
	return NewStateCache(rdb, time.Minute)
}

func TestConnectDisabled(t *testing.T) {
	_, err := Connect(context.Background(), config.RedisConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestKey(t *testing.T) {
	if got := Key("light.kitchen"); got != "entity:state:light.kitchen" {
		t.Errorf("Key() = %q", got)
	}
}

func TestNewStateCacheNegativeTTL(t *testing.T) {
	c := NewStateCache(nil, -time.Second)
	if c.ttl != 0 {
		t.Errorf("ttl = %v, want 0", c.ttl)
	}
}

// cached reads a key directly, returning nil when it is absent.
func cached(t *testing.T, cache *StateCache, entityID string) []byte {
	t.Helper()
	b, err := cache.rdb.Get(context.Background(), Key(entityID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil
	}
	if err != nil {
		t.Fatalf("reading %s: %v", entityID, err)
	}
	return b
}

func TestStateCache(t *testing.T) {
	cache := connectOrSkip(t)
	ctx := context.Background()

	for _, id := range []string{"light.a", "light.b", "switch.c"} {
		if err := cache.Set(ctx, id, []byte(`{"state":"ON"}`)); err != nil {
			t.Fatalf("Set(%s) error = %v", id, err)
		}
	}
	if got := cached(t, cache, "light.a"); string(got) != `{"state":"ON"}` {
		t.Errorf("cached light.a = %q", got)
	}
	if ttl := cache.rdb.TTL(ctx, Key("light.a")).Val(); ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want up to a minute", ttl)
	}

	removed, err := cache.RemoveAllExcept(ctx, []string{"light.a"})
	if err != nil {
		t.Fatalf("RemoveAllExcept() error = %v", err)
	}
	sort.Strings(removed)
	if len(removed) != 2 || removed[0] != "light.b" || removed[1] != "switch.c" {
		t.Errorf("removed = %v", removed)
	}
	if got := cached(t, cache, "light.b"); got != nil {
		t.Errorf("light.b still cached: %q", got)
	}
	if got := cached(t, cache, "light.a"); got == nil {
		t.Error("light.a removed")
	}
}
