package testutil

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCandidates are probed in order when REDIS_ADDR is unset.
var redisCandidates = []string{"redis:6379", "localhost:6379", "localhost:56379"}

// SetupTestRedis returns a client on an otherwise unused logical DB, flushed before use.
// Skips when no Redis answers unless TEST_REQUIRE_REDIS is set.
func SetupTestRedis(t TestingTB) *redis.Client {
	t.Helper()
	skipInShort(t)

	addr, ok := findRedis(t)
	if !ok {
		skipOrFail(t, "TEST_REQUIRE_REDIS", "redis not available for testing")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: reserveRedisDB(t, addr)})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.FlushDB(ctx).Err(); err != nil {
		closeAndLog(t, "redis client", client)
		skipOrFail(t, "TEST_REQUIRE_REDIS", "redis flush failed at "+addr+":", err)
	}
	return client
}

func findRedis(t TestingTB) (string, bool) {
	candidates := redisCandidates
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		candidates = []string{addr}
	}
	for _, addr := range candidates {
		if pingRedis(t, addr) {
			return addr, true
		}
	}
	return "", false
}

func pingRedis(t TestingTB, addr string) bool {
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer closeAndLog(t, "redis probe", client)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Logf("redis not available at %s: %v", addr, err)
		return false
	}
	return true
}

// reserveRedisDB picks a logical DB in [1..15] guarded by a lock key in DB 0 so parallel
// test packages do not flush each other. TEST_REDIS_DB overrides the search.
func reserveRedisDB(t TestingTB, addr string) int {
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return i
		}
		t.Logf("invalid TEST_REDIS_DB=%q, selecting automatically", v)
	}

	meta := redis.NewClient(&redis.Options{Addr: addr})
	defer closeAndLog(t, "redis meta client", meta)

	token := fmt.Sprintf("%d:%d", os.Getpid(), time.Now().UnixNano())
	for i := 1; i <= 15; i++ {
		lockKey := fmt.Sprintf("captions:testutil:db_lock:%d", i)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		ok, err := meta.SetNX(ctx, lockKey, token, 30*time.Minute).Result()
		cancel()
		if err != nil || !ok {
			continue
		}
		t.Cleanup(func() { releaseRedisDB(t, addr, lockKey) })
		return i
	}
	t.Logf("no free redis DB at %s, using DB 1", addr)
	return 1
}

func releaseRedisDB(t TestingTB, addr, lockKey string) {
	c := redis.NewClient(&redis.Options{Addr: addr})
	defer closeAndLog(t, "redis cleanup client", c)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Del(ctx, lockKey).Err(); err != nil {
		t.Logf("warning: release redis db lock %s: %v", lockKey, err)
	}
}
