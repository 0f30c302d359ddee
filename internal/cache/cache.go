// Package cache is a Redis-backed response cache for the Query Server. It
// is a pure performance accessory: the recommender's correctness never
// depends on it, and a cache miss or a down Redis simply falls through to
// a live computation.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"lotus/internal/recommender"
)

const ttl = 10 * time.Minute

// Cache wraps a redis client. A nil Cache is valid and makes every
// method a no-op.
type Cache struct {
	client *redis.Client
	log    *slog.Logger
}

// New connects to addr. Connectivity is not verified here; a down Redis
// surfaces as cache misses, not startup failures.
func New(addr string, log *slog.Logger) *Cache {
	if addr == "" {
		return nil
	}
	return &Cache{client: redis.NewClient(&redis.Options{Addr: addr}), log: log}
}

// Key derives a deterministic cache key from the query parameters. Tag
// and ban sets are sorted so that equivalent queries in different
// argument orders share a cache entry.
func Key(uid uint64, requiredTags []uint16, externalBans []uint64) string {
	tags := append([]uint16(nil), requiredTags...)
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	bans := append([]uint64(nil), externalBans...)
	sort.Slice(bans, func(i, j int) bool { return bans[i] < bans[j] })

	var b strings.Builder
	fmt.Fprintf(&b, "lotus:recs:%d:", uid)
	for _, t := range tags {
		fmt.Fprintf(&b, "t%d,", t)
	}
	for _, u := range bans {
		fmt.Fprintf(&b, "b%d,", u)
	}
	return b.String()
}

// Get returns a cached recommendation list, if present.
func (c *Cache) Get(ctx context.Context, key string) ([]recommender.Recommendation, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var recs []recommender.Recommendation
	if err := json.Unmarshal(raw, &recs); err != nil {
		c.log.Warn("cache payload unreadable, treating as a miss", "key", key, "error", err)
		return nil, false
	}
	return recs, true
}

// Set stores recs under key with a fixed TTL. A write failure is logged
// and ignored.
func (c *Cache) Set(ctx context.Context, key string, recs []recommender.Recommendation) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(recs)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.log.Warn("failed to populate recommendation cache", "key", key, "error", err)
	}
}
