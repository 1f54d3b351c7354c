package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	xxhash "github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kapu/mines-leaderboard-go/internal/cache"
	"github.com/kapu/mines-leaderboard-go/internal/obslog"
	"github.com/kapu/mines-leaderboard-go/internal/reqid"
)

// Adapter fronts the durable key/value store with a process-local cache.
// Every operation is fallible but never raises to the caller: failures are
// logged with a correlation id and resolve to the caller-supplied default.
type Adapter struct {
	rdb      *redis.Client
	local    *cache.Cache
	localTTL time.Duration
	log      *zap.Logger
}

func New(rdb *redis.Client, local *cache.Cache, localTTL time.Duration) *Adapter {
	if localTTL <= 0 {
		localTTL = time.Minute
	}
	return &Adapter{
		rdb:      rdb,
		local:    local,
		localTTL: localTTL,
		log:      obslog.Named("kvstore"),
	}
}

// CacheKey is the single logical-key→cache-key derivation used by every
// caller, so one invalidation clears one logical key everywhere.
func CacheKey(logical string) string {
	return fmt.Sprintf("kv:%016x", xxhash.Sum64String(logical))
}

// incrScript bundles INCRBY with a TTL set on the first hit of the key so
// counters self-expire without a separate round trip.
var incrScript = redis.NewScript(`
local v = redis.call("INCRBY", KEYS[1], ARGV[1])
if v == tonumber(ARGV[1]) then
    redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return v
`)

// Get returns the stored value for key, consulting the local cache first.
// Negative lookups are not cached: a concurrent writer may be in flight.
func (a *Adapter) Get(ctx context.Context, key, def string) string {
	ck := CacheKey(key)
	if v, ok := a.local.Get(ck); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}

	val, err := a.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return def
	}
	if err != nil {
		a.log.Warn("store get failed",
			zap.String("key", key), zap.String("cid", reqid.From(ctx)), zap.Error(err))
		return def
	}

	a.local.Set(ck, val, a.localTTL)
	return val
}

// GetJSON decodes the stored JSON value into out. Returns false when the key
// is absent, the store errs, or the payload does not parse.
func (a *Adapter) GetJSON(ctx context.Context, key string, out any) bool {
	raw := a.Get(ctx, key, "")
	if raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		a.log.Warn("store value decode failed",
			zap.String("key", key), zap.String("cid", reqid.From(ctx)), zap.Error(err))
		return false
	}
	return true
}

// Put writes through to the durable store, then updates (not invalidates)
// the local cache. The cache TTL is bounded by the store expiry when one is
// supplied.
func (a *Adapter) Put(ctx context.Context, key, val string, ttl time.Duration) bool {
	if err := a.rdb.Set(ctx, key, val, ttl).Err(); err != nil {
		a.log.Warn("store put failed",
			zap.String("key", key), zap.String("cid", reqid.From(ctx)), zap.Error(err))
		return false
	}
	localTTL := a.localTTL
	if ttl > 0 && ttl < localTTL {
		localTTL = ttl
	}
	a.local.Set(CacheKey(key), val, localTTL)
	return true
}

func (a *Adapter) PutJSON(ctx context.Context, key string, val any, ttl time.Duration) bool {
	raw, err := json.Marshal(val)
	if err != nil {
		a.log.Warn("store value encode failed",
			zap.String("key", key), zap.String("cid", reqid.From(ctx)), zap.Error(err))
		return false
	}
	return a.Put(ctx, key, string(raw), ttl)
}

// Incr atomically adds delta to the counter at key, arming ttl on the first
// hit. Counters bypass the local cache. Returns 0 on store failure.
func (a *Adapter) Incr(ctx context.Context, key string, delta int64, ttl time.Duration) int64 {
	n, err := incrScript.Run(ctx, a.rdb, []string{key}, delta, ttl.Milliseconds()).Int64()
	if err != nil {
		a.log.Warn("store incr failed",
			zap.String("key", key), zap.String("cid", reqid.From(ctx)), zap.Error(err))
		return 0
	}
	return n
}

// CounterValue reads an integer key, bypassing the local cache so callers
// always see the durable count. Absent or failed reads resolve to 0.
func (a *Adapter) CounterValue(ctx context.Context, key string) int64 {
	n, err := a.rdb.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0
	}
	if err != nil {
		a.log.Warn("store counter read failed",
			zap.String("key", key), zap.String("cid", reqid.From(ctx)), zap.Error(err))
		return 0
	}
	return n
}

// Exists reports whether key is present, without caching the answer.
func (a *Adapter) Exists(ctx context.Context, key string) bool {
	n, err := a.rdb.Exists(ctx, key).Result()
	if err != nil {
		a.log.Warn("store exists failed",
			zap.String("key", key), zap.String("cid", reqid.From(ctx)), zap.Error(err))
		return false
	}
	return n > 0
}

func (a *Adapter) Delete(ctx context.Context, key string) {
	if err := a.rdb.Del(ctx, key).Err(); err != nil {
		a.log.Warn("store delete failed",
			zap.String("key", key), zap.String("cid", reqid.From(ctx)), zap.Error(err))
	}
	a.local.Delete(CacheKey(key))
}

// Invalidate drops only the local cache entry for key; the durable value is
// untouched.
func (a *Adapter) Invalidate(key string) {
	a.local.Delete(CacheKey(key))
}

// MGet issues all underlying gets concurrently and joins. Order of the
// result matches keys; failed or absent slots hold def.
func (a *Adapter) MGet(ctx context.Context, keys []string, def string) []string {
	out := make([]string, len(keys))
	var g errgroup.Group
	for i, k := range keys {
		i, k := i, k
		g.Go(func() error {
			out[i] = a.Get(ctx, k, def)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// MPut issues all underlying puts concurrently; returns true only when every
// write succeeded.
func (a *Adapter) MPut(ctx context.Context, vals map[string]string, ttl time.Duration) bool {
	var (
		g  errgroup.Group
		mu sync.Mutex
		ok = true
	)
	for k, v := range vals {
		k, v := k, v
		g.Go(func() error {
			if !a.Put(ctx, k, v, ttl) {
				mu.Lock()
				ok = false
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return ok
}

// CacheStats exposes local cache counters for the admin surface.
func (a *Adapter) CacheStats() cache.Stats { return a.local.Stats() }
