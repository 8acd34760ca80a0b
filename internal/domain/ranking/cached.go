package ranking

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/okian/scorestat/internal/adapters/cache"
	"github.com/okian/scorestat/pkg/logger"
	"github.com/okian/scorestat/pkg/metrics"
)

const (
	DefaultCacheTTL = 300 * time.Second

	cacheKeyPrefix = "top_students_group_a"
)

// wellKnownParams are the (limit, minSubjects) pairs evicted on invalidation.
var wellKnownParams = [][2]int{
	{10, 2}, {10, 1}, {10, 3},
	{20, 2}, {20, 1}, {20, 3},
	{50, 2}, {50, 1}, {50, 3},
}

// CacheKey derives the unversioned cache key of a ranking query.
func CacheKey(limit, minSubjects int) string {
	sum := md5.Sum(fmt.Appendf(nil, "limit_%d_min_subjects_%d", limit, minSubjects))
	return cacheKeyPrefix + "_" + hex.EncodeToString(sum[:])[:8]
}

func versioned(gen uint64, key string) string {
	return fmt.Sprintf("v%d:%s", gen, key)
}

// Cached memoizes a Ranker in a cache.Cache.
type Cached struct {
	next  Ranker
	cache cache.Cache
	ttl   time.Duration
	gen   atomic.Uint64
	log   logger.Logger
}

// CachedOption configures Cached.
type CachedOption func(*Cached)

// WithTTL sets the entry lifetime. Non-positive values keep the default.
func WithTTL(ttl time.Duration) CachedOption {
	return func(c *Cached) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCacheLogger sets the logger used for degraded cache operations.
func WithCacheLogger(l logger.Logger) CachedOption {
	return func(c *Cached) {
		if l != nil {
			c.log = l
		}
	}
}

// NewCached wraps next. A nil cache disables caching.
func NewCached(next Ranker, c cache.Cache, opts ...CachedOption) *Cached {
	if c == nil {
		c = cache.Nop{}
	}
	cr := &Cached{next: next, cache: c, ttl: DefaultCacheTTL}
	if logger.Initialized() {
		cr.log = logger.Named("ranking.cache")
	} else {
		cr.log = logger.Discard()
	}
	for _, opt := range opts {
		opt(cr)
	}
	return cr
}

// RankGroupA implements Ranker. Cache failures fall through to next.
func (c *Cached) RankGroupA(ctx context.Context, limit, minSubjects int) (Result, error) {
	key := versioned(c.gen.Load(), CacheKey(ClampLimit(limit), minSubjects))

	raw, ok, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.RecordCacheLookup(metrics.CacheError)
		c.log.Warn(ctx, "cache get failed", logger.String("key", key), logger.Error(err))
	case ok:
		var res Result
		derr := msgpack.Unmarshal(raw, &res)
		if derr == nil {
			metrics.RecordCacheLookup(metrics.CacheHit)
			return res, nil
		}
		metrics.RecordCacheLookup(metrics.CacheError)
		c.log.Warn(ctx, "cached ranking undecodable", logger.String("key", key), logger.Error(derr))
	default:
		metrics.RecordCacheLookup(metrics.CacheMiss)
	}

	res, err := c.next.RankGroupA(ctx, limit, minSubjects)
	if err != nil {
		return Result{}, err
	}

	payload, err := encode(res)
	if err != nil {
		c.log.Warn(ctx, "ranking encode failed", logger.Error(err))
		return res, nil
	}
	if err := c.cache.Set(ctx, key, payload, c.ttl); err != nil {
		c.log.Warn(ctx, "cache set failed", logger.String("key", key), logger.Error(err))
	}
	return res, nil
}

// InvalidateCache makes every cached ranking unreachable from this process
// and evicts the well-known keys of the previous generation.
func (c *Cached) InvalidateCache(ctx context.Context) {
	prev := c.gen.Add(1) - 1
	for _, p := range wellKnownParams {
		key := versioned(prev, CacheKey(p[0], p[1]))
		if err := c.cache.Delete(ctx, key); err != nil {
			c.log.Warn(ctx, "cache delete failed", logger.String("key", key), logger.Error(err))
		}
	}
	c.log.Debug(ctx, "ranking cache invalidated", logger.Int64("generation", int64(prev+1)))
}

func encode(res Result) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(res); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
