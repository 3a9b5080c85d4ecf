package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/MoonletLabs/tempo-analytics/internal/cache"
	"github.com/MoonletLabs/tempo-analytics/internal/metrics"
)

// Source is the lookup surface CachedSource wraps.
type Source interface {
	HeadBlock(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error)
}

const (
	// DefaultHeadTTL keeps head lookups fresh enough for model building while
	// letting concurrent callers share one upstream call.
	DefaultHeadTTL = 5 * time.Second
	// DefaultTimestampTTL is long: a block's timestamp never changes, the TTL
	// only bounds memory alongside the LRU cap.
	DefaultTimestampTTL = 10 * time.Minute

	headCacheKey = "head"
)

// CachedSource caches head-block and block-timestamp lookups in the shared
// expiring cache, so repeated model builds and concurrent callers don't each
// pay an upstream call. Consumers that need the instantaneous head must use
// the underlying source directly.
type CachedSource struct {
	source  Source
	cache   *cache.Cache[string, uint64]
	headTTL time.Duration
	tsTTL   time.Duration
}

// NewCachedSource wraps source with lookup caching. Zero TTLs fall back to
// defaults.
func NewCachedSource(source Source, c *cache.Cache[string, uint64], headTTL, tsTTL time.Duration) *CachedSource {
	if headTTL == 0 {
		headTTL = DefaultHeadTTL
	}
	if tsTTL == 0 {
		tsTTL = DefaultTimestampTTL
	}
	return &CachedSource{source: source, cache: c, headTTL: headTTL, tsTTL: tsTTL}
}

// HeadBlock returns the cached chain head if within TTL, otherwise fetches
// fresh.
func (s *CachedSource) HeadBlock(ctx context.Context) (uint64, error) {
	if head, ok := s.cache.Get(headCacheKey); ok {
		metrics.LookupCacheHits.WithLabelValues("head", "hit").Inc()
		return head, nil
	}
	metrics.LookupCacheHits.WithLabelValues("head", "miss").Inc()

	head, err := s.source.HeadBlock(ctx)
	if err != nil {
		return 0, err
	}

	s.cache.Set(headCacheKey, head, s.headTTL)
	return head, nil
}

// BlockTimestamp returns the cached timestamp for the block, fetching it once
// per TTL window.
func (s *CachedSource) BlockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error) {
	key := fmt.Sprintf("ts:%d", blockNumber)
	if ts, ok := s.cache.Get(key); ok {
		metrics.LookupCacheHits.WithLabelValues("timestamp", "hit").Inc()
		return ts, nil
	}
	metrics.LookupCacheHits.WithLabelValues("timestamp", "miss").Inc()

	ts, err := s.source.BlockTimestamp(ctx, blockNumber)
	if err != nil {
		return 0, err
	}

	s.cache.Set(key, ts, s.tsTTL)
	return ts, nil
}
