package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/MoonletLabs/tempo-analytics/internal/cache"
	"github.com/MoonletLabs/tempo-analytics/internal/core/domain"
	"github.com/MoonletLabs/tempo-analytics/internal/metrics"
)

// ChainSource is the provider surface the time model and range estimator
// sample from.
type ChainSource interface {
	HeadBlock(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error)
}

const (
	// DefaultSampleOffset is how many blocks behind head the older sample
	// point sits. Large enough to smooth local block-time variance.
	DefaultSampleOffset = 100_000
	// DefaultModelTTL keeps the cached model fresh enough to track chain
	// progress while letting bursts of calls share one model.
	DefaultModelTTL = 30 * time.Second

	modelCacheKey = "time_model"
)

// TimeModelSource builds and caches the linear block-time model used for
// approximate timestamp assignment.
type TimeModelSource struct {
	source       ChainSource
	cache        *cache.Cache[string, domain.TimeModel]
	ttl          time.Duration
	sampleOffset uint64
}

// NewTimeModelSource creates a model source over the given chain source and
// shared cache. A zero ttl or sampleOffset falls back to defaults.
func NewTimeModelSource(src ChainSource, c *cache.Cache[string, domain.TimeModel], ttl time.Duration, sampleOffset uint64) *TimeModelSource {
	if ttl == 0 {
		ttl = DefaultModelTTL
	}
	if sampleOffset == 0 {
		sampleOffset = DefaultSampleOffset
	}
	return &TimeModelSource{source: src, cache: c, ttl: ttl, sampleOffset: sampleOffset}
}

// CurrentModel returns the cached model, rebuilding it when the TTL has
// lapsed. Rebuilding costs three upstream calls: head number, head timestamp,
// and the timestamp of a block sampleOffset behind head.
func (s *TimeModelSource) CurrentModel(ctx context.Context) (domain.TimeModel, error) {
	if model, ok := s.cache.Get(modelCacheKey); ok {
		metrics.ModelCacheHits.WithLabelValues("hit").Inc()
		return model, nil
	}
	metrics.ModelCacheHits.WithLabelValues("miss").Inc()

	model, err := sampleModel(ctx, s.source, s.sampleOffset)
	if err != nil {
		return domain.TimeModel{}, err
	}

	s.cache.Set(modelCacheKey, model, s.ttl)
	return model, nil
}

// sampleModel performs the two-point sampling shared by the model source and
// the range estimator.
func sampleModel(ctx context.Context, src ChainSource, sampleOffset uint64) (domain.TimeModel, error) {
	head, err := src.HeadBlock(ctx)
	if err != nil {
		return domain.TimeModel{}, fmt.Errorf("sample head block: %w", err)
	}

	headTs, err := src.BlockTimestamp(ctx, head)
	if err != nil {
		return domain.TimeModel{}, fmt.Errorf("sample head timestamp: %w", err)
	}

	sampleBlock := uint64(0)
	if head > sampleOffset {
		sampleBlock = head - sampleOffset
	}

	sampleTs, err := src.BlockTimestamp(ctx, sampleBlock)
	if err != nil {
		return domain.TimeModel{}, fmt.Errorf("sample block %d timestamp: %w", sampleBlock, err)
	}

	return domain.NewTimeModel(head, headTs, sampleBlock, sampleTs), nil
}
