package retrieval

import (
	"context"
	"fmt"
	"math"

	"github.com/MoonletLabs/tempo-analytics/internal/core/domain"
)

// DefaultMaxScanBlocks caps how far behind head any estimated range may
// start, protecting the provider from unbounded scans.
const DefaultMaxScanBlocks = 500_000

// Estimator converts a time window into a concrete block range using fresh
// two-point sampling. Unlike TimeModelSource it never serves a cached head:
// range accuracy needs the instantaneous one.
type Estimator struct {
	source        ChainSource
	sampleOffset  uint64
	maxScanBlocks uint64
}

// NewEstimator creates an estimator. Zero options fall back to defaults.
func NewEstimator(src ChainSource, sampleOffset, maxScanBlocks uint64) *Estimator {
	if sampleOffset == 0 {
		sampleOffset = DefaultSampleOffset
	}
	if maxScanBlocks == 0 {
		maxScanBlocks = DefaultMaxScanBlocks
	}
	return &Estimator{source: src, sampleOffset: sampleOffset, maxScanBlocks: maxScanBlocks}
}

// EstimateRange returns the block range covering approximately the last
// windowSeconds of chain history, ending at the current head. The
// administrative scan cap always wins when it is more restrictive than the
// requested window. Provider failures propagate as-is; retrying them is the
// caller's concern.
func (e *Estimator) EstimateRange(ctx context.Context, windowSeconds uint64) (domain.BlockRange, error) {
	model, err := sampleModel(ctx, e.source, e.sampleOffset)
	if err != nil {
		return domain.BlockRange{}, fmt.Errorf("estimate range: %w", err)
	}

	head := model.ReferenceBlock
	estimatedBlocks := uint64(math.Ceil(float64(windowSeconds) / model.AvgSecondsPerBlock))

	from := uint64(0)
	if head > estimatedBlocks {
		from = head - estimatedBlocks
	}

	// Hard cap: never scan further back than maxScanBlocks behind head.
	hardCapFrom := uint64(0)
	if head > e.maxScanBlocks {
		hardCapFrom = head - e.maxScanBlocks
	}
	if hardCapFrom > from {
		from = hardCapFrom
	}

	return domain.BlockRange{From: from, To: head}, nil
}
