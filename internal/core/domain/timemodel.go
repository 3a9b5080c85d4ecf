package domain

import "math"

// MinSecondsPerBlock floors the average block time so a degenerate or stalled
// sample window can never produce a zero or negative block time, which would
// make timestamp assignment non-monotonic.
const MinSecondsPerBlock = 0.2

// TimeModel is a two-point linear model of chain time: a reference point at
// (or near) the head and an older sample point a fixed offset behind it.
type TimeModel struct {
	ReferenceBlock     uint64
	ReferenceTimestamp uint64
	SampleBlock        uint64
	SampleTimestamp    uint64
	AvgSecondsPerBlock float64
}

// NewTimeModel builds a model from two (block, timestamp) samples.
// The reference point must not be older than the sample point.
func NewTimeModel(refBlock, refTs, sampleBlock, sampleTs uint64) TimeModel {
	if sampleBlock > refBlock {
		refBlock, sampleBlock = sampleBlock, refBlock
		refTs, sampleTs = sampleTs, refTs
	}

	blocks := refBlock - sampleBlock
	if blocks == 0 {
		blocks = 1
	}

	var elapsed float64
	if refTs > sampleTs {
		elapsed = float64(refTs - sampleTs)
	}

	avg := elapsed / float64(blocks)
	if avg < MinSecondsPerBlock {
		avg = MinSecondsPerBlock
	}

	return TimeModel{
		ReferenceBlock:     refBlock,
		ReferenceTimestamp: refTs,
		SampleBlock:        sampleBlock,
		SampleTimestamp:    sampleTs,
		AvgSecondsPerBlock: avg,
	}
}

// ApproxTimestamp extrapolates an approximate unix timestamp for a block
// number. This is a cheap linear estimate, not a per-block lookup; the error
// is bounded by local block-time variance, which is acceptable for bucketed
// analytics.
func (m TimeModel) ApproxTimestamp(blockNumber uint64) uint64 {
	if blockNumber >= m.ReferenceBlock {
		return m.ReferenceTimestamp
	}

	behind := m.ReferenceBlock - blockNumber
	delta := uint64(math.Round(float64(behind) * m.AvgSecondsPerBlock))
	if delta > m.ReferenceTimestamp {
		return 0
	}
	return m.ReferenceTimestamp - delta
}
