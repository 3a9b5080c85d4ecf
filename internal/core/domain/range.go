package domain

import "fmt"

// BlockRange represents an inclusive range of block numbers.
type BlockRange struct {
	From uint64
	To   uint64
}

// NewBlockRange validates and constructs a range.
func NewBlockRange(from, to uint64) (BlockRange, error) {
	if from > to {
		return BlockRange{}, fmt.Errorf("invalid block range: from %d > to %d", from, to)
	}
	return BlockRange{From: from, To: to}, nil
}

// String returns the range in "from-to" format.
func (r BlockRange) String() string {
	return fmt.Sprintf("%d-%d", r.From, r.To)
}

// Size returns the number of blocks in the range.
func (r BlockRange) Size() uint64 {
	return r.To - r.From + 1
}

// Split splits the range into contiguous chunks of at most maxSize blocks.
// The final chunk may be shorter so the union exactly covers the range.
func (r BlockRange) Split(maxSize uint64) []BlockRange {
	if maxSize == 0 || r.Size() <= maxSize {
		return []BlockRange{r}
	}

	var chunks []BlockRange
	current := r.From

	for current <= r.To {
		chunkEnd := min(current+maxSize-1, r.To)
		chunks = append(chunks, BlockRange{From: current, To: chunkEnd})
		if chunkEnd == r.To {
			break
		}
		current = chunkEnd + 1
	}

	return chunks
}

// Halve splits the range at its midpoint into two non-empty halves.
// Ranges of a single block cannot be halved and are returned as-is with ok=false.
func (r BlockRange) Halve() (left, right BlockRange, ok bool) {
	if r.From == r.To {
		return r, r, false
	}
	mid := r.From + (r.To-r.From)/2
	return BlockRange{From: r.From, To: mid}, BlockRange{From: mid + 1, To: r.To}, true
}

// Contains reports whether the block number falls inside the range.
func (r BlockRange) Contains(block uint64) bool {
	return block >= r.From && block <= r.To
}
