package domain

import "testing"

func TestTimeModel_Linearity(t *testing.T) {
	m := NewTimeModel(200, 1000, 100, 900)

	if m.AvgSecondsPerBlock != 1.0 {
		t.Fatalf("avg seconds per block = %v, want 1.0", m.AvgSecondsPerBlock)
	}
	if got := m.ApproxTimestamp(150); got != 950 {
		t.Errorf("ApproxTimestamp(150) = %d, want 950", got)
	}
	if got := m.ApproxTimestamp(200); got != 1000 {
		t.Errorf("ApproxTimestamp(200) = %d, want 1000", got)
	}
}

func TestTimeModel_FloorsDegenerateSamples(t *testing.T) {
	// Stalled window: identical timestamps must not yield zero block time.
	m := NewTimeModel(200, 1000, 100, 1000)
	if m.AvgSecondsPerBlock != MinSecondsPerBlock {
		t.Fatalf("avg = %v, want floor %v", m.AvgSecondsPerBlock, MinSecondsPerBlock)
	}

	// Identical blocks must not divide by zero.
	m = NewTimeModel(200, 1000, 200, 990)
	if m.AvgSecondsPerBlock < MinSecondsPerBlock {
		t.Fatalf("avg = %v below floor", m.AvgSecondsPerBlock)
	}
}

func TestTimeModel_ClampsFutureBlocks(t *testing.T) {
	m := NewTimeModel(200, 1000, 100, 900)
	if got := m.ApproxTimestamp(500); got != 1000 {
		t.Errorf("blocks past the reference clamp to the reference timestamp, got %d", got)
	}
}
