package domain

import "testing"

func TestBlockRangeSplit_CoversExactly(t *testing.T) {
	tests := []struct {
		name    string
		r       BlockRange
		maxSize uint64
		want    int
	}{
		{"single chunk", BlockRange{From: 0, To: 99}, 1000, 1},
		{"exact multiple", BlockRange{From: 0, To: 999}, 100, 10},
		{"short tail", BlockRange{From: 10, To: 30}, 8, 3},
		{"one block", BlockRange{From: 5, To: 5}, 8, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := tt.r.Split(tt.maxSize)
			if len(chunks) != tt.want {
				t.Fatalf("got %d chunks, want %d", len(chunks), tt.want)
			}

			// Union must reconstruct the range with no gaps or overlaps.
			next := tt.r.From
			for i, c := range chunks {
				if c.From != next {
					t.Errorf("chunk %d starts at %d, want %d", i, c.From, next)
				}
				if c.Size() > tt.maxSize {
					t.Errorf("chunk %d size %d exceeds max %d", i, c.Size(), tt.maxSize)
				}
				next = c.To + 1
			}
			if chunks[len(chunks)-1].To != tt.r.To {
				t.Errorf("last chunk ends at %d, want %d", chunks[len(chunks)-1].To, tt.r.To)
			}
		})
	}
}

func TestBlockRangeHalve(t *testing.T) {
	left, right, ok := BlockRange{From: 100, To: 199}.Halve()
	if !ok {
		t.Fatal("expected halve to succeed")
	}
	if left.From != 100 || left.To != 149 || right.From != 150 || right.To != 199 {
		t.Fatalf("unexpected halves: %s / %s", left, right)
	}

	// Two adjacent blocks split into one block each.
	left, right, ok = BlockRange{From: 7, To: 8}.Halve()
	if !ok || left.Size() != 1 || right.Size() != 1 {
		t.Fatalf("unexpected halves for two-block range: %s / %s", left, right)
	}

	if _, _, ok := (BlockRange{From: 3, To: 3}).Halve(); ok {
		t.Error("single-block range must not halve")
	}
}

func TestNewBlockRange_RejectsInverted(t *testing.T) {
	if _, err := NewBlockRange(10, 5); err == nil {
		t.Fatal("expected error for inverted range")
	}
}
