package domain

import "encoding/json"

// Record is a single on-chain event record. The payload is kept opaque; the
// engine only relies on the (TxHash, LogIndex) identity pair for deduplication
// and on BlockNumber for ordering and timestamp assignment.
type Record struct {
	TxHash      string
	LogIndex    uint32
	BlockNumber uint64
	Payload     json.RawMessage
}

// RecordID is the deduplication identity of a record: a transaction hash plus
// the record's sequence index within that transaction.
type RecordID struct {
	TxHash   string
	LogIndex uint32
}

// ID returns the record's deduplication identity.
func (r Record) ID() RecordID {
	return RecordID{TxHash: r.TxHash, LogIndex: r.LogIndex}
}

// DedupeRecords removes duplicate records, keeping the first occurrence of
// each (TxHash, LogIndex) identity. Duplicates legitimately appear at chunk
// boundaries after a split or a provider-corrected range; running this twice
// yields the same result as running it once.
func DedupeRecords(records []Record) []Record {
	seen := make(map[RecordID]struct{}, len(records))
	out := records[:0:0]

	for _, rec := range records {
		id := rec.ID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, rec)
	}

	return out
}
