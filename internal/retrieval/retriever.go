// Package retrieval implements the resilient bulk event-retrieval engine:
// adaptive chunking with bounded concurrency over a rate-limited,
// result-size-capped upstream provider, plus the block-time model and range
// estimation it depends on.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MoonletLabs/tempo-analytics/internal/cache"
	"github.com/MoonletLabs/tempo-analytics/internal/core/domain"
	"github.com/MoonletLabs/tempo-analytics/internal/infra/rpc"
	"github.com/MoonletLabs/tempo-analytics/internal/metrics"
)

// FetchFunc is the range-scoped fetch capability handed to the retriever. It
// is opaque: the retriever only knows it may fail and how to classify the
// failure.
type FetchFunc func(ctx context.Context, r domain.BlockRange) ([]domain.Record, error)

// Config tunes the retriever. Zero values fall back to defaults.
type Config struct {
	// Concurrency bounds upstream calls in flight at once.
	Concurrency int
	// StartingChunkSize is the initial chunk width in blocks.
	StartingChunkSize uint64
	// MinChunkSize is the floor below which a too-large result is a real
	// capability ceiling and escalates as fatal.
	MinChunkSize uint64
	// CallTimeout bounds each individual upstream call. Expiry is retried as
	// transient, not propagated.
	CallTimeout time.Duration
	// Retry is the backoff schedule for rate-limited/transient failures.
	Retry rpc.RetryPolicy
	// ChunkCache, when set, memoizes successful chunk results so an
	// overlapping re-run within ChunkTTL skips the upstream entirely. Keys
	// are scoped by CacheScope so results for different filters never mix.
	ChunkCache *cache.Cache[string, []domain.Record]
	// ChunkTTL bounds how long memoized chunk results stay valid.
	ChunkTTL time.Duration
	// CacheScope disambiguates ChunkCache keys, typically derived from the
	// filter the FetchFunc closes over.
	CacheScope string
	// OnChunkDone, when set, is called with the logical bounds of every
	// completed leaf chunk. The logical sizes of all leaves sum to the size
	// of the requested range. May be called concurrently.
	OnChunkDone func(domain.BlockRange)
}

const (
	DefaultConcurrency       = 4
	DefaultStartingChunkSize = 5000
	DefaultMinChunkSize      = 200
	DefaultCallTimeout       = 30 * time.Second
	DefaultChunkTTL          = time.Minute
)

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.StartingChunkSize == 0 {
		c.StartingChunkSize = DefaultStartingChunkSize
	}
	if c.MinChunkSize == 0 {
		c.MinChunkSize = DefaultMinChunkSize
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = rpc.DefaultRetryPolicy
	}
	if c.ChunkTTL == 0 {
		c.ChunkTTL = DefaultChunkTTL
	}
	return c
}

// Retriever retrieves all records in a block range, all-or-nothing. Rate
// limits, transient failures, result-size caps, and provider-corrected ranges
// are absorbed internally; only fatal failures (or exhausted budgets) surface.
type Retriever struct {
	cfg Config
	log *slog.Logger
}

// New creates a retriever with the given tuning.
func New(cfg Config) *Retriever {
	return &Retriever{cfg: cfg.withDefaults(), log: slog.Default()}
}

// RetrieveAll fetches every record in rng through fetch. The union of all
// leaf chunks fetched exactly covers rng; results are deduplicated by
// (TxHash, LogIndex) with first occurrence kept. Ordering is unspecified.
//
// Any chunk failing fatally aborts the whole call; sibling results are
// discarded. There is no partial-success return.
func (r *Retriever) RetrieveAll(ctx context.Context, rng domain.BlockRange, fetch FetchFunc) ([]domain.Record, error) {
	if rng.From > rng.To {
		return nil, fmt.Errorf("invalid block range: from %d > to %d", rng.From, rng.To)
	}

	run := &run{
		cfg:   r.cfg,
		fetch: fetch,
		sem:   make(chan struct{}, r.cfg.Concurrency),
		log:   r.log.With("run", uuid.New().String()[:8], "range", rng.String()),
	}

	eg, gctx := errgroup.WithContext(ctx)
	run.eg = eg

	chunks := rng.Split(r.cfg.StartingChunkSize)
	run.log.Debug("retrieval started", "chunks", len(chunks), "concurrency", r.cfg.Concurrency)

	for _, chunk := range chunks {
		chunk := chunk
		eg.Go(func() error {
			return run.fetchChunk(gctx, chunk)
		})
	}

	if err := eg.Wait(); err != nil {
		run.log.Warn("retrieval aborted", "error", err)
		return nil, err
	}

	run.mu.Lock()
	collected := run.records
	run.mu.Unlock()

	deduped := domain.DedupeRecords(collected)
	metrics.DuplicateRecords.Add(float64(len(collected) - len(deduped)))
	metrics.RecordsRetrieved.Add(float64(len(deduped)))

	run.log.Debug("retrieval finished", "records", len(deduped), "duplicates", len(collected)-len(deduped))
	return deduped, nil
}

// run is the transient state of a single RetrieveAll call.
type run struct {
	cfg   Config
	fetch FetchFunc
	eg    *errgroup.Group
	sem   chan struct{}
	log   *slog.Logger

	mu      sync.Mutex
	records []domain.Record
}

// fetchChunk drives one logical chunk to completion: retry with backoff,
// provider-corrected retries, and midpoint splits on result-size caps.
// The chunk's logical bounds are what it claims toward range coverage, even
// when the provider corrected the bounds actually requested.
func (r *run) fetchChunk(ctx context.Context, logical domain.BlockRange) error {
	target := logical
	attempt := 0
	corrections := 0

	for {
		records, err := r.callFetch(ctx, target)
		if err == nil {
			r.collect(records)
			if r.cfg.OnChunkDone != nil {
				r.cfg.OnChunkDone(logical)
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c := rpc.Classify(err)
		switch c.Kind {
		case rpc.KindSuggestedRange:
			// Retry the same logical chunk against the corrected bounds,
			// immediately and without consuming a chunking decision. The
			// correction budget guards against a provider that keeps
			// re-suggesting ranges it then rejects.
			corrections++
			if corrections > r.cfg.Retry.MaxAttempts {
				return fmt.Errorf("chunk %s exceeded %d range corrections: %w", logical, r.cfg.Retry.MaxAttempts, err)
			}
			metrics.ChunkRetries.WithLabelValues(c.Kind.String()).Inc()
			r.log.Debug("provider corrected range", "chunk", logical, "corrected", c.Suggested)
			target = c.Suggested

		case rpc.KindTooLarge:
			if logical.Size() <= r.cfg.MinChunkSize {
				return fmt.Errorf("chunk %s at floor size %d still exceeds provider result cap: %w",
					logical, r.cfg.MinChunkSize, err)
			}
			left, right, ok := logical.Halve()
			if !ok {
				return fmt.Errorf("single-block chunk %s exceeds provider result cap: %w", logical, err)
			}
			metrics.ChunkSplits.Inc()
			r.log.Debug("splitting chunk", "chunk", logical, "left", left, "right", right)
			r.eg.Go(func() error { return r.fetchChunk(ctx, left) })
			r.eg.Go(func() error { return r.fetchChunk(ctx, right) })
			return nil

		case rpc.KindRateLimited, rpc.KindTransient:
			metrics.ChunkRetries.WithLabelValues(c.Kind.String()).Inc()
			attempt++
			if attempt >= r.cfg.Retry.MaxAttempts {
				return fmt.Errorf("chunk %s failed after %d attempts: %w", logical, attempt, err)
			}
			wait := r.cfg.Retry.Wait(attempt-1, c.Wait)
			r.log.Debug("retrying chunk", "chunk", logical, "kind", c.Kind.String(),
				"attempt", attempt, "wait", wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}

		default:
			return fmt.Errorf("chunk %s failed: %w", logical, err)
		}
	}
}

// callFetch issues one upstream call under a concurrency permit and the
// per-call timeout. The permit is held only for the duration of the call,
// never across backoff waits. Memoized results short-circuit the permit and
// the upstream alike.
func (r *run) callFetch(ctx context.Context, target domain.BlockRange) ([]domain.Record, error) {
	key := r.cfg.CacheScope + "|" + target.String()
	if r.cfg.ChunkCache != nil {
		if cached, ok := r.cfg.ChunkCache.Get(key); ok {
			metrics.ChunkCacheHits.WithLabelValues("hit").Inc()
			// Copy so callers and the dedupe pass never alias cached storage.
			out := make([]domain.Record, len(cached))
			copy(out, cached)
			return out, nil
		}
		metrics.ChunkCacheHits.WithLabelValues("miss").Inc()
	}

	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-r.sem }()

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()

	records, err := r.fetch(callCtx, target)
	if err == nil && r.cfg.ChunkCache != nil {
		stored := make([]domain.Record, len(records))
		copy(stored, records)
		r.cfg.ChunkCache.Set(key, stored, r.cfg.ChunkTTL)
	}
	return records, err
}

func (r *run) collect(records []domain.Record) {
	if len(records) == 0 {
		return
	}
	r.mu.Lock()
	r.records = append(r.records, records...)
	r.mu.Unlock()
}
