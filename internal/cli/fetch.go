package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/MoonletLabs/tempo-analytics/internal/cache"
	"github.com/MoonletLabs/tempo-analytics/internal/core/domain"
	"github.com/MoonletLabs/tempo-analytics/internal/health"
	"github.com/MoonletLabs/tempo-analytics/internal/infra/chain"
	"github.com/MoonletLabs/tempo-analytics/internal/infra/rpc"
	"github.com/MoonletLabs/tempo-analytics/internal/retrieval"
)

var (
	windowSeconds uint64
	address       string
	topics        []string
	outPath       string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Retrieve all matching event logs from the last time window",
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().Uint64Var(&windowSeconds, "window", 3600, "time window in seconds, counted back from the chain head")
	fetchCmd.Flags().StringVar(&address, "address", "", "contract address to filter logs by")
	fetchCmd.Flags().StringArrayVar(&topics, "topic", nil, "log topic filter (repeatable)")
	fetchCmd.Flags().StringVar(&outPath, "out", "", "write retrieved records as JSON lines to this file")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider := rpc.NewHTTPProvider(cfg.Provider.Name, cfg.Provider.URL, cfg.Provider.Timeout())
	client := chain.NewClient(provider)

	// All caches live for the whole invocation; each key class carries its
	// own TTL.
	lookupCache := cache.New[string, uint64](
		cache.WithMaxEntries(cfg.Cache.MaxEntries),
		cache.WithSweepInterval(cfg.Cache.SweepInterval()),
	)
	defer lookupCache.Close()
	modelCache := cache.New[string, domain.TimeModel](
		cache.WithMaxEntries(cfg.Cache.MaxEntries),
		cache.WithSweepInterval(cfg.Cache.SweepInterval()),
	)
	defer modelCache.Close()
	chunkCache := cache.New[string, []domain.Record](
		cache.WithMaxEntries(cfg.Cache.MaxEntries),
		cache.WithSweepInterval(cfg.Cache.SweepInterval()),
	)
	defer chunkCache.Close()

	cached := chain.NewCachedSource(client, lookupCache, cfg.Cache.HeadTTL(), cfg.Cache.TimestampTTL())
	models := retrieval.NewTimeModelSource(cached, modelCache, cfg.Cache.ModelTTL(), cfg.Engine.SampleOffset)

	if cfg.Server.Port > 0 {
		srv := health.NewServer(client, cfg.Server.Port)
		go func() {
			if err := srv.Start(); err != nil {
				slog.Debug("health server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(shutdownCtx)
		}()
	}

	// Estimation needs the instantaneous head, so it reads the raw client.
	estimator := retrieval.NewEstimator(client, cfg.Engine.SampleOffset, cfg.Engine.MaxScanBlocks)
	rng, err := estimator.EstimateRange(ctx, windowSeconds)
	if err != nil {
		slog.Error("Range estimation failed", "error", err)
		return err
	}

	model, err := models.CurrentModel(ctx)
	if err != nil {
		slog.Error("Time model construction failed", "error", err)
		return err
	}
	slog.Info("Estimated block range", "range", rng.String(), "window_seconds", windowSeconds,
		"from_approx_ts", model.ApproxTimestamp(rng.From))

	bar := progressbar.NewOptions64(
		int64(rng.Size()),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetDescription("Retrieving logs..."),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
	)
	_ = bar.RenderBlank()

	filter := chain.LogFilter{Address: address, Topics: topics}
	retriever := retrieval.New(retrieval.Config{
		Concurrency:       cfg.Engine.Concurrency,
		StartingChunkSize: cfg.Engine.StartingChunkSize,
		MinChunkSize:      cfg.Engine.MinChunkSize,
		CallTimeout:       cfg.Provider.Timeout(),
		Retry:             cfg.Engine.Retry.Policy(),
		ChunkCache:        chunkCache,
		ChunkTTL:          cfg.Cache.ChunkTTL(),
		CacheScope:        cacheScope(filter),
		// Logical chunk sizes tile the requested range exactly, so the bar
		// lands on 100% even when the provider corrects requested bounds.
		OnChunkDone: func(r domain.BlockRange) {
			_ = bar.Add64(int64(r.Size()))
		},
	})

	fetch := func(fctx context.Context, r domain.BlockRange) ([]domain.Record, error) {
		return client.Logs(fctx, r, filter)
	}

	start := time.Now()
	records, err := retriever.RetrieveAll(ctx, rng, fetch)
	_ = bar.Finish()
	if err != nil {
		slog.Error("Retrieval failed", "error", err)
		return err
	}

	// Dashboard consumers read newest-first.
	sort.Slice(records, func(i, j int) bool {
		return records[i].BlockNumber > records[j].BlockNumber
	})

	if outPath != "" {
		// Approximate timestamps come from the cached linear model, never
		// from one lookup per record.
		if err := writeRecords(outPath, records, model); err != nil {
			return err
		}
	}

	summary := map[string]any{
		"range":       rng.String(),
		"blocks":      rng.Size(),
		"records":     len(records),
		"duration_ms": time.Since(start).Milliseconds(),
	}
	return json.NewEncoder(os.Stdout).Encode(summary)
}

// cacheScope keys memoized chunk results by the filter they were fetched
// under, so runs with different filters never share results.
func cacheScope(f chain.LogFilter) string {
	return f.Address + "|" + strings.Join(f.Topics, ",")
}

func writeRecords(path string, records []domain.Record, model domain.TimeModel) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	type line struct {
		BlockNumber  uint64          `json:"blockNumber"`
		ApproxUnixTs uint64          `json:"approxTimestamp"`
		Log          json.RawMessage `json:"log"`
	}

	enc := json.NewEncoder(f)
	for _, rec := range records {
		l := line{
			BlockNumber:  rec.BlockNumber,
			ApproxUnixTs: model.ApproxTimestamp(rec.BlockNumber),
			Log:          rec.Payload,
		}
		if err := enc.Encode(l); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	return nil
}
