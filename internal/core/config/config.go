package config

import (
	"time"

	"github.com/MoonletLabs/tempo-analytics/internal/infra/rpc"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Provider ProviderConfig `yaml:"provider"`
	Engine   EngineConfig   `yaml:"engine"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the health/metrics HTTP server settings. Port 0 disables
// the server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// ProviderConfig holds settings for the upstream JSON-RPC provider.
type ProviderConfig struct {
	Name           string `yaml:"name"`
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the per-call provider timeout.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// EngineConfig tunes the retrieval engine.
type EngineConfig struct {
	MaxScanBlocks     uint64      `yaml:"max_scan_blocks"`
	Concurrency       int         `yaml:"concurrency"`
	StartingChunkSize uint64      `yaml:"starting_chunk_size"`
	MinChunkSize      uint64      `yaml:"min_chunk_size"`
	SampleOffset      uint64      `yaml:"sample_offset"`
	Retry             RetryConfig `yaml:"retry"`
}

// RetryConfig tunes the backoff schedule for retryable upstream failures.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BaseDelayMs int `yaml:"base_delay_ms"`
	MaxDelayMs  int `yaml:"max_delay_ms"`
}

// Policy converts the config into the rpc retry policy, filling defaults for
// unset fields.
func (r RetryConfig) Policy() rpc.RetryPolicy {
	p := rpc.DefaultRetryPolicy
	if r.MaxAttempts > 0 {
		p.MaxAttempts = r.MaxAttempts
	}
	if r.BaseDelayMs > 0 {
		p.BaseDelay = time.Duration(r.BaseDelayMs) * time.Millisecond
	}
	if r.MaxDelayMs > 0 {
		p.MaxDelay = time.Duration(r.MaxDelayMs) * time.Millisecond
	}
	return p
}

// CacheConfig tunes the shared expiring caches. Each key class carries its
// own TTL: the freshness/load tradeoff differs between the chain head (moves
// every few seconds), immutable block timestamps, the derived time model, and
// memoized chunk results.
type CacheConfig struct {
	ModelTTLSeconds      int `yaml:"model_ttl_seconds"`
	HeadTTLSeconds       int `yaml:"head_ttl_seconds"`
	TimestampTTLSeconds  int `yaml:"timestamp_ttl_seconds"`
	ChunkTTLSeconds      int `yaml:"chunk_ttl_seconds"`
	MaxEntries           int `yaml:"max_entries"`
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
}

// ModelTTL returns the time-model cache TTL.
func (c CacheConfig) ModelTTL() time.Duration {
	return time.Duration(c.ModelTTLSeconds) * time.Second
}

// HeadTTL returns the head-block lookup cache TTL.
func (c CacheConfig) HeadTTL() time.Duration {
	return time.Duration(c.HeadTTLSeconds) * time.Second
}

// TimestampTTL returns the block-timestamp lookup cache TTL.
func (c CacheConfig) TimestampTTL() time.Duration {
	return time.Duration(c.TimestampTTLSeconds) * time.Second
}

// ChunkTTL returns the chunk-result memoization TTL.
func (c CacheConfig) ChunkTTL() time.Duration {
	return time.Duration(c.ChunkTTLSeconds) * time.Second
}

// SweepInterval returns the background sweep period.
func (c CacheConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}
