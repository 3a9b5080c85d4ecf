package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Provider.URL == "" {
		return nil, fmt.Errorf("provider.url is required")
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Provider.Name == "" {
		cfg.Provider.Name = "default"
	}
	if cfg.Provider.TimeoutSeconds == 0 {
		cfg.Provider.TimeoutSeconds = 30
	}
	if cfg.Engine.MaxScanBlocks == 0 {
		cfg.Engine.MaxScanBlocks = 500_000
	}
	if cfg.Engine.Concurrency == 0 {
		cfg.Engine.Concurrency = 4
	}
	if cfg.Engine.StartingChunkSize == 0 {
		cfg.Engine.StartingChunkSize = 5000
	}
	if cfg.Engine.MinChunkSize == 0 {
		cfg.Engine.MinChunkSize = 200
	}
	if cfg.Engine.SampleOffset == 0 {
		cfg.Engine.SampleOffset = 100_000
	}
	if cfg.Cache.ModelTTLSeconds == 0 {
		cfg.Cache.ModelTTLSeconds = 30
	}
	if cfg.Cache.HeadTTLSeconds == 0 {
		cfg.Cache.HeadTTLSeconds = 5
	}
	if cfg.Cache.TimestampTTLSeconds == 0 {
		cfg.Cache.TimestampTTLSeconds = 600
	}
	if cfg.Cache.ChunkTTLSeconds == 0 {
		cfg.Cache.ChunkTTLSeconds = 60
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 4096
	}
	if cfg.Cache.SweepIntervalSeconds == 0 {
		cfg.Cache.SweepIntervalSeconds = 300
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
