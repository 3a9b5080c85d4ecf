package config

import (
	"os"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp(t.TempDir(), "config_*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	if _, err := tmpFile.Write([]byte(content)); err != nil {
		t.Fatalf("Failed to write to temp file: %v", err)
	}
	tmpFile.Close()
	return tmpFile.Name()
}

func TestLoad_EnvSubstitution(t *testing.T) {
	os.Setenv("TEST_RPC_URL", "https://eth-mainnet.example.com/v2/key")
	defer os.Unsetenv("TEST_RPC_URL")

	path := writeTempConfig(t, `
provider:
  name: alchemy
  url: ${TEST_RPC_URL}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider.URL != "https://eth-mainnet.example.com/v2/key" {
		t.Errorf("Expected expanded URL, got %s", cfg.Provider.URL)
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
provider:
  url: https://rpc.example.com
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Engine.Concurrency != 4 {
		t.Errorf("concurrency default = %d, want 4", cfg.Engine.Concurrency)
	}
	if cfg.Engine.StartingChunkSize != 5000 || cfg.Engine.MinChunkSize != 200 {
		t.Errorf("chunk defaults = %d/%d, want 5000/200",
			cfg.Engine.StartingChunkSize, cfg.Engine.MinChunkSize)
	}
	if cfg.Provider.Timeout() != 30*time.Second {
		t.Errorf("provider timeout = %v, want 30s", cfg.Provider.Timeout())
	}
	if cfg.Cache.ModelTTL() != 30*time.Second {
		t.Errorf("model TTL = %v, want 30s", cfg.Cache.ModelTTL())
	}
	if cfg.Cache.HeadTTL() != 5*time.Second {
		t.Errorf("head TTL = %v, want 5s", cfg.Cache.HeadTTL())
	}
	if cfg.Cache.TimestampTTL() != 10*time.Minute {
		t.Errorf("timestamp TTL = %v, want 10m", cfg.Cache.TimestampTTL())
	}
	if cfg.Cache.ChunkTTL() != time.Minute {
		t.Errorf("chunk TTL = %v, want 1m", cfg.Cache.ChunkTTL())
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("logging level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoad_RequiresProviderURL(t *testing.T) {
	path := writeTempConfig(t, `
engine:
  concurrency: 8
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing provider URL")
	}
}

func TestLoad_RetryPolicyConversion(t *testing.T) {
	path := writeTempConfig(t, `
provider:
  url: https://rpc.example.com
engine:
  retry:
    max_attempts: 10
    base_delay_ms: 100
    max_delay_ms: 5000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	p := cfg.Engine.Retry.Policy()
	if p.MaxAttempts != 10 {
		t.Errorf("max attempts = %d, want 10", p.MaxAttempts)
	}
	if p.BaseDelay != 100*time.Millisecond || p.MaxDelay != 5*time.Second {
		t.Errorf("delays = %v/%v, want 100ms/5s", p.BaseDelay, p.MaxDelay)
	}
}
