package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Scoring.NoveltyK != 5 {
		t.Errorf("novelty_k = %d, want 5", cfg.Scoring.NoveltyK)
	}
	if cfg.Scoring.NoveltyThreshold != 0.4 {
		t.Errorf("novelty_threshold = %f, want 0.4", cfg.Scoring.NoveltyThreshold)
	}
	if cfg.Auth.Enabled {
		t.Error("auth must be disabled by default")
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  http_port: 9001
scoring:
  novelty_threshold: 0.3
sink:
  compliance_url: http://comply:8002/v1/report-anomaly
  side_effect_timeout: 5s
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PHALANX_CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.HTTPPort != 9001 {
		t.Errorf("http_port = %d, want 9001", cfg.Server.HTTPPort)
	}
	if cfg.Scoring.NoveltyThreshold != 0.3 {
		t.Errorf("novelty_threshold = %f, want 0.3", cfg.Scoring.NoveltyThreshold)
	}
	if cfg.Sink.SideEffectTimeout != 5*time.Second {
		t.Errorf("side_effect_timeout = %v, want 5s", cfg.Sink.SideEffectTimeout)
	}
	// Unset sections keep their defaults.
	if cfg.Scoring.NoveltyK != 5 {
		t.Errorf("novelty_k = %d, want default 5", cfg.Scoring.NoveltyK)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("PHALANX_CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.HTTPPort != 8001 {
		t.Errorf("http_port = %d, want default 8001", cfg.Server.HTTPPort)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PHALANX_CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("PHALANX_HTTP_PORT", "9999")
	t.Setenv("PHALANX_NOVELTY_THRESHOLD", "0.3")
	t.Setenv("PHALANX_API_KEY_HASH", "$2a$10$abcdefghijklmnopqrstuv")
	t.Setenv("PHALANX_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("PHALANX_EMBEDDING_URL", "http://embedder:9100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.HTTPPort != 9999 {
		t.Errorf("http_port = %d, want 9999", cfg.Server.HTTPPort)
	}
	if cfg.Scoring.NoveltyThreshold != 0.3 {
		t.Errorf("novelty_threshold = %f, want 0.3", cfg.Scoring.NoveltyThreshold)
	}
	if !cfg.Auth.Enabled || len(cfg.Auth.APIKeyHashes) != 1 {
		t.Error("api key hash env must enable auth")
	}
	if !cfg.Sink.Kafka.Enabled || len(cfg.Sink.Kafka.Brokers) != 2 {
		t.Errorf("kafka brokers = %v", cfg.Sink.Kafka.Brokers)
	}
	if cfg.Detect.EmbeddingURL != "http://embedder:9100" {
		t.Errorf("embedding_url = %q", cfg.Detect.EmbeddingURL)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.HTTPPort = 0 }},
		{"bad batch size", func(c *Config) { c.Detect.MaxBatchSize = 0 }},
		{"bad novelty k", func(c *Config) { c.Scoring.NoveltyK = 0 }},
		{"bad threshold", func(c *Config) { c.Scoring.NoveltyThreshold = 2.5 }},
		{"kafka without brokers", func(c *Config) {
			c.Sink.Kafka.Enabled = true
			c.Sink.Kafka.Brokers = nil
		}},
		{"s3 without bucket", func(c *Config) { c.Reports.S3.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
