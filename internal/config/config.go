// Package config handles configuration loading for the Phalanx services.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration. Every binary loads the
// same file and reads the sections it cares about.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Detect    DetectConfig    `yaml:"detect"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Policy    PolicyConfig    `yaml:"policy"`
	Sink      SinkConfig      `yaml:"sink"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Reports   ReportsConfig   `yaml:"reports"`
	Connector ConnectorConfig `yaml:"connector"`
	Provision ProvisionConfig `yaml:"provision"`
	Auth      AuthConfig      `yaml:"auth"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	HTTPPort     int           `yaml:"http_port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DetectConfig holds detection service settings. EmbeddingURL selects a
// remote embedding model service; empty selects the built-in hashing
// embedder.
type DetectConfig struct {
	MaxBatchSize   int    `yaml:"max_batch_size"`
	MaxPayloadSize int    `yaml:"max_payload_size"`
	MaxDataFields  int    `yaml:"max_data_fields"`
	EmbeddingDim   int    `yaml:"embedding_dim"`
	EmbeddingURL   string `yaml:"embedding_url"`
}

// ScoringConfig holds scoring engine settings.
type ScoringConfig struct {
	NoveltyK         int     `yaml:"novelty_k"`
	NoveltyThreshold float64 `yaml:"novelty_threshold"`
	AmountField      string  `yaml:"amount_field"`
}

// PolicyConfig holds policy store settings.
type PolicyConfig struct {
	FilePath string `yaml:"file_path"`
}

// SinkConfig holds anomaly sink settings.
type SinkConfig struct {
	ComplianceURL     string        `yaml:"compliance_url"`
	SideEffectTimeout time.Duration `yaml:"side_effect_timeout"`
	Redis             RedisConfig   `yaml:"redis"`
	Kafka             KafkaConfig   `yaml:"kafka"`
}

// RedisConfig holds the optional Redis mirror settings.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// KafkaConfig holds the optional Kafka mirror settings.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// ArchiveConfig holds the optional ClickHouse verdict archive settings.
type ArchiveConfig struct {
	Enabled     bool              `yaml:"enabled"`
	ClickHouse  ClickHouseConfig  `yaml:"clickhouse"`
	BatchWriter BatchWriterConfig `yaml:"batch_writer"`
}

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Hosts           []string      `yaml:"hosts"`
	Database        string        `yaml:"database"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	TLSEnabled      bool          `yaml:"tls_enabled"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
}

// BatchWriterConfig holds batch writer settings.
type BatchWriterConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

// ReportsConfig holds compliance reporting settings.
type ReportsConfig struct {
	Dir         string        `yaml:"dir"`
	DetectURL   string        `yaml:"detect_url"`
	ReportCycle time.Duration `yaml:"report_cycle"`
	S3          S3Config      `yaml:"s3"`
}

// S3Config holds the optional S3 report archival settings.
type S3Config struct {
	Enabled   bool   `yaml:"enabled"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// ConnectorConfig holds connector service settings.
type ConnectorConfig struct {
	FilePath        string        `yaml:"file_path"`
	DetectURL       string        `yaml:"detect_url"`
	CaptureInterval time.Duration `yaml:"capture_interval"`
	CaptureQueue    int           `yaml:"capture_queue"`
}

// ProvisionConfig holds database provisioning settings.
type ProvisionConfig struct {
	MongoImage    string        `yaml:"mongo_image"`
	PostgresImage string        `yaml:"postgres_image"`
	StartTimeout  time.Duration `yaml:"start_timeout"`
}

// AuthConfig holds authentication settings. Keys are bcrypt hashes of the
// accepted API keys, never the keys themselves.
type AuthConfig struct {
	Enabled      bool     `yaml:"enabled"`
	APIKeyHeader string   `yaml:"api_key_header"`
	APIKeyHashes []string `yaml:"api_key_hashes"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	Enabled          bool     `yaml:"enabled"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age"`
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	Enabled       bool          `yaml:"enabled"`
	RequestsPerIP int           `yaml:"requests_per_ip"`
	WindowSize    time.Duration `yaml:"window_size"`
	BurstSize     int           `yaml:"burst_size"`
	CleanupPeriod time.Duration `yaml:"cleanup_period"`
	ExemptPaths   []string      `yaml:"exempt_paths"`
	TrustProxy    bool          `yaml:"trust_proxy"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:     8001,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Detect: DetectConfig{
			MaxBatchSize:   1000,
			MaxPayloadSize: 10 * 1024 * 1024, // 10MB
			MaxDataFields:  64,
			EmbeddingDim:   256,
		},
		Scoring: ScoringConfig{
			NoveltyK:         5,
			NoveltyThreshold: 0.4,
			AmountField:      "amount",
		},
		Policy: PolicyConfig{
			FilePath: "data/policies.json",
		},
		Sink: SinkConfig{
			ComplianceURL:     "http://localhost:8002/v1/report-anomaly",
			SideEffectTimeout: 10 * time.Second,
			Redis: RedisConfig{
				Enabled: false,
				Addr:    "localhost:6379",
				Key:     "phalanx:anomalies",
			},
			Kafka: KafkaConfig{
				Enabled: false,
				Brokers: []string{"localhost:9092"},
				Topic:   "phalanx.anomalies",
			},
		},
		Archive: ArchiveConfig{
			Enabled: false, // Disabled by default for development without ClickHouse
			ClickHouse: ClickHouseConfig{
				Hosts:           []string{"localhost:9000"},
				Database:        "phalanx",
				Username:        "default",
				Password:        "",
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: time.Hour,
				TLSEnabled:      false,
				DialTimeout:     10 * time.Second,
			},
			BatchWriter: BatchWriterConfig{
				BatchSize:     500,
				FlushInterval: 5 * time.Second,
				MaxRetries:    3,
				RetryDelay:    time.Second,
			},
		},
		Reports: ReportsConfig{
			Dir:         "data/reports",
			DetectURL:   "http://localhost:8001",
			ReportCycle: 30 * 24 * time.Hour,
			S3: S3Config{
				Enabled: false,
				Prefix:  "reports/",
				Region:  "eu-west-1",
			},
		},
		Connector: ConnectorConfig{
			FilePath:        "data/connectors.json",
			DetectURL:       "http://localhost:8001",
			CaptureInterval: 5 * time.Second,
			CaptureQueue:    1024,
		},
		Provision: ProvisionConfig{
			MongoImage:    "mongo:7",
			PostgresImage: "postgres:16",
			StartTimeout:  60 * time.Second,
		},
		Auth: AuthConfig{
			Enabled:      false, // Disabled by default for development
			APIKeyHeader: "X-API-Key",
		},
		CORS: CORSConfig{
			Enabled:        true,
			AllowedOrigins: []string{"http://localhost:3000"},
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-API-Key",
				"X-Request-ID",
			},
			AllowCredentials: false,
			MaxAge:           86400,
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			RequestsPerIP: 1000,
			WindowSize:    time.Minute,
			BurstSize:     50,
			CleanupPeriod: 5 * time.Minute,
			ExemptPaths:   []string{"/health", "/metrics"},
			TrustProxy:    false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a file or returns defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := os.Getenv("PHALANX_CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if port := os.Getenv("PHALANX_HTTP_PORT"); port != "" {
		fmt.Sscanf(port, "%d", &c.Server.HTTPPort)
	}

	if level := os.Getenv("PHALANX_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	if threshold := os.Getenv("PHALANX_NOVELTY_THRESHOLD"); threshold != "" {
		fmt.Sscanf(threshold, "%f", &c.Scoring.NoveltyThreshold)
	}

	if path := os.Getenv("PHALANX_POLICY_FILE"); path != "" {
		c.Policy.FilePath = path
	}

	if url := os.Getenv("PHALANX_COMPLIANCE_URL"); url != "" {
		c.Sink.ComplianceURL = url
	}

	if url := os.Getenv("PHALANX_EMBEDDING_URL"); url != "" {
		c.Detect.EmbeddingURL = url
	}

	if url := os.Getenv("PHALANX_DETECT_URL"); url != "" {
		c.Reports.DetectURL = url
		c.Connector.DetectURL = url
	}

	if hash := os.Getenv("PHALANX_API_KEY_HASH"); hash != "" {
		c.Auth.APIKeyHashes = append(c.Auth.APIKeyHashes, hash)
		c.Auth.Enabled = true
	}

	// Archive settings
	if enabled := os.Getenv("PHALANX_ARCHIVE_ENABLED"); enabled == "true" {
		c.Archive.Enabled = true
	}

	if host := os.Getenv("CLICKHOUSE_HOST"); host != "" {
		c.Archive.ClickHouse.Hosts = []string{host}
	}

	if db := os.Getenv("CLICKHOUSE_DATABASE"); db != "" {
		c.Archive.ClickHouse.Database = db
	}

	if user := os.Getenv("CLICKHOUSE_USER"); user != "" {
		c.Archive.ClickHouse.Username = user
	}

	if pass := os.Getenv("CLICKHOUSE_PASSWORD"); pass != "" {
		c.Archive.ClickHouse.Password = pass
	}

	// Mirror settings
	if addr := os.Getenv("PHALANX_REDIS_ADDR"); addr != "" {
		c.Sink.Redis.Addr = addr
		c.Sink.Redis.Enabled = true
	}

	if brokers := os.Getenv("PHALANX_KAFKA_BROKERS"); brokers != "" {
		c.Sink.Kafka.Brokers = splitAndTrim(brokers, ",")
		c.Sink.Kafka.Enabled = true
	}

	// CORS settings
	if enabled := os.Getenv("PHALANX_CORS_ENABLED"); enabled == "false" {
		c.CORS.Enabled = false
	}

	if origins := os.Getenv("PHALANX_CORS_ORIGINS"); origins != "" {
		c.CORS.AllowedOrigins = splitAndTrim(origins, ",")
	}

	// Rate limit settings
	if enabled := os.Getenv("PHALANX_RATELIMIT_ENABLED"); enabled == "false" {
		c.RateLimit.Enabled = false
	}

	if rps := os.Getenv("PHALANX_RATELIMIT_RPS"); rps != "" {
		fmt.Sscanf(rps, "%d", &c.RateLimit.RequestsPerIP)
	}
}

// splitAndTrim splits a string by separator and trims whitespace from each part.
func splitAndTrim(s, sep string) []string {
	parts := make([]string, 0)
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.Server.HTTPPort)
	}

	if c.Detect.MaxBatchSize <= 0 {
		return fmt.Errorf("max_batch_size must be positive")
	}

	if c.Scoring.NoveltyK <= 0 {
		return fmt.Errorf("novelty_k must be positive")
	}

	if c.Scoring.NoveltyThreshold <= 0 || c.Scoring.NoveltyThreshold >= 2 {
		return fmt.Errorf("novelty_threshold must be in (0, 2): %f", c.Scoring.NoveltyThreshold)
	}

	if c.Detect.EmbeddingDim <= 0 {
		return fmt.Errorf("embedding_dim must be positive")
	}

	if c.Sink.Kafka.Enabled && len(c.Sink.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka mirror enabled without brokers")
	}

	if c.Reports.S3.Enabled && c.Reports.S3.Bucket == "" {
		return fmt.Errorf("s3 archival enabled without a bucket")
	}

	return nil
}
