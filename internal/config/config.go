package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the ingestion service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Tracking TrackingConfig `yaml:"tracking"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Auth     AuthConfig     `yaml:"auth"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection.
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifeMins int    `yaml:"conn_max_life_mins"`
}

// ConnMaxLifetime returns the connection lifetime as a duration.
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifeMins) * time.Minute
}

// RedisConfig holds Redis settings for the engagement stream, the ledger
// fast-path cache, and distributed locks. Redis is optional: with an empty
// Addr the core falls back to Postgres-only operation.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
}

// TrackingConfig holds tracking endpoint settings.
type TrackingConfig struct {
	BaseURL      string `yaml:"base_url"`
	SigningKey   string `yaml:"signing_key"`
	TokenTTLDays int    `yaml:"token_ttl_days"`
}

// TokenTTL returns how long a minted token stays resolvable; zero means forever.
func (c TrackingConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLDays) * 24 * time.Hour
}

// IngestConfig holds ingestion policy settings.
type IngestConfig struct {
	// AttachToExistingOpenDeal controls what a repeat form submission does
	// when the person already has an open deal: false (default) creates
	// nothing; true links the submission activity to that deal.
	AttachToExistingOpenDeal bool `yaml:"attach_to_existing_open_deal"`
	// Default pipeline/stage for auto-created deals. Stage validity is owned
	// by the external pipeline service; the core only stores the ids.
	DefaultPipelineID string `yaml:"default_pipeline_id"`
	DefaultStageID    string `yaml:"default_stage_id"`
	// LockTTLSeconds bounds how long a per-person ingestion lock is held.
	LockTTLSeconds int `yaml:"lock_ttl_seconds"`
}

// LockTTL returns the per-person lock TTL as a duration.
func (c IngestConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// ArchiveConfig holds raw payload archive settings.
type ArchiveConfig struct {
	Type      string `yaml:"type"` // "s3", "local", or "" (disabled)
	S3Bucket  string `yaml:"s3_bucket"`
	AWSRegion string `yaml:"aws_region"`
	LocalPath string `yaml:"local_path"`
}

// AuthConfig holds API-key validation settings. When ServiceURL is set, keys
// are resolved by the external key-validation service; StaticKeys is a
// development fallback mapping raw keys to company ids.
type AuthConfig struct {
	ServiceURL     string            `yaml:"service_url"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	CacheTTLSecs   int               `yaml:"cache_ttl_secs"`
	StaticKeys     map[string]string `yaml:"static_keys"`
}

// Timeout returns the key-validation call timeout as a duration.
func (c AuthConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CacheTTL returns how long a validated key is cached.
func (c AuthConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSecs) * time.Second
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifeMins == 0 {
		cfg.Database.ConnMaxLifeMins = 30
	}
	if cfg.Redis.Stream == "" {
		cfg.Redis.Stream = "crm:engagement"
	}
	if cfg.Tracking.BaseURL == "" {
		cfg.Tracking.BaseURL = "http://localhost:8081"
	}
	if cfg.Ingest.LockTTLSeconds == 0 {
		cfg.Ingest.LockTTLSeconds = 15
	}
	if cfg.Auth.TimeoutSeconds == 0 {
		cfg.Auth.TimeoutSeconds = 10
	}
	if cfg.Auth.CacheTTLSecs == 0 {
		cfg.Auth.CacheTTLSecs = 300
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
	if v := os.Getenv("TRACKING_BASE_URL"); v != "" {
		cfg.Tracking.BaseURL = v
	}
	if v := os.Getenv("TRACKING_SIGNING_KEY"); v != "" {
		cfg.Tracking.SigningKey = v
	}
	if v := os.Getenv("AUTH_SERVICE_URL"); v != "" {
		cfg.Auth.ServiceURL = v
	}
	if v := os.Getenv("ARCHIVE_S3_BUCKET"); v != "" {
		cfg.Archive.S3Bucket = v
		if cfg.Archive.Type == "" {
			cfg.Archive.Type = "s3"
		}
	}
	if v := os.Getenv("ATTACH_TO_EXISTING_OPEN_DEAL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Ingest.AttachToExistingOpenDeal = b
		}
	}

	return cfg, nil
}
