// Package config provides configuration loading from environment variables
// and the maintenance TOML file.
package config

import (
	"time"

	"github.com/BurntSushi/toml"
)

// WorkerConfig holds configuration for the training worker process.
type WorkerConfig struct {
	RedisURL          string        // shared key-value store and queue
	QueueKey          string        // Redis list the worker blocks on
	ArtifactsRoot     string        // local artifacts tree (models/, tokenizers/)
	DataRoot          string        // local data tree (corpus_cache/)
	MetricsPort       string
	HeartbeatInterval time.Duration
	CallbackURL       string // event delivery destination, empty disables publishing
	CallbackKey       string // HMAC signing key for events
	UploadURL         string // artifact upload endpoint, empty disables upload
}

// LoadWorkerConfig loads worker configuration from environment variables.
func LoadWorkerConfig() *WorkerConfig {
	return &WorkerConfig{
		RedisURL:          GetEnv("REDIS_URL", "redis://localhost:6379/0"),
		QueueKey:          GetEnv("QUEUE_KEY", "trainer:jobs"),
		ArtifactsRoot:     GetEnv("ARTIFACTS_ROOT", "/data/artifacts"),
		DataRoot:          GetEnv("DATA_ROOT", "/data"),
		MetricsPort:       GetEnv("METRICS_PORT", "9090"),
		HeartbeatInterval: GetDurationEnv("HEARTBEAT_INTERVAL", 5*time.Second),
		CallbackURL:       GetEnv("CALLBACK_URL", ""),
		CallbackKey:       GetSecretFile(GetEnv("CALLBACK_KEY_FILE", "")),
		UploadURL:         GetEnv("UPLOAD_URL", ""),
	}
}

// CleanupConfig controls per-run artifact cleanup.
type CleanupConfig struct {
	Enabled            bool `toml:"enabled"`
	VerifyUpload       bool `toml:"verify_upload"`
	DryRun             bool `toml:"dry_run"`
	GracePeriodSeconds int  `toml:"grace_period_seconds"`
}

// GracePeriod returns the configured grace delay as a duration.
func (c CleanupConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodSeconds) * time.Second
}

// CacheEvictionConfig controls corpus cache eviction.
type CacheEvictionConfig struct {
	Enabled      bool   `toml:"enabled"`
	MaxBytes     int64  `toml:"max_bytes"`
	MinFreeBytes int64  `toml:"min_free_bytes"`
	Policy       string `toml:"policy"` // "lru" or "oldest"
}

// TokenizerCleanupConfig controls reference-counted tokenizer cleanup.
type TokenizerCleanupConfig struct {
	Enabled       bool `toml:"enabled"`
	MinUnusedDays int  `toml:"min_unused_days"`
}

// MaintenanceConfig aggregates the three maintenance engines' settings.
// Loaded from a TOML file by the maintenance CLI, with env fallbacks.
type MaintenanceConfig struct {
	ArtifactsRoot string                 `toml:"artifacts_root"`
	DataRoot      string                 `toml:"data_root"`
	RedisURL      string                 `toml:"redis_url"`
	Cleanup       CleanupConfig          `toml:"cleanup"`
	Cache         CacheEvictionConfig    `toml:"cache_eviction"`
	Tokenizers    TokenizerCleanupConfig `toml:"tokenizer_cleanup"`
}

// DefaultMaintenanceConfig returns the maintenance defaults, taking roots and
// the store URL from the environment.
func DefaultMaintenanceConfig() *MaintenanceConfig {
	return &MaintenanceConfig{
		ArtifactsRoot: GetEnv("ARTIFACTS_ROOT", "/data/artifacts"),
		DataRoot:      GetEnv("DATA_ROOT", "/data"),
		RedisURL:      GetEnv("REDIS_URL", "redis://localhost:6379/0"),
		Cleanup: CleanupConfig{
			Enabled:            GetBoolEnv("CLEANUP_ENABLED", true),
			VerifyUpload:       GetBoolEnv("CLEANUP_VERIFY_UPLOAD", true),
			DryRun:             GetBoolEnv("CLEANUP_DRY_RUN", false),
			GracePeriodSeconds: GetIntEnv("CLEANUP_GRACE_PERIOD_SECONDS", 0),
		},
		Cache: CacheEvictionConfig{
			Enabled:      GetBoolEnv("CACHE_EVICTION_ENABLED", true),
			MaxBytes:     GetInt64Env("CACHE_MAX_BYTES", 50<<30),
			MinFreeBytes: GetInt64Env("CACHE_MIN_FREE_BYTES", 0),
			Policy:       GetEnv("CACHE_EVICTION_POLICY", "lru"),
		},
		Tokenizers: TokenizerCleanupConfig{
			Enabled:       GetBoolEnv("TOKENIZER_CLEANUP_ENABLED", true),
			MinUnusedDays: GetIntEnv("TOKENIZER_MIN_UNUSED_DAYS", 30),
		},
	}
}

// LoadMaintenanceConfig loads maintenance configuration, overlaying a TOML
// file on top of the defaults when path is non-empty.
func LoadMaintenanceConfig(path string) (*MaintenanceConfig, error) {
	cfg := DefaultMaintenanceConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
