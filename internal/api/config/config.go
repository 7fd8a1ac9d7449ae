package config

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/anthanhphan/gosdk/conflux"
	"github.com/anthanhphan/gosdk/logger"
)

// Backend selectors for metadata, token and load storage.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"

	LoadScopeLocal  = "local"
	LoadScopeShared = "shared"
)

// Config holds gateway configuration
type Config struct {
	Server   ServerConfig         `json:"server" yaml:"server"`
	App      AppConfig            `json:"app" yaml:"app"`
	Metadata MetadataConfig       `json:"metadata" yaml:"metadata"`
	Tokens   TokensConfig         `json:"tokens" yaml:"tokens"`
	Redis    RedisConfig          `json:"redis" yaml:"redis"`
	Gossip   GossipConfig         `json:"gossip" yaml:"gossip"`
	Nodes    []domain.StorageNode `json:"nodes" yaml:"nodes"`
	Logger   logger.Config        `json:"logger" yaml:"logger"`
}

type ServerConfig struct {
	Addr          string `json:"addr" yaml:"addr"`
	BodyLimit     int    `json:"body_limit" yaml:"body_limit"`
	EnableMetrics bool   `json:"enable_metrics" yaml:"enable_metrics"`
}

type AppConfig struct {
	NodeID             int64  `json:"node_id" yaml:"node_id"`
	ChunkSize          int64  `json:"chunk_size" yaml:"chunk_size"`
	MaxFileSize        int64  `json:"max_file_size" yaml:"max_file_size"`
	TokenTTLSec        int    `json:"token_ttl_sec" yaml:"token_ttl_sec"`
	TokenSweepSec      int    `json:"token_sweep_sec" yaml:"token_sweep_sec"`
	MaxRetries         int    `json:"max_retries" yaml:"max_retries"`
	WriteTimeoutMS     int    `json:"write_timeout_ms" yaml:"write_timeout_ms"`
	VerifyParallelism  int    `json:"verify_parallelism" yaml:"verify_parallelism"`
	BreakerFailures    int    `json:"breaker_failures" yaml:"breaker_failures"`
	BreakerOpenSec     int    `json:"breaker_open_sec" yaml:"breaker_open_sec"`
	LoadScope          string `json:"load_scope" yaml:"load_scope"` // "local", "shared"
	TrashRetentionDays int    `json:"trash_retention_days" yaml:"trash_retention_days"`
}

type MetadataConfig struct {
	Driver          string `json:"driver" yaml:"driver"` // "memory", "postgres"
	DSN             string `json:"dsn" yaml:"dsn"`
	MaxOpenConns    int    `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int    `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime int    `json:"conn_max_lifetime_sec" yaml:"conn_max_lifetime_sec"`
}

type TokensConfig struct {
	Driver string `json:"driver" yaml:"driver"` // "memory", "redis"
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type GossipConfig struct {
	Enabled  bool     `json:"enabled" yaml:"enabled"`
	Name     string   `json:"name" yaml:"name"`
	BindAddr string   `json:"bind_addr" yaml:"bind_addr"`
	Port     int      `json:"port" yaml:"port"`
	Seeds    []string `json:"seeds" yaml:"seeds"`
}

// TokenTTL returns the token lifetime with a safe default.
func (a AppConfig) TokenTTL() time.Duration {
	if a.TokenTTLSec > 0 {
		return time.Duration(a.TokenTTLSec) * time.Second
	}
	return domain.DefaultTokenTTL
}

// TokenSweepInterval returns how often expired in-memory tokens are purged.
func (a AppConfig) TokenSweepInterval() time.Duration {
	if a.TokenSweepSec > 0 {
		return time.Duration(a.TokenSweepSec) * time.Second
	}
	return time.Minute
}

// WriteTimeout returns per-attempt backend timeout with safe default.
func (a AppConfig) WriteTimeout() time.Duration {
	if a.WriteTimeoutMS > 0 {
		return time.Duration(a.WriteTimeoutMS) * time.Millisecond
	}
	return 15 * time.Second
}

// EffectiveChunkSize returns the chunk size with the codec default as fallback.
func (a AppConfig) EffectiveChunkSize() int64 {
	if a.ChunkSize > 0 {
		return a.ChunkSize
	}
	return domain.DefaultChunkSize
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          ":8090",
			BodyLimit:     8 * 1024 * 1024,
			EnableMetrics: true,
		},
		App: AppConfig{
			NodeID:             1,
			ChunkSize:          domain.DefaultChunkSize,
			MaxFileSize:        2 * 1024 * 1024 * 1024, // 2GB
			TokenTTLSec:        3600,
			TokenSweepSec:      60,
			MaxRetries:         3,
			WriteTimeoutMS:     15000,
			VerifyParallelism:  8,
			BreakerFailures:    5,
			BreakerOpenSec:     10,
			LoadScope:          LoadScopeLocal,
			TrashRetentionDays: 30,
		},
		Metadata: MetadataConfig{
			Driver:          StoreMemory,
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
		},
		Tokens: TokensConfig{
			Driver: StoreMemory,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Gossip: GossipConfig{
			Name:     "gateway-1",
			BindAddr: "0.0.0.0",
			Port:     7950,
		},
		Logger: logger.Config{
			LogLevel:    logger.LevelInfo,
			LogEncoding: logger.EncodingJSON,
		},
	}
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	configPath := path
	if configPath == "" {
		env := os.Getenv("ENV")
		if env == "" {
			env = "local"
		}
		configPath = filepath.Join("internal", "api", "config", env+".yaml")
	}

	cfg := DefaultConfig()

	parsedCfg, err := conflux.ParseConfig(configPath, cfg)
	if err != nil {
		// The logger is configured from this file, so it is not ready yet.
		log.Printf("Config file not found or failed to parse, using defaults if file not specified. Path: %s, Error: %v", configPath, err)
		if path != "" {
			return nil, err
		}
		return cfg, nil
	}

	return parsedCfg, nil
}

// MustLoad loads configuration or exits on error
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}
