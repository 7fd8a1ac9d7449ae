package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/anthanhphan/go-chunk-transfer/pkg/diskstore"
	"github.com/anthanhphan/gosdk/conflux"
	"github.com/anthanhphan/gosdk/logger"
)

// Config holds storage node configuration
type Config struct {
	Server ServerConfig     `json:"server" yaml:"server"`
	Gossip GossipConfig     `json:"gossip" yaml:"gossip"`
	Disk   diskstore.Config `json:"disk" yaml:"disk"`
	Logger logger.Config    `json:"logger" yaml:"logger"`
}

type ServerConfig struct {
	NodeID        string `json:"node_id" yaml:"node_id"`
	Hostname      string `json:"hostname" yaml:"hostname"`
	Port          int    `json:"port" yaml:"port"`
	Region        string `json:"region" yaml:"region"`
	BodyLimit     int    `json:"body_limit" yaml:"body_limit"`
	MaxObjectSize int64  `json:"max_object_size" yaml:"max_object_size"`
}

type GossipConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Port    int      `json:"port" yaml:"port"`
	Seeds   []string `json:"seeds" yaml:"seeds"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Hostname:      "127.0.0.1",
			Port:          8081,
			Region:        "local",
			BodyLimit:     16 * 1024 * 1024,
			MaxObjectSize: 8 * 1024 * 1024,
		},
		Gossip: GossipConfig{
			Port: 7946,
		},
		Disk: diskstore.Config{
			DataDir: "./data",
			FSync:   true,
		},
		Logger: logger.Config{
			LogLevel:    logger.LevelInfo,
			LogEncoding: logger.EncodingJSON,
		},
	}
}

// ResolveNodeID falls back to hostname-port when no id is configured.
func (c *Config) ResolveNodeID() string {
	if c.Server.NodeID != "" {
		return c.Server.NodeID
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = c.Server.Hostname
	}
	return fmt.Sprintf("%s-%d", host, c.Server.Port)
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	configPath := path
	if configPath == "" {
		env := os.Getenv("ENV")
		if env == "" {
			env = "local"
		}
		configPath = filepath.Join("internal", "storage", "config", env+".yaml")
	}

	cfg := DefaultConfig()

	parsedCfg, err := conflux.ParseConfig(configPath, cfg)
	if err != nil {
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
