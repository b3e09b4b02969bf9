// Package config loads the platform's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the control plane.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Identity IdentityConfig `yaml:"identity"`
	Launcher LauncherConfig `yaml:"launcher"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures the control-plane listener.
type ServerConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	InactivityTimeout  string `yaml:"inactivity_timeout"`
	MaxLineBytes       int    `yaml:"max_line_bytes"`
	RateLimitPerSecond int    `yaml:"rate_limit_per_second"`
}

// DatabaseConfig configures the relational stores backing identity, catalog,
// and reviews. Each may point at a different DSN but typically share a driver.
type DatabaseConfig struct {
	Driver     string `yaml:"driver"` // sqlite3, postgres, mysql
	AuthDSN    string `yaml:"auth_dsn"`
	GameDSN    string `yaml:"game_dsn"`
	ReviewsDSN string `yaml:"reviews_dsn"`
}

// StorageConfig configures the package store's on-disk tree.
type StorageConfig struct {
	BaseDir       string `yaml:"base_dir"`
	ChunkSize     int    `yaml:"chunk_size"`
	MaxUploadSize int64  `yaml:"max_upload_size"`
}

// IdentityConfig configures password hashing cost parameters.
type IdentityConfig struct {
	ArgonTime    uint32 `yaml:"argon_time"`
	ArgonMemory  uint32 `yaml:"argon_memory_kib"`
	ArgonThreads uint8  `yaml:"argon_threads"`
	ArgonKeyLen  uint32 `yaml:"argon_key_len"`
}

// LauncherConfig configures match launching and the report channel.
type LauncherConfig struct {
	ReportHost         string `yaml:"report_host"`
	ReportPort         int    `yaml:"report_port"`
	PortRangeMin       int    `yaml:"port_range_min"`
	PortRangeMax       int    `yaml:"port_range_max"`
	PortAllocRetries   int    `yaml:"port_alloc_retries"`
	HeartbeatTimeout   string `yaml:"heartbeat_timeout"`
	StartHealthTimeout string `yaml:"start_health_timeout"`
	SecretDir          string `yaml:"secret_dir"`
	ProtocolVersion    string `yaml:"protocol_version"`
}

// LoggingConfig mirrors the ambient logging stack's configuration shape.
type LoggingConfig struct {
	Level  string   `yaml:"level"`
	Format string   `yaml:"format"`
	Output string   `yaml:"output"`
	File   *LogFile `yaml:"file,omitempty"`
}

// LogFile configures rotation when Output == "file".
type LogFile struct {
	Directory string `yaml:"directory"`
	Filename  string `yaml:"filename"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files"`
	MaxAgeDay int    `yaml:"max_age_days"`
	Compress  bool   `yaml:"compress"`
}

// MetricsConfig configures the Prometheus HTTP endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads and parses a YAML config file, expanding environment variables
// first so deployment secrets need not be committed to the file itself.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration with the spec's documented defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               9000,
			InactivityTimeout:  "300s",
			MaxLineBytes:       64 * 1024,
			RateLimitPerSecond: 50,
		},
		Database: DatabaseConfig{
			Driver:     "sqlite3",
			AuthDSN:    "data/auth.db",
			GameDSN:    "data/game.db",
			ReviewsDSN: "data/reviews.db",
		},
		Storage: StorageConfig{
			BaseDir:       "base",
			ChunkSize:     64 * 1024,
			MaxUploadSize: 512 * 1024 * 1024,
		},
		Identity: IdentityConfig{
			ArgonTime:    1,
			ArgonMemory:  64 * 1024,
			ArgonThreads: 4,
			ArgonKeyLen:  32,
		},
		Launcher: LauncherConfig{
			ReportHost:         "127.0.0.1",
			ReportPort:         9100,
			PortRangeMin:       20000,
			PortRangeMax:       29999,
			PortAllocRetries:   20,
			HeartbeatTimeout:   "60s",
			StartHealthTimeout: "5s",
			SecretDir:          "base/tmp/secrets",
			ProtocolVersion:    "1",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// ParseDuration parses a duration string with a fallback, matching the
// forgiving style the rest of the stack uses for YAML-supplied durations.
func ParseDuration(durationStr string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(durationStr); err == nil {
		return d
	}
	return fallback
}
