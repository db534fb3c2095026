package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Engine     EngineConfig     `yaml:"engine"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// EngineConfig holds the decision engine settings. It is constructed once at
// boot and passed by reference; nothing reads configuration ambiently.
type EngineConfig struct {
	Timezone                string        `yaml:"timezone"`
	BoardOfflineSeconds     int           `yaml:"board_offline_seconds"`
	BoardOfflineAfter       time.Duration `yaml:"-"`
	RelayPulseTimeoutMillis int           `yaml:"relay_pulse_timeout_ms"`
	RelayPulseTimeout       time.Duration `yaml:"-"`
}

// PushConfig holds the VAPID keys for operator web push alerts.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig sizes the relay and notification worker pools.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Engine.BoardOfflineSeconds <= 0 {
		cfg.Engine.BoardOfflineSeconds = 120
	}
	cfg.Engine.BoardOfflineAfter = time.Duration(cfg.Engine.BoardOfflineSeconds) * time.Second

	if cfg.Engine.RelayPulseTimeoutMillis <= 0 {
		cfg.Engine.RelayPulseTimeoutMillis = 2000
	}
	cfg.Engine.RelayPulseTimeout = time.Duration(cfg.Engine.RelayPulseTimeoutMillis) * time.Millisecond

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}
