package goCampus

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goCampus/notify"
)

// Storage drivers accepted by [StorageConfig.Driver].
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
	StorageFile   = "file"
)

// DefaultBaseURL is the development backend address used when none is configured.
const DefaultBaseURL = "http://127.0.0.1:8080/api"

// Config is the full client configuration.
//
// Config is a value type. [Builder.WithConfig] copies it, so a Config may be reused
// to build several clients.
type Config struct {
	API     APIConfig       `yaml:"api"`
	Session SessionConfig   `yaml:"session"`
	Storage StorageConfig   `yaml:"storage"`
	Notify  notify.Messages `yaml:"notify"`
	Audit   AuditConfig     `yaml:"audit"`
	Metrics MetricsConfig   `yaml:"metrics"`
}

// APIConfig configures the request gateway.
type APIConfig struct {
	// BaseURL is the absolute API root every path is appended to. It also prefixes
	// server-relative avatar paths.
	BaseURL string `yaml:"base_url"`
	// Timeout bounds one call when the builder creates the HTTP client. Zero means no
	// timeout beyond the caller's context.
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// SessionConfig controls the session store.
type SessionConfig struct {
	// RejectExpired makes CheckLogin treat a session whose token has a known, past
	// expiry as logged out.
	RejectExpired bool `yaml:"reject_expired"`
}

// StorageConfig selects the durable mirror for the session.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	// KeyPrefix namespaces keys in shared backends (redis, sqlite).
	KeyPrefix     string `yaml:"key_prefix"`
	Path          string `yaml:"path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	// DropIfFull drops events instead of blocking the session operation when the
	// buffer is full. Drops are counted by [Client.AuditDropped].
	DropIfFull bool `yaml:"drop_if_full"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:   DefaultBaseURL,
			Timeout:   10 * time.Second,
			UserAgent: "gocampus",
		},
		Storage: StorageConfig{
			Driver:    StorageMemory,
			KeyPrefix: "gocampus",
			RedisAddr: "127.0.0.1:6379",
		},
		Notify: notify.DefaultMessages(),
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

// DefaultConfig returns the configuration used by [New].
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(c Config) Config {
	// Config holds only value fields; the copy is already independent.
	return c
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("API BaseURL must be set")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Host == "" {
		return errors.New("API BaseURL must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("API BaseURL scheme must be http or https")
	}
	if c.API.Timeout < 0 {
		return errors.New("API Timeout must be >= 0")
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StorageRedis:
		if c.Storage.RedisAddr == "" {
			return errors.New("Storage RedisAddr must be set for the redis driver")
		}
		if c.Storage.RedisDB < 0 {
			return errors.New("Storage RedisDB must be >= 0")
		}
	case StorageSQLite, StorageFile:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return errors.New("Storage Path must be set for the " + c.Storage.Driver + " driver")
		}
	default:
		return errors.New("Storage Driver must be one of memory, redis, sqlite, file")
	}
	if strings.ContainsAny(c.Storage.KeyPrefix, " \t\n") {
		return errors.New("Storage KeyPrefix must not contain whitespace")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
