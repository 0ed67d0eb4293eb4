package goCampus

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file configuration in [LoadConfig].
const (
	EnvBaseURL       = "GOCAMPUS_BASE_URL"
	EnvTimeout       = "GOCAMPUS_TIMEOUT"
	EnvStorage       = "GOCAMPUS_STORAGE"
	EnvStoragePath   = "GOCAMPUS_STORAGE_PATH"
	EnvKeyPrefix     = "GOCAMPUS_KEY_PREFIX"
	EnvRedisAddr     = "GOCAMPUS_REDIS_ADDR"
	EnvRedisPassword = "GOCAMPUS_REDIS_PASSWORD"
	EnvRedisDB       = "GOCAMPUS_REDIS_DB"
	EnvRejectExpired = "GOCAMPUS_REJECT_EXPIRED"
	EnvAudit         = "GOCAMPUS_AUDIT"
	EnvMetrics       = "GOCAMPUS_METRICS"
)

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// LoadConfig builds a configuration from defaults, the YAML file at path (skipped
// when path is empty) and GOCAMPUS_* environment variables, in that order. ${VAR}
// references inside the file are expanded before parsing. The result is validated.
func LoadConfig(path string) (Config, error) {
	return loadConfig(path, os.LookupEnv)
}

func loadConfig(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		// #nosec G304 -- path comes from the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		data = []byte(envRef.ReplaceAllStringFunc(string(data), func(match string) string {
			v, _ := lookup(match[2 : len(match)-1])
			return v
		}))
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str(EnvBaseURL, &cfg.API.BaseURL)
	str(EnvStorage, &cfg.Storage.Driver)
	str(EnvStoragePath, &cfg.Storage.Path)
	str(EnvKeyPrefix, &cfg.Storage.KeyPrefix)
	str(EnvRedisAddr, &cfg.Storage.RedisAddr)
	str(EnvRedisPassword, &cfg.Storage.RedisPassword)

	if v, ok := lookup(EnvTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvTimeout, err)
		}
		cfg.API.Timeout = d
	}
	if v, ok := lookup(EnvRedisDB); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvRedisDB, err)
		}
		cfg.Storage.RedisDB = n
	}

	flags := []struct {
		key string
		dst *bool
	}{
		{EnvRejectExpired, &cfg.Session.RejectExpired},
		{EnvAudit, &cfg.Audit.Enabled},
		{EnvMetrics, &cfg.Metrics.Enabled},
	}
	for _, f := range flags {
		v, ok := lookup(f.key)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, f.key, err)
		}
		*f.dst = b
	}
	return nil
}
