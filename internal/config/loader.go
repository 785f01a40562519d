package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

// ErrMissingDBPath is returned when db_path is absent from both the config
// file and the DB_PATH environment variable.
var ErrMissingDBPath = errors.New("config: db_path is required (set it in the config file or the DB_PATH environment variable)")

// Load reads the TOML configuration file at path and returns a validated
// [Config]. It is a thin wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a TOML config from r, fills in defaults for every
// key but db_path, and validates the result. A missing db_path is fatal;
// every other missing key is logged as a warning and defaulted.
func LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	cfg := &Config{}
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode toml: %w", err)
	}

	if cfg.DBPath == "" {
		cfg.DBPath = os.Getenv("DB_PATH")
	}
	if cfg.DBPath == "" {
		return nil, ErrMissingDBPath
	}

	applyDefault(md, "db_queue_size", &cfg.DBQueueSize, DefaultDBQueueSize)
	applyDefault(md, "roll_timeout_ms", &cfg.RollTimeoutMS, DefaultRollTimeoutMS)
	applyDefault(md, "rng_reseed_s", &cfg.RNGReseedS, DefaultRNGReseedS)
	applyDefault(md, "rng_workers", &cfg.RNGWorkers, DefaultRNGWorkers)

	if cfg.Clients == nil {
		cfg.Clients = make(map[string]ClientConfig)
	}
	for name, client := range cfg.Clients {
		changed := false
		if client.QueueSize == 0 {
			slog.Warn("config: missing queue_size for client, using default", "client", name, "default", DefaultQueueSize)
			client.QueueSize = DefaultQueueSize
			changed = true
		}
		if client.CacheSize == 0 {
			slog.Warn("config: missing cache_size for client, using default", "client", name, "default", DefaultCacheSize)
			client.CacheSize = DefaultCacheSize
			changed = true
		}
		if changed {
			cfg.Clients[name] = client
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefault sets *dst to def and logs a warning if key was absent from
// the decoded document.
func applyDefault(md toml.MetaData, key string, dst *int, def int) {
	if md.IsDefined(key) {
		return
	}
	slog.Warn("config: missing key, using default", "key", key, "default", def)
	*dst = def
}

// Validate checks that cfg contains a coherent set of values, returning a
// joined error listing every failure found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.DBQueueSize < 1 {
		errs = append(errs, fmt.Errorf("db_queue_size must be at least 1, got %d", cfg.DBQueueSize))
	}
	if cfg.RollTimeoutMS < 1 {
		errs = append(errs, fmt.Errorf("roll_timeout_ms must be at least 1, got %d", cfg.RollTimeoutMS))
	}
	if cfg.RNGReseedS < 1 {
		errs = append(errs, fmt.Errorf("rng_reseed_s must be at least 1, got %d", cfg.RNGReseedS))
	}
	if cfg.RNGWorkers < 1 {
		errs = append(errs, fmt.Errorf("rng_workers must be at least 1, got %d", cfg.RNGWorkers))
	}
	for name, client := range cfg.Clients {
		if client.QueueSize < 1 {
			errs = append(errs, fmt.Errorf("clients.%s.queue_size must be at least 1, got %d", name, client.QueueSize))
		}
		if client.CacheSize < 1 {
			errs = append(errs, fmt.Errorf("clients.%s.cache_size must be at least 1, got %d", name, client.CacheSize))
		}
	}

	return errors.Join(errs...)
}
