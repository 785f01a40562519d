// Package config provides the TOML configuration schema and loader for
// rollbot: database location, roll execution tuning, and per-client_type
// queue/cache sizing.
package config

// LogLevel controls slog verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l is one of the four recognised levels.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}

// Defaults, per the external interface table: db_queue_size 64,
// roll_timeout_ms 2000, rng_reseed_s 300, rng_workers 4, and every
// per-client queue_size/cache_size default to 64/1024.
const (
	DefaultDBQueueSize   = 64
	DefaultRollTimeoutMS = 2000
	DefaultRNGReseedS    = 300
	DefaultRNGWorkers    = 4
	DefaultQueueSize     = 64
	DefaultCacheSize     = 1024
)

// Config is the root rollbot configuration, loaded from a single TOML file
// named as the process's one positional argument.
type Config struct {
	Server ServerConfig `toml:"server"`

	// DBPath is the only key with no default: a missing value is fatal.
	DBPath        string `toml:"db_path"`
	DBQueueSize   int    `toml:"db_queue_size"`
	RollTimeoutMS int    `toml:"roll_timeout_ms"`
	RNGReseedS    int    `toml:"rng_reseed_s"`
	RNGWorkers    int    `toml:"rng_workers"`

	Discord DiscordConfig `toml:"discord"`

	// Clients holds the per-client_type [clients.<name>] tables, e.g.
	// [clients.discord] queue_size = 64 / cache_size = 1024.
	Clients map[string]ClientConfig `toml:"clients"`
}

// ServerConfig holds ambient process settings.
type ServerConfig struct {
	LogLevel    LogLevel `toml:"log_level"`
	MetricsAddr string   `toml:"metrics_addr"`
}

// DiscordConfig configures the Discord transport adapter. Token is required
// only if the Discord adapter is actually started.
type DiscordConfig struct {
	Token       string `toml:"token"`
	ClientType  string `toml:"client_type"`
	AdminRoleID string `toml:"admin_role_id"`
}

// ClientConfig is the per-client_type storage tuning block.
type ClientConfig struct {
	QueueSize int `toml:"queue_size"`
	CacheSize int `toml:"cache_size"`
}
