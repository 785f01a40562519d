package config

// ConfigDiff describes what changed between two configs. It tracks the log
// level, which can be applied without a restart, and the per-client_type
// tuning blocks, which are baked into already-running storage actors and
// only take effect after a restart. The remaining top-level keys (db_path,
// db_queue_size, roll_timeout_ms, rng_reseed_s, rng_workers) are not
// tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	ClientsChanged bool
	ClientChanges  []ClientDiff
}

// ClientDiff describes what changed for a single client_type's tuning
// block between two configs.
type ClientDiff struct {
	ClientType      string
	QueueSizeBefore int
	QueueSizeAfter  int
	CacheSizeBefore int
	CacheSizeAfter  int
	Added           bool
	Removed         bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	for name, oldClient := range old.Clients {
		newClient, exists := new.Clients[name]
		if !exists {
			d.ClientChanges = append(d.ClientChanges, ClientDiff{ClientType: name, Removed: true})
			d.ClientsChanged = true
			continue
		}
		if oldClient != newClient {
			d.ClientChanges = append(d.ClientChanges, ClientDiff{
				ClientType:      name,
				QueueSizeBefore: oldClient.QueueSize,
				QueueSizeAfter:  newClient.QueueSize,
				CacheSizeBefore: oldClient.CacheSize,
				CacheSizeAfter:  newClient.CacheSize,
			})
			d.ClientsChanged = true
		}
	}
	for name := range new.Clients {
		if _, exists := old.Clients[name]; !exists {
			d.ClientChanges = append(d.ClientChanges, ClientDiff{ClientType: name, Added: true})
			d.ClientsChanged = true
		}
	}

	return d
}
