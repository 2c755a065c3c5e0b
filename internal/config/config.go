// Package config loads pipeline configuration from defaults, an optional
// YAML file, and SIGNALPIPE_-prefixed environment variables. Tunable keys
// hot-reload through the file watcher; everything else requires a restart.
package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the full configuration surface.
type Config struct {
	Port string `mapstructure:"port"`

	// Batching and queueing.
	BatchSize        int           `mapstructure:"batch_size"`
	MaxBatchSize     int           `mapstructure:"max_batch_size"`
	BatchInterval    time.Duration `mapstructure:"batch_interval"`
	MinBatchInterval time.Duration `mapstructure:"min_batch_interval"`
	MaxQueueDepth    int           `mapstructure:"max_queue_depth"`
	WorkerCount      int           `mapstructure:"worker_count"`
	WorkerTimeout    time.Duration `mapstructure:"worker_timeout"`

	// Interventions.
	EmissionConfidenceThreshold float64       `mapstructure:"emission_confidence_threshold"`
	InterventionCooldown        time.Duration `mapstructure:"intervention_cooldown"`
	DebounceRetention           time.Duration `mapstructure:"debounce_retention"`

	// History and monitoring.
	HistoryCapacity int           `mapstructure:"history_capacity"`
	MemoryCeiling   uint64        `mapstructure:"memory_ceiling_bytes"`
	LatencyCeiling  time.Duration `mapstructure:"latency_ceiling"`
	MonitorInterval time.Duration `mapstructure:"monitor_interval"`

	// Classifier.
	ClassifierEndpoint string        `mapstructure:"classifier_endpoint"`
	CacheSize          int           `mapstructure:"cache_size"`
	CacheTTL           time.Duration `mapstructure:"cache_ttl"`

	// Inbound rate limiting.
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute"`
	RateLimitBurst     int `mapstructure:"rate_limit_burst"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")

	v.SetDefault("batch_size", 8)
	v.SetDefault("max_batch_size", 64)
	v.SetDefault("batch_interval", 50*time.Millisecond)
	v.SetDefault("min_batch_interval", 10*time.Millisecond)
	v.SetDefault("max_queue_depth", 100)
	v.SetDefault("worker_count", 4)
	v.SetDefault("worker_timeout", 150*time.Millisecond)

	v.SetDefault("emission_confidence_threshold", 0.8)
	v.SetDefault("intervention_cooldown", time.Second)
	v.SetDefault("debounce_retention", 60*time.Second)

	v.SetDefault("history_capacity", 200)
	v.SetDefault("memory_ceiling_bytes", uint64(100*1024*1024))
	v.SetDefault("latency_ceiling", 200*time.Millisecond)
	v.SetDefault("monitor_interval", 10*time.Second)

	v.SetDefault("classifier_endpoint", "")
	v.SetDefault("cache_size", 512)
	v.SetDefault("cache_ttl", 30*time.Second)

	v.SetDefault("rate_limit_per_minute", 600)
	v.SetDefault("rate_limit_burst", 60)
}

// Load reads configuration. path may be empty (defaults + env only) or
// point at a YAML file. The returned viper instance is used by Watch.
func Load(path string) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SIGNALPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, err
		}
	}

	cfg, err := unmarshal(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

// Watch re-reads the config file on change and invokes onChange with the
// fresh configuration. No-op when no config file is in use.
func Watch(v *viper.Viper, onChange func(Config)) {
	if v.ConfigFileUsed() == "" {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := unmarshal(v)
		if err != nil {
			slog.Error("ignoring invalid config reload", "file", e.Name, "error", err)
			return
		}
		slog.Info("configuration reloaded", "file", e.Name)
		onChange(*cfg)
	})
	v.WatchConfig()
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
