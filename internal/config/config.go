package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Search    SearchConfig    `mapstructure:"search"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Providers ProvidersConfig `mapstructure:"providers"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// RedisConfig holds connection settings shared by the cache and rate-limit
// backends.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig selects the result cache backend.
type CacheConfig struct {
	Backend string      `mapstructure:"backend"` // memory, redis, none
	Redis   RedisConfig `mapstructure:"redis"`
}

// RateLimitConfig selects the quota counter backend.
type RateLimitConfig struct {
	Backend string `mapstructure:"backend"` // memory, redis
}

// StorageConfig holds the optional directory sink settings.
type StorageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// SearchConfig holds result limit bounds.
type SearchConfig struct {
	StationDefaultLimit int `mapstructure:"station_default_limit"`
	StationMaxLimit     int `mapstructure:"station_max_limit"`
	PodcastDefaultLimit int `mapstructure:"podcast_default_limit"`
	PodcastMaxLimit     int `mapstructure:"podcast_max_limit"`
}

// SchedulerConfig holds background task intervals.
type SchedulerConfig struct {
	ProviderHealthInterval time.Duration `mapstructure:"provider_health_interval"`
	QuotaReportInterval    time.Duration `mapstructure:"quota_report_interval"`
}

// ProviderConfig holds per-provider settings. Immutable after Load.
type ProviderConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	Priority          int    `mapstructure:"priority"`
	TimeoutMs         int    `mapstructure:"timeout_ms"`
	CacheTTLMs        int    `mapstructure:"cache_ttl_ms"`
	BaseURL           string `mapstructure:"base_url"`
	APIKey            string `mapstructure:"api_key"`
	APISecret         string `mapstructure:"api_secret"`
	Bearer            string `mapstructure:"bearer"`
	RateLimit         int    `mapstructure:"rate_limit"`
	RatePeriodSeconds int    `mapstructure:"rate_period_seconds"`
}

// Timeout returns the per-request deadline for the provider.
func (p *ProviderConfig) Timeout() time.Duration {
	if p.TimeoutMs <= 0 {
		return 8 * time.Second
	}
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

// CacheTTL returns how long the provider's results stay cacheable.
func (p *ProviderConfig) CacheTTL() time.Duration {
	if p.CacheTTLMs <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(p.CacheTTLMs) * time.Millisecond
}

// RatePeriod returns the quota window length.
func (p *ProviderConfig) RatePeriod() time.Duration {
	if p.RatePeriodSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(p.RatePeriodSeconds) * time.Second
}

// ProvidersConfig holds the closed set of upstream catalog providers.
type ProvidersConfig struct {
	RadioBrowser ProviderConfig `mapstructure:"radiobrowser"`
	RadioWorld   ProviderConfig `mapstructure:"radioworld"`
	Shoutcast    ProviderConfig `mapstructure:"shoutcast"`
	ITunes       ProviderConfig `mapstructure:"itunes"`
	PodcastIndex ProviderConfig `mapstructure:"podcastindex"`
	Taddy        ProviderConfig `mapstructure:"taddy"`
}

// ByName returns the provider configs keyed by provider name.
func (p *ProvidersConfig) ByName() map[string]ProviderConfig {
	return map[string]ProviderConfig{
		"radiobrowser": p.RadioBrowser,
		"radioworld":   p.RadioWorld,
		"shoutcast":    p.Shoutcast,
		"itunes":       p.ITunes,
		"podcastindex": p.PodcastIndex,
		"taddy":        p.Taddy,
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.skywave")
	}

	v.SetEnvPrefix("SKYWAVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8780)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("logging.compress", true)

	// Cache and rate-limit backends
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("ratelimit.backend", "memory")

	// Storage sink (opt-in)
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.path", "./data/skywave.db")

	// Search limits
	v.SetDefault("search.station_default_limit", 20)
	v.SetDefault("search.station_max_limit", 100)
	v.SetDefault("search.podcast_default_limit", 20)
	v.SetDefault("search.podcast_max_limit", 50)

	// Scheduler intervals
	v.SetDefault("scheduler.provider_health_interval", "15m")
	v.SetDefault("scheduler.quota_report_interval", "1h")

	// Station providers
	v.SetDefault("providers.radiobrowser.enabled", true)
	v.SetDefault("providers.radiobrowser.priority", 1)
	v.SetDefault("providers.radiobrowser.timeout_ms", 8000)
	v.SetDefault("providers.radiobrowser.cache_ttl_ms", 600000)
	v.SetDefault("providers.radiobrowser.base_url", "")

	v.SetDefault("providers.radioworld.enabled", false)
	v.SetDefault("providers.radioworld.priority", 2)
	v.SetDefault("providers.radioworld.timeout_ms", 8000)
	v.SetDefault("providers.radioworld.cache_ttl_ms", 300000)
	v.SetDefault("providers.radioworld.base_url", "https://radio-world-75-000-worldwide-fm-radio-stations.p.rapidapi.com")
	v.SetDefault("providers.radioworld.api_key", "")

	v.SetDefault("providers.shoutcast.enabled", false)
	v.SetDefault("providers.shoutcast.priority", 3)
	v.SetDefault("providers.shoutcast.timeout_ms", 8000)
	v.SetDefault("providers.shoutcast.cache_ttl_ms", 300000)
	v.SetDefault("providers.shoutcast.base_url", "https://directory.shoutcast.com")

	// Podcast providers
	v.SetDefault("providers.itunes.enabled", true)
	v.SetDefault("providers.itunes.priority", 1)
	v.SetDefault("providers.itunes.timeout_ms", 8000)
	v.SetDefault("providers.itunes.cache_ttl_ms", 300000)
	v.SetDefault("providers.itunes.base_url", "https://itunes.apple.com")
	v.SetDefault("providers.itunes.rate_limit", 20)
	v.SetDefault("providers.itunes.rate_period_seconds", 60)

	v.SetDefault("providers.podcastindex.enabled", false)
	v.SetDefault("providers.podcastindex.priority", 2)
	v.SetDefault("providers.podcastindex.timeout_ms", 8000)
	v.SetDefault("providers.podcastindex.cache_ttl_ms", 300000)
	v.SetDefault("providers.podcastindex.base_url", "https://api.podcastindex.org/api/1.0")
	v.SetDefault("providers.podcastindex.api_key", EmbeddedPodcastIndexKey)
	v.SetDefault("providers.podcastindex.api_secret", EmbeddedPodcastIndexSecret)

	v.SetDefault("providers.taddy.enabled", false)
	v.SetDefault("providers.taddy.priority", 3)
	v.SetDefault("providers.taddy.timeout_ms", 8000)
	v.SetDefault("providers.taddy.cache_ttl_ms", 300000)
	v.SetDefault("providers.taddy.base_url", "https://api.taddy.org")
	v.SetDefault("providers.taddy.bearer", "")
	v.SetDefault("providers.taddy.rate_limit", 500)
	v.SetDefault("providers.taddy.rate_period_seconds", 2592000)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
