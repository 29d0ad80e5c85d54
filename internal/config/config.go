// Package config loads and validates polzatd configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. POLZAT_SERVER_PORT.
const EnvPrefix = "POLZAT"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Frontier   FrontierConfig   `mapstructure:"frontier"`
	Politeness PolitenessConfig `mapstructure:"politeness"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Tor        TorConfig        `mapstructure:"tor"`
	Storage    StorageConfig    `mapstructure:"storage"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// ServerConfig controls the RPC gateway.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// SchedulerConfig governs the dispatch loop and worker pool.
type SchedulerConfig struct {
	ThreadCount         int `mapstructure:"thread_count"`
	SaturationBackoffMs int `mapstructure:"saturation_backoff_ms"`
	IdleBackoffMs       int `mapstructure:"idle_backoff_ms"`
}

// FrontierConfig bounds the pending task queue. Zero capacity is unbounded.
type FrontierConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// PolitenessConfig controls robots.txt fetching.
type PolitenessConfig struct {
	UserAgent           string `mapstructure:"user_agent"`
	FetchTimeoutSeconds int    `mapstructure:"fetch_timeout_seconds"`
	MaxBodyBytes        int64  `mapstructure:"max_body_bytes"`
	SingleFlight        bool   `mapstructure:"single_flight"`
}

// HTTPConfig configures page fetching.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
	MaxBodyBytes   int    `mapstructure:"max_body_bytes"`
}

// TorConfig points hidden-service fetches at a SOCKS5 proxy.
type TorConfig struct {
	ProxyAddress string `mapstructure:"proxy_address"`
}

// StorageConfig selects and configures the page body store. GCSBucket wins
// over LocalDir; with neither set bodies stay in memory.
type StorageConfig struct {
	GCSBucket   string `mapstructure:"gcs_bucket"`
	LocalDir    string `mapstructure:"local_dir"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// PubSubConfig holds the scrape result topic. Results are kept in memory
// unless both fields are set.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TracingConfig controls OpenTelemetry span export.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ProjectID   string  `mapstructure:"project_id"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Load builds a Config from disk and environment.
func Load(path string) (Config, error) {
	return LoadWithFlags(path, nil)
}

// LoadWithFlags is Load with command-line overrides. Flags named
// thread-count and port bind to scheduler.thread_count and server.port;
// only flags the user actually set take precedence over file and env.
func LoadWithFlags(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for key, name := range flagBindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

var flagBindings = map[string]string{
	"scheduler.thread_count": "thread-count",
	"server.port":            "port",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 12289)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("scheduler.thread_count", 10)
	v.SetDefault("scheduler.saturation_backoff_ms", 500)
	v.SetDefault("scheduler.idle_backoff_ms", 250)
	v.SetDefault("frontier.capacity", 0)
	v.SetDefault("politeness.user_agent", "polzat/0.1")
	v.SetDefault("politeness.fetch_timeout_seconds", 10)
	v.SetDefault("politeness.max_body_bytes", 1<<20)
	v.SetDefault("politeness.single_flight", true)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.user_agent", "polzat/0.1")
	v.SetDefault("http.max_body_bytes", 10<<20)
	v.SetDefault("tor.proxy_address", "127.0.0.1:9050")
	v.SetDefault("storage.prefix", "pages")
	v.SetDefault("storage.content_type", "text/html; charset=utf-8")
	v.SetDefault("pubsub.topic_name", "polzat-results")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Scheduler.ThreadCount <= 0 {
		return fmt.Errorf("scheduler.thread_count must be > 0")
	}
	if c.Scheduler.SaturationBackoffMs <= 0 || c.Scheduler.IdleBackoffMs <= 0 {
		return fmt.Errorf("scheduler backoffs must be > 0")
	}
	if c.Frontier.Capacity < 0 {
		return fmt.Errorf("frontier.capacity must be >= 0")
	}
	if c.Politeness.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("politeness.fetch_timeout_seconds must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// SaturationBackoff is the pause taken while the in-flight ceiling is reached.
func (c Config) SaturationBackoff() time.Duration {
	return time.Duration(c.Scheduler.SaturationBackoffMs) * time.Millisecond
}

// IdleBackoff is the pause taken when the frontier is empty.
func (c Config) IdleBackoff() time.Duration {
	return time.Duration(c.Scheduler.IdleBackoffMs) * time.Millisecond
}

// RobotsTimeout bounds a single robots.txt fetch.
func (c Config) RobotsTimeout() time.Duration {
	return time.Duration(c.Politeness.FetchTimeoutSeconds) * time.Second
}

// FetchTimeout bounds a single page fetch.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// PubSubEnabled reports whether scrape results go to Cloud Pub/Sub.
func (c Config) PubSubEnabled() bool {
	return c.PubSub.ProjectID != "" && c.PubSub.TopicName != ""
}
