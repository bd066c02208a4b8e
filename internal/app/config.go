package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/entrelaunch/platform/internal/proxy"
)

// Config represents the runtime configuration for the EntreLaunch backend.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Tasks      TasksConfig      `mapstructure:"tasks"`
	Retention  RetentionConfig  `mapstructure:"retention"`
	PayTabs    PayTabsConfig    `mapstructure:"paytabs"`
	Dify       DifyConfig       `mapstructure:"dify"`
	Geo        GeoConfig        `mapstructure:"geo"`
	SMS        SMSConfig        `mapstructure:"sms"`
	Proxy      ProxyConfig      `mapstructure:"proxy"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

// CacheConfig selects the shared cache backend.
type CacheConfig struct {
	Backend string `mapstructure:"backend"`
}

// AuthConfig captures authentication settings.
type AuthConfig struct {
	JWT     JWTSettings     `mapstructure:"jwt"`
	Session SessionSettings `mapstructure:"session"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// SessionSettings configures refresh token lifetimes.
type SessionSettings struct {
	RefreshTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// TasksConfig holds per-task enable flags keyed by task name. Tasks missing
// from the map default to enabled.
type TasksConfig struct {
	Enabled map[string]bool `mapstructure:"enabled"`
}

// IsEnabled reports whether the named task should run.
func (t TasksConfig) IsEnabled(name string) bool {
	if t.Enabled == nil {
		return true
	}
	enabled, ok := t.Enabled[name]
	if !ok {
		return true
	}
	return enabled
}

// RetentionConfig controls the soft-delete retention window.
type RetentionConfig struct {
	TombstoneTTL time.Duration `mapstructure:"tombstone_ttl"`
}

// PayTabsConfig holds the payment gateway credentials.
type PayTabsConfig struct {
	ProfileID int    `mapstructure:"profile_id"`
	ServerKey string `mapstructure:"server_key"`
	ClientKey string `mapstructure:"client_key"`
	Region    string `mapstructure:"region"`
	Currency  string `mapstructure:"currency"`
}

// DifyConfig holds the AI assistant endpoint settings.
type DifyConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// GeoConfig holds the IP geolocation service settings.
type GeoConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SMSConfig holds the outbound SMS gateway settings.
type SMSConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"api_key"`
	From    string        `mapstructure:"from"`
	Secret  string        `mapstructure:"otp_secret"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ProxyConfig declares reverse proxy routes.
type ProxyConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Routes  []proxy.Route `mapstructure:"routes"`
}

// MonitoringConfig enables the metrics endpoint.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig toggles the metrics endpoint.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("ENTRELAUNCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/entrelaunch.sqlite")

	v.SetDefault("cache.backend", "memory")

	v.SetDefault("auth.jwt.issuer", "entrelaunch")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")
	v.SetDefault("auth.session.refresh_token_ttl", "720h") // 30 days

	v.SetDefault("retention.tombstone_ttl", "720h") // 30 days

	v.SetDefault("paytabs.region", "GLOBAL")
	v.SetDefault("paytabs.currency", "USD")

	v.SetDefault("dify.enabled", false)
	v.SetDefault("dify.timeout", "60s")

	v.SetDefault("geo.enabled", false)
	v.SetDefault("geo.timeout", "5s")

	v.SetDefault("sms.enabled", false)
	v.SetDefault("sms.timeout", "10s")

	v.SetDefault("proxy.enabled", false)

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
