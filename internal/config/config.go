package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every knob a crawl run or its REST trigger surface reads.
type Config struct {
	Port           int      `mapstructure:"port"`
	DatabasePath   string   `mapstructure:"database_path"`
	DatabaseURL    string   `mapstructure:"database_url"` // non-empty selects Postgres over SQLite
	LogLevel       string   `mapstructure:"log_level"`  // debug | info | warn | error
	LogFormat      string   `mapstructure:"log_format"` // json | text
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	RootIDs           []string `mapstructure:"root_ids"`           // e.g. "organizations/12345"
	ExcludedResources []string `mapstructure:"excluded_resources"` // "<type>/<key>" entries
	DispatchPoolSize  int      `mapstructure:"dispatch_pool_size"`

	RequestTimeoutSec  int `mapstructure:"request_timeout_sec"`  // HTTP server read/write timeout (cmd/server)
	ShutdownTimeoutSec int `mapstructure:"shutdown_timeout_sec"` // graceful shutdown wait

	GCPCredentialsPath string `mapstructure:"gcp_credentials_path"` // empty = application-default credentials

	// Tracing (OpenTelemetry)
	TracingEnabled      bool    `mapstructure:"tracing_enabled"`
	TracingEndpoint     string  `mapstructure:"tracing_endpoint"`
	TracingServiceName  string  `mapstructure:"tracing_service_name"`
	TracingSamplingRate float64 `mapstructure:"tracing_sampling_rate"`

	MetricsAuthEnabled bool `mapstructure:"metrics_auth_enabled"`

	// TLS
	TLSEnabled  bool   `mapstructure:"tls_enabled"`
	TLSCertPath string `mapstructure:"tls_cert_path"`
	TLSKeyPath  string `mapstructure:"tls_key_path"`
}

// Load reads config.yaml from the usual search paths, layers environment
// variables under the INVENTORY_CRAWLER_ prefix over it, and applies
// defaults for everything unset.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/inventory-crawler/")
	viper.AddConfigPath("$HOME/.inventory-crawler")
	viper.AddConfigPath(".")

	viper.SetDefault("port", 8090)
	viper.SetDefault("database_path", "./inventory.db")
	viper.SetDefault("database_url", "")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "json")
	viper.SetDefault("allowed_origins", []string{"http://localhost:5173"})

	viper.SetDefault("root_ids", []string{})
	viper.SetDefault("excluded_resources", []string{})
	viper.SetDefault("dispatch_pool_size", 16)

	viper.SetDefault("request_timeout_sec", 30)
	viper.SetDefault("shutdown_timeout_sec", 15)

	viper.SetDefault("gcp_credentials_path", "")

	viper.SetDefault("tracing_enabled", false)
	viper.SetDefault("tracing_endpoint", "")
	viper.SetDefault("tracing_service_name", "inventory-crawler")
	viper.SetDefault("tracing_sampling_rate", 1.0)

	viper.SetDefault("metrics_auth_enabled", false)

	viper.SetDefault("tls_enabled", false)
	viper.SetDefault("tls_cert_path", "")
	viper.SetDefault("tls_key_path", "")

	viper.SetEnvPrefix("INVENTORY_CRAWLER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	// INVENTORY_CRAWLER_ROOT_IDS and _EXCLUDED_RESOURCES commonly arrive as a
	// single comma-separated env var rather than a YAML list.
	cfg.RootIDs = splitCommaEnv(cfg.RootIDs)
	cfg.ExcludedResources = splitCommaEnv(cfg.ExcludedResources)
	cfg.AllowedOrigins = splitCommaEnv(cfg.AllowedOrigins)

	if !cfg.TracingEnabled && os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		cfg.TracingEnabled = true
		if cfg.TracingEndpoint == "" {
			cfg.TracingEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
	}

	return &cfg, nil
}

// splitCommaEnv normalizes a string slice that may have arrived as one
// comma-separated element (common for env-var-sourced config) into a
// trimmed, non-empty list.
func splitCommaEnv(values []string) []string {
	if len(values) == 1 && strings.Contains(values[0], ",") {
		values = strings.Split(values[0], ",")
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
