package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/hashdrop"
	"github.com/sagarc03/hashdrop/database"
	hashdrophttp "github.com/sagarc03/hashdrop/http"
	"github.com/sagarc03/hashdrop/s3store"
)

const (
	StoreLocal = "local"
	StoreS3    = "s3"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for hashdrop.
type Config struct {
	Server   ServerConfig            `mapstructure:"server"`
	Store    StoreConfig             `mapstructure:"store"`
	Database database.Config         `mapstructure:"database"`
	S3       s3store.Config          `mapstructure:"s3"`
	CORS     hashdrophttp.CORSConfig `mapstructure:"cors"`
	Metrics  MetricsConfig           `mapstructure:"metrics"`
	Log      LogConfig               `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Mode string `mapstructure:"mode" validate:"required,oneof=direct cdn"`
	// ExternalBaseURL is the CDN base used for redirects in cdn mode. It is
	// not required at startup; a cdn request without it fails with 500.
	ExternalBaseURL string `mapstructure:"external_base_url" validate:"omitempty,url"`
	// MaxUploadSize in bytes; 0 selects the 100 MiB default.
	MaxUploadSize   int64 `mapstructure:"max_upload_size" validate:"min=0"`
	ShutdownTimeout int   `mapstructure:"shutdown_timeout" validate:"min=1"`
}

// StoreConfig selects the object store backing the gateway.
type StoreConfig struct {
	Type string `mapstructure:"type" validate:"required,oneof=local s3"`
	// Path is the blob directory for the local store.
	Path string `mapstructure:"path" validate:"required_if=Type local"`
	// CacheSize is the number of Head results kept in memory; 0 disables it.
	CacheSize      int `mapstructure:"cache_size" validate:"min=0"`
	CleanupTimeout int `mapstructure:"cleanup_timeout" validate:"min=1"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true,omitempty,startswith=/"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// ServeMode returns the parsed server mode.
func (c *Config) ServeMode() hashdrop.ServeMode {
	return hashdrop.ServeMode(c.Server.Mode)
}

// MaxUploadSize returns the configured limit or the default.
func (c *Config) MaxUploadSize() int64 {
	if c.Server.MaxUploadSize <= 0 {
		return hashdrop.DefaultMaxUploadSize
	}
	return c.Server.MaxUploadSize
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"db-type":           "database.type",
	"db-dsn":            "database.dsn",
	"store-type":        "store.type",
	"storage-path":      "store.path",
	"cache-size":        "store.cache_size",
	"port":              "server.port",
	"mode":              "server.mode",
	"external-base-url": "server.external_base_url",
	"max-upload-size":   "server.max_upload_size",
	"log-level":         "log.level",
	"log-format":        "log.format",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Use custom mapping if it exists, otherwise use flag name as-is
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5708)
	v.SetDefault("server.mode", "direct")
	v.SetDefault("server.external_base_url", "")
	v.SetDefault("server.max_upload_size", hashdrop.DefaultMaxUploadSize)
	v.SetDefault("server.shutdown_timeout", 10) // seconds

	v.SetDefault("store.type", StoreLocal)
	v.SetDefault("store.path", "./data")
	v.SetDefault("store.cache_size", 1024)
	v.SetDefault("store.cleanup_timeout", 30) // seconds

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "hashdrop.db")
	v.SetDefault("database.tables.objects", "hashdrop_objects")

	// Registered so that AutomaticEnv can see the nested keys on Unmarshal.
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.region", "auto")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("s3.prefix", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// validateStore checks the settings that depend on the store type.
func validateStore(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)

	if cfg.Store.Type != StoreS3 {
		return
	}
	if cfg.S3.Endpoint == "" {
		sl.ReportError(cfg.S3.Endpoint, "S3.Endpoint", "Endpoint", "required_if_s3", "")
	}
	if cfg.S3.Bucket == "" {
		sl.ReportError(cfg.S3.Bucket, "S3.Bucket", "Bucket", "required_if_s3", "")
	}
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("HASHDROP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	validate.RegisterStructValidation(validateStore, Config{})
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
