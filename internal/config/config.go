// Package config loads engine configuration from file, environment and
// defaults, in that order of increasing precedence for env over file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration of the data core.
type Config struct {
	// DBPath is the SQLite database file.
	DBPath string `mapstructure:"db_path"`

	// RedisAddr is the remote replicated store address (host:port).
	RedisAddr string `mapstructure:"redis_addr"`
	// RedisPassword is optional.
	RedisPassword string `mapstructure:"redis_password"`
	// RedisDB selects the logical database.
	RedisDB int `mapstructure:"redis_db"`

	// UpsyncInterval is the upsync timer period.
	UpsyncInterval time.Duration `mapstructure:"upsync_interval"`
	// UpsyncBatchSize caps posts pushed per tick.
	UpsyncBatchSize int `mapstructure:"upsync_batch_size"`

	// LogFile, when set, routes daemon logs to a rotating file instead
	// of stderr.
	LogFile string `mapstructure:"log_file"`

	// BlobDir is where the local blob store keeps uploads.
	BlobDir string `mapstructure:"blob_dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DBPath:          ".noborder/noborder.db",
		RedisAddr:       "localhost:6379",
		UpsyncInterval:  5 * time.Second,
		UpsyncBatchSize: 20,
		BlobDir:         ".noborder/blobs",
	}
}

// Load reads configuration from the given file (optional), environment
// variables prefixed NOBORDER_, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("db_path", def.DBPath)
	v.SetDefault("redis_addr", def.RedisAddr)
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("upsync_interval", def.UpsyncInterval)
	v.SetDefault("upsync_batch_size", def.UpsyncBatchSize)
	v.SetDefault("log_file", "")
	v.SetDefault("blob_dir", def.BlobDir)

	v.SetEnvPrefix("NOBORDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("noborder")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(".noborder")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.UpsyncInterval <= 0 {
		return nil, fmt.Errorf("upsync_interval must be positive, got %s", cfg.UpsyncInterval)
	}
	if cfg.UpsyncBatchSize <= 0 {
		return nil, fmt.Errorf("upsync_batch_size must be positive, got %d", cfg.UpsyncBatchSize)
	}
	return &cfg, nil
}
