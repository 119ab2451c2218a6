// Package config loads runtime configuration for the statusctl tooling from
// an optional config.yaml plus STATUSCORE_-prefixed environment overrides.
package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration with defaults applied.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Blob    BlobConfig    `mapstructure:"blob"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// StorageConfig selects the record storage backend.
type StorageConfig struct {
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// BlobConfig selects the snapshot archive backend.
type BlobConfig struct {
	Driver      string `mapstructure:"driver"`
	FSRoot      string `mapstructure:"fs_root"`
	S3Bucket    string `mapstructure:"s3_bucket"`
	S3Region    string `mapstructure:"s3_region"`
	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3PathStyle bool   `mapstructure:"s3_path_style"`
}

// LoggingConfig controls the CLI logger.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Driver:     "sqlite",
			SQLitePath: "./statuscore.db",
		},
		Blob: BlobConfig{
			Driver: "fs",
			FSRoot: "./archivedata",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads config.yaml from the given directory (optional) and applies
// environment overrides such as STATUSCORE_STORAGE_DRIVER or
// STATUSCORE_BLOB_S3_BUCKET. A missing config file is not an error.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	} else {
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("STATUSCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range []string{
		"storage.driver", "storage.sqlite_path", "storage.postgres_dsn",
		"blob.driver", "blob.fs_root", "blob.s3_bucket", "blob.s3_region",
		"blob.s3_endpoint", "blob.s3_path_style",
		"logging.level",
	} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	if v.IsSet("storage.driver") {
		cfg.Storage.Driver = v.GetString("storage.driver")
	}
	if v.IsSet("storage.sqlite_path") {
		cfg.Storage.SQLitePath = v.GetString("storage.sqlite_path")
	}
	if v.IsSet("storage.postgres_dsn") {
		cfg.Storage.PostgresDSN = v.GetString("storage.postgres_dsn")
	}
	if v.IsSet("blob.driver") {
		cfg.Blob.Driver = v.GetString("blob.driver")
	}
	if v.IsSet("blob.fs_root") {
		cfg.Blob.FSRoot = v.GetString("blob.fs_root")
	}
	if v.IsSet("blob.s3_bucket") {
		cfg.Blob.S3Bucket = v.GetString("blob.s3_bucket")
	}
	if v.IsSet("blob.s3_region") {
		cfg.Blob.S3Region = v.GetString("blob.s3_region")
	}
	if v.IsSet("blob.s3_endpoint") {
		cfg.Blob.S3Endpoint = v.GetString("blob.s3_endpoint")
	}
	if v.IsSet("blob.s3_path_style") {
		cfg.Blob.S3PathStyle = v.GetBool("blob.s3_path_style")
	}
	if v.IsSet("logging.level") {
		cfg.Logging.Level = v.GetString("logging.level")
	}

	return cfg, nil
}
