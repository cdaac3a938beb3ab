package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/transmute/internal/flagx"
	"github.com/dmitrijs2005/transmute/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration, so both "90s" and integer nanoseconds are accepted.
//
// Pointer fields distinguish "absent" from zero values: only keys present in
// the file override defaults.
type JsonConfig struct {
	DatabaseDriver         *string         `json:"database_driver"`
	DatabaseDSN            *string         `json:"database_dsn"`
	StorageBackend         *string         `json:"storage_backend"`
	DataDir                *string         `json:"data_dir"`
	WorkDir                *string         `json:"work_dir"`
	FFmpegPath             *string         `json:"ffmpeg_path"`
	ConversionTimeout      *timex.Duration `json:"conversion_timeout"`
	MaxParallelConversions *int            `json:"max_parallel_conversions"`
	LogLevel               *string         `json:"log_level"`
	LogFormat              *string         `json:"log_format"`
	S3AccessKey            *string         `json:"s3_access_key"`
	S3SecretKey            *string         `json:"s3_secret_key"`
	S3Bucket               *string         `json:"s3_bucket"`
	S3Region               *string         `json:"s3_region"`
	S3BaseEndpoint         *string         `json:"s3_base_endpoint"`
	S3Prefix               *string         `json:"s3_prefix"`
	S3UsePathStyle         *bool           `json:"s3_use_path_style"`
}

// parseJson overlays values from the JSON file named by -c/-config in args
// (or $TRANSMUTE_CONFIG). Nothing happens when no file is named.
func parseJson(config *Config, args []string) error {
	jsonConfigFile := flagx.JsonConfigFlags(args)

	// nothing to load
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("read config %s: %w", jsonConfigFile, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", jsonConfigFile, err)
	}

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.DatabaseDriver, c.DatabaseDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.StorageBackend, c.StorageBackend)
	setString(&config.DataDir, c.DataDir)
	setString(&config.WorkDir, c.WorkDir)
	setString(&config.FFmpegPath, c.FFmpegPath)
	if c.ConversionTimeout != nil {
		config.ConversionTimeout = c.ConversionTimeout.Duration
	}
	if c.MaxParallelConversions != nil {
		config.MaxParallelConversions = *c.MaxParallelConversions
	}
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3Prefix, c.S3Prefix)
	if c.S3UsePathStyle != nil {
		config.S3UsePathStyle = *c.S3UsePathStyle
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
