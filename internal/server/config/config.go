// Package config handles configuration for the transmute application,
// including defaults, JSON overlay, and command-line flags.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	StorageLocal = "local"
	StorageS3    = "s3"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds runtime settings.
//
// Fields:
//   - DatabaseDriver: "sqlite" (default) or "postgres".
//   - DatabaseDSN: driver DSN. Empty with sqlite means <DataDir>/transmute.db.
//   - StorageBackend: "local" keeps blobs under DataDir/blobs, "s3" uses the bucket.
//   - WorkDir: scratch space for running conversions.
//   - ConversionTimeout / MaxParallelConversions: limits for converter execution.
//   - S3AccessKey / S3SecretKey / S3Bucket / S3Region / S3BaseEndpoint / S3Prefix: object storage settings.
type Config struct {
	DatabaseDriver         string
	DatabaseDSN            string
	StorageBackend         string
	DataDir                string
	WorkDir                string
	FFmpegPath             string
	ConversionTimeout      time.Duration
	MaxParallelConversions int
	LogLevel               string
	LogFormat              string
	S3AccessKey            string
	S3SecretKey            string
	S3Bucket               string
	S3Region               string
	S3BaseEndpoint         string
	S3Prefix               string
	S3UsePathStyle         bool
}

// LoadDefaults populates Config with local development defaults.
func (c *Config) LoadDefaults() {
	c.DatabaseDriver = DriverSQLite
	c.DatabaseDSN = ""
	c.StorageBackend = StorageLocal
	c.DataDir = "data"
	c.WorkDir = ""
	c.FFmpegPath = "ffmpeg"
	c.ConversionTimeout = 5 * time.Minute
	c.MaxParallelConversions = 2
	c.LogLevel = "warn"
	c.LogFormat = "text"
	c.S3AccessKey = ""
	c.S3SecretKey = ""
	c.S3Bucket = "transmute"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = ""
	c.S3Prefix = ""
	c.S3UsePathStyle = true
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags in args.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the application cannot start with.
func (c *Config) Validate() error {
	c.DatabaseDriver = strings.ToLower(strings.TrimSpace(c.DatabaseDriver))
	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))

	switch c.DatabaseDriver {
	case DriverSQLite:
	case DriverPostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("config: postgres driver requires a database DSN")
		}
	default:
		return fmt.Errorf("config: unknown database driver %q", c.DatabaseDriver)
	}

	switch c.StorageBackend {
	case StorageLocal:
	case StorageS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("config: s3 storage requires a bucket")
		}
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.StorageBackend)
	}

	if c.DataDir == "" {
		return fmt.Errorf("config: data directory must not be empty")
	}
	if c.ConversionTimeout < 0 {
		return fmt.Errorf("config: negative conversion timeout %s", c.ConversionTimeout)
	}
	if c.MaxParallelConversions < 1 {
		return fmt.Errorf("config: max parallel conversions must be at least 1, got %d", c.MaxParallelConversions)
	}
	return nil
}

// SQLitePath is where the SQLite database lives when no DSN is configured.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "transmute.db")
}

// BlobDir is the root of local raw storage.
func (c *Config) BlobDir() string {
	return filepath.Join(c.DataDir, "blobs")
}

// ScratchDir is where conversions unpack their inputs.
func (c *Config) ScratchDir() string {
	if c.WorkDir != "" {
		return c.WorkDir
	}
	return filepath.Join(c.DataDir, "work")
}
