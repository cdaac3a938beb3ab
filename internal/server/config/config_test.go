package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/transmute/internal/flagx"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, DriverSQLite, c.DatabaseDriver)
	assert.Equal(t, "", c.DatabaseDSN)
	assert.Equal(t, StorageLocal, c.StorageBackend)
	assert.Equal(t, "data", c.DataDir)
	assert.Equal(t, "ffmpeg", c.FFmpegPath)
	assert.Equal(t, 5*time.Minute, c.ConversionTimeout)
	assert.Equal(t, 2, c.MaxParallelConversions)
	assert.Equal(t, "warn", c.LogLevel)
	assert.Equal(t, "text", c.LogFormat)
	assert.Equal(t, "transmute", c.S3Bucket)
	assert.Equal(t, "us-east-1", c.S3Region)
	assert.True(t, c.S3UsePathStyle)
}

func TestLoadConfig_DefaultsWithoutArgs(t *testing.T) {
	t.Setenv(flagx.ConfigEnv, "")

	c, err := LoadConfig(nil)
	require.NoError(t, err)
	require.NotNil(t, c)

	var want Config
	want.LoadDefaults()
	assert.Equal(t, &want, c)
}

func TestLoadConfig_FlagsOverrideJSON(t *testing.T) {
	t.Setenv(flagx.ConfigEnv, "")

	path := writeTempJSON(t, "", "", map[string]any{
		"data_dir":           "/var/lib/transmute",
		"conversion_timeout": "90s",
		"log_level":          "info",
	})

	c, err := LoadConfig([]string{"convert", "abc", "pdf", "-c", path, "-l", "debug", "-j", "4"})
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/transmute", c.DataDir)
	assert.Equal(t, 90*time.Second, c.ConversionTimeout)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, 4, c.MaxParallelConversions)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Setenv(flagx.ConfigEnv, "")

	tests := []struct {
		name string
		args []string
	}{
		{"unknown driver", []string{"-x", "mysql"}},
		{"postgres without dsn", []string{"-x", "postgres"}},
		{"unknown storage", []string{"-s", "ftp"}},
		{"s3 without bucket", []string{"-s", "s3", "-b", ""}},
		{"zero parallelism", []string{"-j", "0"}},
		{"negative timeout", []string{"-t", "-5"}},
		{"bad int flag", []string{"-j", "many"}},
		{"missing config file", []string{"-c", filepath.Join(t.TempDir(), "absent.json")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := LoadConfig(tt.args)
			require.Error(t, err)
			assert.Nil(t, c)
		})
	}
}

func TestConfig_Paths(t *testing.T) {
	c := &Config{DataDir: filepath.Join("srv", "transmute")}

	assert.Equal(t, filepath.Join("srv", "transmute", "transmute.db"), c.SQLitePath())
	assert.Equal(t, filepath.Join("srv", "transmute", "blobs"), c.BlobDir())
	assert.Equal(t, filepath.Join("srv", "transmute", "work"), c.ScratchDir())

	c.WorkDir = os.TempDir()
	assert.Equal(t, os.TempDir(), c.ScratchDir())
}

func TestValidate_NormalizesCase(t *testing.T) {
	var c Config
	c.LoadDefaults()
	c.DatabaseDriver = " SQLite "
	c.StorageBackend = "LOCAL"

	require.NoError(t, c.Validate())
	assert.Equal(t, DriverSQLite, c.DatabaseDriver)
	assert.Equal(t, StorageLocal, c.StorageBackend)
}
