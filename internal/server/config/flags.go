package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/transmute/internal/flagx"
)

// Flags handled by parseFlags. The CLI declares the same names so its own
// parser accepts them.
var Flags = []string{"-x", "-d", "-s", "-o", "-w", "-f", "-t", "-j", "-l", "-u", "-p", "-b", "-g", "-e"}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-x string   database driver ("sqlite" or "postgres")
//	-d string   database DSN
//	-s string   storage backend ("local" or "s3")
//	-o string   data directory
//	-w string   scratch directory for conversions
//	-f string   ffmpeg binary
//	-t int      conversion timeout, seconds
//	-j int      maximum parallel conversions
//	-l string   log level
//	-u string   S3 access key
//	-p string   S3 secret key
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// args are filtered down to these flags first, so subcommand arguments are
// left alone.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, Flags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.DatabaseDriver, "x", config.DatabaseDriver, "database driver")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.StorageBackend, "s", config.StorageBackend, "storage backend")
	fs.StringVar(&config.DataDir, "o", config.DataDir, "data directory")
	fs.StringVar(&config.WorkDir, "w", config.WorkDir, "work directory")
	fs.StringVar(&config.FFmpegPath, "f", config.FFmpegPath, "ffmpeg binary")

	timeout := fs.Int("t", int(config.ConversionTimeout.Seconds()), "conversion timeout (in seconds)")

	fs.IntVar(&config.MaxParallelConversions, "j", config.MaxParallelConversions, "max parallel conversions")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// untouched flags keep sub-second precision from the JSON file
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			config.ConversionTimeout = time.Duration(*timeout) * time.Second
		}
	})
	return nil
}
