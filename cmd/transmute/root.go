package main

import (
	"github.com/spf13/cobra"
)

const globalFlagsHelp = `Global settings (single-letter flags, may appear anywhere):
  -c path   JSON config file (or $TRANSMUTE_CONFIG)
  -x name   database driver: sqlite (default) or postgres
  -d dsn    database DSN
  -s name   storage backend: local (default) or s3
  -o dir    data directory (default ./data)
  -w dir    scratch directory for conversions
  -f path   ffmpeg binary
  -t secs   conversion timeout
  -j n      maximum parallel conversions
  -l level  log level: debug, info, warn, error
  -u/-p     S3 access key / secret key
  -b/-g/-e  S3 bucket / region / endpoint`

func newRootCommand(ctx *commandContext) *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "transmute",
		Short:         "Convert stored media, images and spreadsheets between formats",
		Long:          "transmute keeps uploaded files, converts them and tracks each original with its converted file.\n\n" + globalFlagsHelp,
		SilenceUsage:  true,
		SilenceErrors: true,
		// the config layer parses its own flags from the raw arguments
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipApp(cmd) {
				return nil
			}
			_, err := ctx.ensureApp(cmd.Context())
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newUploadCommand(ctx))
	rootCmd.AddCommand(newConvertCommand(ctx))
	rootCmd.AddCommand(newFilesCommand(ctx))
	rootCmd.AddCommand(newConversionsCommand(ctx))
	rootCmd.AddCommand(newDownloadCommand(ctx))
	rootCmd.AddCommand(newDeleteCommand(ctx))
	rootCmd.AddCommand(newConvertersCommand(ctx))
	rootCmd.AddCommand(newFormatsCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	// the whitelist is not inherited
	for _, cmd := range rootCmd.Commands() {
		cmd.FParseErrWhitelist = rootCmd.FParseErrWhitelist
	}

	return rootCmd
}
