package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/transmute/internal/common"
	"github.com/dmitrijs2005/transmute/internal/converters"
	"github.com/dmitrijs2005/transmute/internal/server"
)

var qualities = []string{converters.QualityHigh, converters.QualityMedium, converters.QualityLow}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var quality string

	cmd := &cobra.Command{
		Use:   "convert <file-id> <format>",
		Short: "Convert a stored file, replacing any previous conversion of it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			quality = strings.ToLower(strings.TrimSpace(quality))
			if !slices.Contains(qualities, quality) {
				return fmt.Errorf("unknown quality %q (want one of %s)", quality, strings.Join(qualities, ", "))
			}

			return ctx.withApp(cmd, func(app *server.App) error {
				res, err := app.Conversions.Convert(cmd.Context(), args[0], args[1], quality)
				if err != nil {
					return explainConversionError(cmd, app, args[0], err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Converted %s (%s) with %s\n", res.Original.ID, res.Original.OriginalFilename, res.Converter)
				fmt.Fprintf(out, "Result %s (%s, %s)\n", res.Converted.ID, res.Converted.OriginalFilename, formatSize(res.Converted.SizeBytes))
				if res.ReplacedID != "" {
					fmt.Fprintf(out, "Replaced previous conversion %s\n", res.ReplacedID)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&quality, "quality", converters.QualityMedium, "Output quality: high, medium or low")
	return cmd
}

func explainConversionError(cmd *cobra.Command, app *server.App, id string, err error) error {
	var unsupported *common.UnsupportedConversionError
	var failed *common.ConversionError

	switch {
	case errors.Is(err, common.ErrorNotFound):
		return fmt.Errorf("file %s not found", id)
	case errors.As(err, &unsupported):
		targets := app.Registry.CompatibleFormats(unsupported.Input)
		if len(targets) == 0 {
			return fmt.Errorf("%w; %q files cannot be converted", err, unsupported.Input)
		}
		return fmt.Errorf("%w; %s converts to: %s", err, unsupported.Input, strings.Join(targets, ", "))
	case errors.As(err, &failed) && failed.Diagnostic != "":
		app.Logger.Debug(cmd.Context(), "converter diagnostic", "converter", failed.Converter, "output", failed.Diagnostic)
		return err
	default:
		return err
	}
}

func newConversionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "conversions",
		Short: "List originals with their converted files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(app *server.App) error {
				list, err := app.Conversions.ListConversions(cmd.Context())
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No conversions recorded")
					return nil
				}

				rows := make([][]string, 0, len(list))
				for _, c := range list {
					rows = append(rows, []string{
						c.Original.ID, c.Original.OriginalFilename,
						c.Converted.ID, c.Converted.OriginalFilename, formatSize(c.Converted.SizeBytes),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Original", "Name", "Converted", "Name", "Size"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}
