package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/transmute/internal/buildinfo"
	"github.com/dmitrijs2005/transmute/internal/formats"
	"github.com/dmitrijs2005/transmute/internal/server"
)

func newConvertersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "converters",
		Short: "List registered converters and their formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(app *server.App) error {
				descs := app.Registry.List()
				rows := make([][]string, 0, len(descs))
				for _, d := range descs {
					rows = append(rows, []string{d.Name, strings.Join(d.Formats, ", ")})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Converter", "Formats"}, rows, nil))
				return nil
			})
		},
	}
}

func newFormatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "formats [format]",
		Short: "List known formats, or the targets a format converts to",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				categories := []formats.Category{formats.Video, formats.Audio, formats.Image, formats.Tabular}
				rows := make([][]string, 0, len(categories))
				for _, c := range categories {
					rows = append(rows, []string{string(c), strings.Join(formats.InCategory(c), ", ")})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Category", "Formats"}, rows, nil))
				return nil
			}

			return ctx.withApp(cmd, func(app *server.App) error {
				in := formats.Normalize(args[0])
				if !formats.IsRecognized(in) {
					return fmt.Errorf("unknown format %q", args[0])
				}
				targets := app.Registry.CompatibleFormats(in)
				if len(targets) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: no registered converter handles this format\n", in)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s converts to: %s\n", in, strings.Join(targets, ", "))
				return nil
			})
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print build information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipAppInit": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			buildinfo.PrintBuildData(cmd.OutOrStdout())
			return nil
		},
	}
}
