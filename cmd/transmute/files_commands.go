package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/transmute/internal/common"
	"github.com/dmitrijs2005/transmute/internal/filex"
	"github.com/dmitrijs2005/transmute/internal/server"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <path>...",
		Short: "Store files and show what they can be converted to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(app *server.App) error {
				rows := make([][]string, 0, len(args))
				for _, path := range args {
					row, err := uploadOne(cmd, app, path)
					if err != nil {
						return err
					}
					rows = append(rows, row)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Name", "Type", "Size", "Converts to"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func uploadOne(cmd *cobra.Command, app *server.App, path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("file does not exist: %s", path)
		}
		return nil, fmt.Errorf("inspect file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	res, err := app.Files.Upload(cmd.Context(), filepath.Base(path), f)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", path, err)
	}

	targets := "-"
	if len(res.CompatibleFormats) > 0 {
		targets = strings.Join(res.CompatibleFormats, ", ")
	}
	return []string{res.File.ID, res.File.OriginalFilename, res.File.MediaType, formatSize(res.File.SizeBytes), targets}, nil
}

func newFilesCommand(ctx *commandContext) *cobra.Command {
	var showChecksum bool

	cmd := &cobra.Command{
		Use:   "files",
		Short: "List stored files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(app *server.App) error {
				files, err := app.Files.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(files) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No files stored")
					return nil
				}

				headers := []string{"ID", "Name", "Type", "Size", "Origin", "Created"}
				aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft}
				if showChecksum {
					headers = append(headers, "SHA-256")
				}

				rows := make([][]string, 0, len(files))
				for _, f := range files {
					row := []string{f.ID, f.OriginalFilename, f.MediaType, formatSize(f.SizeBytes), f.Origin, formatTime(f.CreatedAt)}
					if showChecksum {
						row = append(row, f.SHA256Checksum)
					}
					rows = append(rows, row)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&showChecksum, "checksum", false, "Show SHA-256 checksums")
	return cmd
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "download <file-id>",
		Short: "Write a stored file to disk or stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(app *server.App) error {
				rec, rc, err := app.Files.Open(cmd.Context(), args[0])
				if err != nil {
					return notFoundMessage(args[0], err)
				}
				defer rc.Close()

				if out == "-" {
					_, err := io.Copy(cmd.OutOrStdout(), rc)
					return err
				}

				dst := out
				if dst == "" {
					dst = rec.OriginalFilename
				}
				if err := filex.CopyToFile(dst, rc); err != nil {
					return fmt.Errorf("write %s: %w", dst, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s) to %s\n", rec.ID, formatSize(rec.SizeBytes), dst)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Destination path, \"-\" for stdout (default: the stored file name)")
	return cmd
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <file-id>...",
		Short: "Delete files; deleting an original also deletes its converted file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(app *server.App) error {
				for _, id := range args {
					if err := app.Files.Delete(cmd.Context(), id); err != nil {
						return notFoundMessage(id, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
				}
				return nil
			})
		},
	}
}

func notFoundMessage(id string, err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("file %s not found", id)
	}
	return err
}
