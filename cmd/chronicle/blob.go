package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"chronicle/internal/api"
	"chronicle/internal/config"
)

func newBlobCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blob",
		Short: "Inspect archived binary payloads",
	}

	cmd.AddCommand(newBlobMetaCmd(cfg, jsonOutput))
	cmd.AddCommand(newBlobGetCmd(cfg))
	cmd.AddCommand(newBlobRmCmd(cfg, jsonOutput))
	return cmd
}

func newBlobMetaCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "meta <id>",
		Short: "Show blob metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				meta, err := client.BlobMeta(cmd.Context(), args[0])
				if api.IsNotFound(err) {
					return fmt.Errorf("blob %s is not archived: %w", args[0], err)
				}
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(meta)
				}
				return writePlain("%s  %s\n", meta.ID, meta.Name)
			})
		},
	}
}

func newBlobGetCmd(cfg *config.Config) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Download blob bytes to a file or stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				if output == "" || output == "-" {
					_, err := client.BlobData(cmd.Context(), args[0], os.Stdout)
					return err
				}
				n, err := downloadBlob(cmd.Context(), client, args[0], output)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "wrote %d bytes to %s\n", n, output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newBlobRmCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a blob (admin; needs CHRONICLE_ADMIN_TOKEN)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.RemoveBlob(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("removed %s\n", resp.ID)
			})
		},
	}
}

// downloadBlob writes blob id to path through a temp file in the same directory, so a
// failed download never leaves a partial file at path.
func downloadBlob(ctx context.Context, client *api.Client, id, path string) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()

	var n int64
	err = tmp.Chmod(0o644)
	if err == nil {
		n, err = client.BlobData(ctx, id, tmp)
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmpPath, path)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}
	return n, nil
}
