package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chronicle/internal/api"
	"chronicle/internal/config"
)

func newKindsCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List archived kinds with row counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Kinds(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				for _, k := range resp.Kinds {
					key := k.KeyColumn
					if key == "" {
						key = "-"
					}
					if err := writePlain("%-12s %-18s key=%-10s %-16s rows=%d\n", k.Name, k.Table, key, k.Equality, k.Rows); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newRowsCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "rows <kind>",
		Short: "Show the newest rows of a kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.LatestRows(cmd.Context(), args[0], limit)
				if api.IsUnknownKind(err) {
					return fmt.Errorf("%q is not an archived kind: %w", args[0], err)
				}
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeRowList(resp.Rows)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of rows (0 for all)")
	return cmd
}

func newHistoryCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "history <kind> [key]",
		Short: "Show every archived version of an entity, newest first",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if len(args) == 2 {
				key = args[1]
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.History(cmd.Context(), args[0], key)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeRowList(resp.Rows)
			})
		},
	}
}
