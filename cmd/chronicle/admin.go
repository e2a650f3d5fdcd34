package main

import (
	"github.com/spf13/cobra"

	"chronicle/internal/auth"
	"chronicle/internal/config"
)

type tokenResponse struct {
	Token string `json:"token,omitempty" yaml:"token,omitempty"`
	Hash  string `json:"hash" yaml:"hash"`
	Saved string `json:"saved_to,omitempty" yaml:"saved_to,omitempty"`
}

func newAdminCmd(jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative commands",
	}

	cmd.AddCommand(newAdminGenerateTokenCmd(jsonOutput))
	cmd.AddCommand(newAdminHashTokenCmd(jsonOutput))
	return cmd
}

func newAdminGenerateTokenCmd(jsonOutput *bool) *cobra.Command {
	var save, global bool

	cmd := &cobra.Command{
		Use:   "generate-token",
		Short: "Generate an admin token and its bcrypt hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := auth.GenerateToken()
			if err != nil {
				return err
			}
			hash, err := auth.HashToken(token)
			if err != nil {
				return err
			}
			resp := tokenResponse{Token: token, Hash: hash}
			if save {
				path, err := configPath(global)
				if err != nil {
					return err
				}
				if err := config.SetKey(path, "admin_token_hash", hash); err != nil {
					return err
				}
				resp.Saved = path
			}
			return writeTokenResponse(resp, *jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "store the hash as admin_token_hash")
	cmd.Flags().BoolVar(&global, "global", false, "with --save, write to the global config")
	return cmd
}

func newAdminHashTokenCmd(jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-token <token>",
		Short: "Print the bcrypt hash for an existing admin token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashToken(args[0])
			if err != nil {
				return err
			}
			return writeTokenResponse(tokenResponse{Hash: hash}, *jsonOutput)
		},
	}
}

func writeTokenResponse(resp tokenResponse, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(resp)
	}
	if resp.Token != "" {
		if err := writePlain("token: %s\n", resp.Token); err != nil {
			return err
		}
	}
	if err := writePlain("hash:  %s\n", resp.Hash); err != nil {
		return err
	}
	if resp.Saved != "" {
		return writePlain("saved admin_token_hash to %s\n", resp.Saved)
	}
	return nil
}
