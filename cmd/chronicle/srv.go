package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"chronicle/internal/config"
	"chronicle/internal/metrics"
	"chronicle/internal/server"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the read-only archive API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			logger := slog.Default()
			logger.Info("opening ledger", "driver", cfg.Ledger.Driver, "path", cfg.DBPath)
			st, bs, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			logger.Info("opened blob store", "driver", bs.Driver())

			srv := server.New(addr, st, bs, logger, server.Options{
				AdminTokenHash: cfg.AdminTokenHash,
				Metrics:        metrics.New(),
			})
			return srv.ListenAndServe()
		},
	}
}
