package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chronicle/internal/config"
	"chronicle/internal/ledger"
)

func newMigrateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var dryRun bool
	var inspect bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run or inspect ledger schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inspect || dryRun {
				plan, err := migrationPlan(cmd, cfg)
				if err != nil {
					return fmt.Errorf("inspect migrations: %w", err)
				}
				if *jsonOutput {
					return writeJSON(plan)
				}
				return writePlan(plan)
			}

			// Same path the server and ingest runs take on startup.
			st, err := ledger.Open(cmd.Context(), ledgerOptions(cfg))
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			st.Close()

			if *jsonOutput {
				plan, err := migrationPlan(cmd, cfg)
				if err != nil {
					return err
				}
				return writeJSON(plan)
			}
			return writePlain("Migrations applied successfully.\n")
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show pending migrations without applying")
	cmd.Flags().BoolVar(&inspect, "inspect", false, "show migration status")

	return cmd
}

func migrationPlan(cmd *cobra.Command, cfg *config.Config) (*ledger.MigrationStatus, error) {
	db, driver, err := ledger.OpenRawDB(ledgerOptions(cfg))
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return ledger.MigrationPlan(cmd.Context(), db, driver)
}

func writePlan(plan *ledger.MigrationStatus) error {
	if err := writePlain("Current version: %d\nAvailable version: %d\n", plan.CurrentVersion, plan.AvailableVersion); err != nil {
		return err
	}
	if len(plan.Pending) == 0 {
		return writePlain("No pending migrations.\n")
	}
	if err := writePlain("Pending migrations: %d\n", len(plan.Pending)); err != nil {
		return err
	}
	for _, m := range plan.Pending {
		if err := writePlain("  %d: %s\n", m.Version, m.Description); err != nil {
			return err
		}
	}
	return nil
}
