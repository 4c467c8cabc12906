package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskmaster/tracker/internal/infrastructure/database"
)

// NewMigrateCommand creates the migrate command with subcommands
func NewMigrateCommand(configFile *string) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  "Manage database migrations (up, down, version)",
	}

	withMigrator := func(run func(cmd *cobra.Command, m *database.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			db, err := openDB(*configFile)
			if err != nil {
				return err
			}
			defer db.Close()

			m, err := db.NewMigrator()
			if err != nil {
				return err
			}
			return run(cmd, m)
		}
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Run all up migrations",
		RunE: withMigrator(func(cmd *cobra.Command, m *database.Migrator) error {
			changed, err := m.Up()
			if err != nil {
				return err
			}
			report(cmd, "up", changed)
			return nil
		}),
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Run all down migrations",
		RunE: withMigrator(func(cmd *cobra.Command, m *database.Migrator) error {
			changed, err := m.Down()
			if err != nil {
				return err
			}
			report(cmd, "down", changed)
			return nil
		}),
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		RunE: withMigrator(func(cmd *cobra.Command, m *database.Migrator) error {
			version, dirty, err := m.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Current migration version: %d\nDirty: %t\n", version, dirty)
			return nil
		}),
	})

	return migrateCmd
}

func report(cmd *cobra.Command, direction string, changed bool) {
	if !changed {
		fmt.Fprintln(cmd.OutOrStdout(), "No migrations to run")
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Migration %s completed successfully\n", direction)
}
