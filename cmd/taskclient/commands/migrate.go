package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskmaster/taskclient/internal/infrastructure/config"
	"github.com/taskmaster/taskclient/internal/infrastructure/database"
)

// newMigrateCommand manages the schema of the sqlite session database.
func (c *CLI) newMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Session database migration commands",
		Long:  "Manage migrations of the sqlite session database (up, down, version)",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Run all up migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSessionDB(func(db *database.DB) error {
				if err := db.Migrate(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migration up completed successfully")
				return nil
			})
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Run all down migrations, dropping every stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSessionDB(func(db *database.DB) error {
				if err := db.MigrateDown(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migration down completed successfully")
				return nil
			})
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSessionDB(func(db *database.DB) error {
				version, dirty, err := db.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Current migration version: %d\n", version)
				fmt.Fprintf(cmd.OutOrStdout(), "Dirty: %t\n", dirty)
				return nil
			})
		},
	})

	return migrateCmd
}

func (c *CLI) withSessionDB(fn func(db *database.DB) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Session.Backend != config.BackendSQLite {
		return fmt.Errorf("migrations only apply to the %s session backend, current backend is %s",
			config.BackendSQLite, cfg.Session.Backend)
	}

	db, err := database.Connect(cfg.Session.DatabasePath())
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(db)
}
