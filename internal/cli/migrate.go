package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/seuros/scout/internal/config"
	"github.com/seuros/scout/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database migrations",
	Long: `Manage the embedded database migrations.

Examples:
  scout migrate up
  scout migrate down 1
  scout migrate version`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		databaseURL, err := migrationDatabaseURL()
		if err != nil {
			return err
		}
		if err := database.RunMigrations(databaseURL); err != nil {
			return err
		}
		return printMigrationVersion(cmd, databaseURL)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down <steps>",
	Short: "Roll back the given number of migrations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, err := strconv.Atoi(args[0])
		if err != nil || steps <= 0 {
			return fmt.Errorf("steps must be a positive integer, got %q", args[0])
		}
		databaseURL, err := migrationDatabaseURL()
		if err != nil {
			return err
		}
		if err := database.RollbackMigrations(databaseURL, steps); err != nil {
			return err
		}
		return printMigrationVersion(cmd, databaseURL)
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		databaseURL, err := migrationDatabaseURL()
		if err != nil {
			return err
		}
		return printMigrationVersion(cmd, databaseURL)
	},
}

func migrationDatabaseURL() (string, error) {
	cfg, err := config.LoadWithOverrides(flagDatabaseURL, "")
	if err != nil {
		return "", err
	}
	if cfg.DatabaseURL == "" {
		return "", errors.New("database URL is required: set --database-url, database_url or DATABASE_URL")
	}
	return cfg.DatabaseURL, nil
}

func printMigrationVersion(cmd *cobra.Command, databaseURL string) error {
	version, dirty, err := database.GetMigrationVersion(databaseURL)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if dirty {
		_, err = fmt.Fprintf(out, "Schema version: %d (dirty)\n", version)
		return err
	}
	_, err = fmt.Fprintf(out, "Schema version: %d\n", version)
	return err
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateVersionCmd)
}
