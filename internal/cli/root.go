package cli

import (
	"github.com/spf13/cobra"
)

var Version string

// Persistent flags shared by serve, migrate and doctor
var (
	flagDatabaseURL string
	flagPort        string
)

// RootCmd represents the root command
var RootCmd = &cobra.Command{
	Use:   "scout",
	Short: "Shared filter state for retail dashboards",
	Long: `Scout - filter state service for retail analytics dashboards.

Scout owns the date range, dimension selections, drilldown path and
chart cross-filters of every open dashboard page, mirrors them into a
shareable URL query string and streams changes to connected clients.`,
	Version:      Version,
	SilenceUsage: true,
	// Default to serve command if no subcommand provided
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return runServe(cmd.Context())
		}
		return cmd.Help()
	},
}

// Execute is called by main
func Execute(version string) error {
	Version = version
	RootCmd.Version = version

	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().StringVar(&flagDatabaseURL, "database-url", "", "PostgreSQL connection string (overrides config and DATABASE_URL)")
	RootCmd.PersistentFlags().StringVar(&flagPort, "port", "", "HTTP port (overrides config and PORT)")

	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(migrateCmd)
	RootCmd.AddCommand(filtersCmd)
	RootCmd.AddCommand(doctorCmd)
	RootCmd.AddCommand(healthcheckCmd)

	setupSelfUpgrade()
}
