package migrate

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/buildit-dev/buildit/cli/buildit/commands"
	"github.com/buildit-dev/buildit/server/store"
	"github.com/buildit-dev/buildit/server/store/migrations"
)

func init() {
	migrateRootCmd.PersistentFlags().StringVar(
		&migrateConfig.connectionString,
		"database_connection_string",
		"file:buildit.db?cache=shared&_foreign_keys=1&parseTime=true",
		"The connection string of the database to migrate.")
	migrateRootCmd.PersistentFlags().StringVar(
		&migrateConfig.driver,
		"database_driver",
		string(store.Sqlite),
		"The database driver: sqlite3 or postgres.")
	migrateRootCmd.AddCommand(upCmd)
	migrateRootCmd.AddCommand(downCmd)
	commands.RootCmd.AddCommand(migrateRootCmd)
}

var migrateConfig = struct {
	connectionString string
	driver           string
}{}

var migrateRootCmd = &cobra.Command{
	Use:           "migrate",
	Short:         "Apply or roll back the coordinator database schema",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var upCmd = &cobra.Command{
	Use:           "up",
	Short:         "Migrate the database up to the latest schema version",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner := migrations.NewBuildItGolangMigrateRunner(commands.LogFactory())
		return runner.Up(context.Background(),
			store.DBDriver(migrateConfig.driver),
			store.DatabaseConnectionString(migrateConfig.connectionString))
	},
}

var downCmd = &cobra.Command{
	Use:           "down",
	Short:         "Migrate the database down to empty. Destroys all data.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner := migrations.NewBuildItGolangMigrateRunner(commands.LogFactory())
		return runner.Down(context.Background(),
			store.DBDriver(migrateConfig.driver),
			store.DatabaseConnectionString(migrateConfig.connectionString))
	},
}
