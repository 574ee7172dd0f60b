package cmd

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/CrowderSoup/admin-panel/database"
	"github.com/CrowderSoup/admin-panel/services"
)

var (
	envFile string
	dbPath  string

	cfg *services.Config
)

var rootCmd = &cobra.Command{
	Use:           "admin-panel",
	Short:         "Internal administration panel: kanban, uploads and quotes",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := services.LoadEnv(envFile); err != nil {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
		cfg = services.LoadConfig()
		if dbPath != "" {
			cfg.DBPath = dbPath
		}
		services.SetupLogger(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Path to an optional .env file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides DB_PATH)")
}

// openDatabase opens the configured database, migrating it first when
// AUTO_MIGRATE is on.
func openDatabase(migrateUp bool) (*sql.DB, error) {
	db, err := database.InitDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if migrateUp {
		if err := database.Migrate(db); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}
