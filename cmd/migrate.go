package cmd

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/CrowderSoup/admin-panel/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(true)
		if err != nil {
			return err
		}
		defer db.Close()
		return printVersion(cmd, db)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Roll back migrations (one step by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("steps must be a positive integer, got %q", args[0])
			}
			steps = n
		}
		db, err := openDatabase(false)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := database.MigrateDown(db, steps); err != nil {
			return err
		}
		return printVersion(cmd, db)
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(false)
		if err != nil {
			return err
		}
		defer db.Close()
		return printVersion(cmd, db)
	},
}

var migrateCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Report whether cards can store several sections",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(false)
		if err != nil {
			return err
		}
		defer db.Close()

		ds := database.NewDataService(db)
		if err := ds.ProbeCapabilities(cmd.Context()); err != nil {
			return err
		}
		if ds.SupportsSectionIDs() {
			fmt.Fprintln(cmd.OutOrStdout(), "section_ids_json: present")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "section_ids_json: missing (run `migrate up` or enable AUTO_HEAL_SCHEMA)")
		}
		return nil
	},
}

var migrateBackfillCmd = &cobra.Command{
	Use:   "backfill-sections",
	Short: "Create sections for legacy section names and link cards to them",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(false)
		if err != nil {
			return err
		}
		defer db.Close()

		res, err := database.NewDataService(db).BackfillSections(cmd.Context())
		if err != nil {
			return fmt.Errorf("backfill: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sections created: %d\ncards updated: %d\n", res.SectionsCreated, res.CardsUpdated)
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd, migrateCheckCmd, migrateBackfillCmd)
	rootCmd.AddCommand(migrateCmd)
}

func printVersion(cmd *cobra.Command, db *sql.DB) error {
	version, dirty, err := database.SchemaVersion(db)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d", version)
	if dirty {
		fmt.Fprint(cmd.OutOrStdout(), " (dirty)")
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}
