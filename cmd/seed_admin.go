package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/CrowderSoup/admin-panel/database"
	"github.com/CrowderSoup/admin-panel/services"
)

var (
	seedUsername string
	seedEmail    string
)

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create or reset an admin user with a temporary password",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(true)
		if err != nil {
			return err
		}
		defer db.Close()

		password, err := services.GenerateTempPassword()
		if err != nil {
			return err
		}
		hash, err := services.HashPassword(password)
		if err != nil {
			return err
		}
		user, err := database.NewDataService(db).UpsertUser(cmd.Context(), seedUsername, seedEmail, hash, true)
		if err != nil {
			return err
		}

		log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("Admin user seeded")
		fmt.Fprintf(cmd.OutOrStdout(), "username: %s\ntemporary password: %s\n", user.Username, password)
		fmt.Fprintln(cmd.OutOrStdout(), "The password is shown only once. Change it after the first login.")
		return nil
	},
}

func init() {
	seedAdminCmd.Flags().StringVar(&seedUsername, "username", "admin", "Admin username")
	seedAdminCmd.Flags().StringVar(&seedEmail, "email", "", "Admin email")
	rootCmd.AddCommand(seedAdminCmd)
}
