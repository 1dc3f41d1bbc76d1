package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session",
	Long: `End the session and remove the stored tokens.

The local session always ends, even when the backend cannot be reached.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer app.close()

		app.sessions.Logout(cmd.Context())
		fmt.Println("Signed out.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
