package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer app.close()
		if err := app.requireUser(); err != nil {
			return err
		}

		st := app.sessions.Snapshot()
		if st.User == nil {
			// Hydration could not reach the backend but the tokens are
			// still on disk.
			fmt.Println("Signed in (profile unavailable; backend unreachable)")
			return nil
		}
		fmt.Printf("%s <%s>\n", st.User.DisplayName(), st.User.Email)
		if role := st.User.EffectiveRole(); role != "" {
			fmt.Printf("Role: %s\n", role)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
