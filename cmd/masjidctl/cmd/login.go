package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/masjid-network/masjidctl/internal/api"
)

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session tokens",
	Long: `Sign in to the Masjid Network backend.

The password is read from --password, the MASJIDCTL_PASSWORD environment
variable, or an interactive prompt, in that order. On success the tokens are
stored and every later command reuses the session.`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password (prefer the prompt or MASJIDCTL_PASSWORD)")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	app, err := buildApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer app.close()

	email := loginEmail
	if email == "" {
		if email, err = promptSecret("Email: "); err != nil {
			return err
		}
	}
	password := loginPassword
	if password == "" {
		password = os.Getenv("MASJIDCTL_PASSWORD")
	}
	if password == "" {
		if password, err = promptSecret("Password: "); err != nil {
			return err
		}
	}

	res := app.sessions.Login(cmd.Context(), api.Credentials{Email: email, Password: password})
	if !res.OK {
		return fmt.Errorf("login failed: %s", res.Message)
	}
	fmt.Printf("Signed in as %s\n", res.User.DisplayName())
	return nil
}
