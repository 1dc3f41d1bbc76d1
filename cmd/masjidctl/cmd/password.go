package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Change the account password",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer app.close()
		if err := app.requireUser(); err != nil {
			return err
		}

		oldPass, err := promptSecret("Current password: ")
		if err != nil {
			return err
		}
		newPass, err := promptSecret("New password: ")
		if err != nil {
			return err
		}
		confirm, err := promptSecret("Confirm new password: ")
		if err != nil {
			return err
		}

		res := app.sessions.ChangePassword(cmd.Context(), oldPass, newPass, confirm)
		if !res.OK {
			return fmt.Errorf("password change failed: %s", res.Message)
		}
		fmt.Println("Password changed.")
		return nil
	},
}

var passwordForgotCmd = &cobra.Command{
	Use:   "forgot <email>",
	Short: "Request a password-reset email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer app.close()

		if err := app.client.RequestPasswordReset(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("request password reset: %w", err)
		}
		fmt.Printf("If %s has an account, a reset link is on its way.\n", args[0])
		return nil
	},
}

var passwordResetCmd = &cobra.Command{
	Use:   "reset <uid> <token>",
	Short: "Set a new password with an emailed reset token",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer app.close()

		newPass, err := promptSecret("New password: ")
		if err != nil {
			return err
		}
		confirm, err := promptSecret("Confirm new password: ")
		if err != nil {
			return err
		}

		if err := app.client.ResetPassword(cmd.Context(), args[0], args[1], newPass, confirm); err != nil {
			return fmt.Errorf("reset password: %w", err)
		}
		fmt.Println("Password reset. You can log in now.")
		return nil
	},
}

func init() {
	passwordCmd.AddCommand(passwordForgotCmd, passwordResetCmd)
	rootCmd.AddCommand(passwordCmd)
}
