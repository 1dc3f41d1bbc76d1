package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Protect the token file with a passphrase",
	Long: `Protect the stored session tokens with a passphrase.

Once locked, every command prompts for the passphrase before reading tokens.
Scripts can supply it through the ` + tokenPassphraseEnv + ` environment
variable instead. "masjidctl unlock" removes the protection.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer app.close()

		if app.fileSink.Locked() {
			return fmt.Errorf("token file is already locked")
		}
		pass, err := promptSecret("New passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := promptSecret("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if pass != confirm {
			return fmt.Errorf("passphrases do not match")
		}
		if err := app.fileSink.Engage(pass); err != nil {
			return fmt.Errorf("lock token file: %w", err)
		}
		fmt.Printf("Locked %s.\n", app.fileSink.Path())
		return nil
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Remove the token file passphrase",
	RunE: func(cmd *cobra.Command, args []string) error {
		// buildApp already prompts for the passphrase when the file is
		// locked, so reaching this point means it was verified.
		app, err := buildApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer app.close()

		if err := app.fileSink.Disengage(); err != nil {
			return fmt.Errorf("unlock token file: %w", err)
		}
		fmt.Printf("Unlocked %s.\n", app.fileSink.Path())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lockCmd, unlockCmd)
}
