package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/masjid-network/masjidctl/internal/api"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or update the profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer app.close()
		if err := app.requireUser(); err != nil {
			return err
		}

		res := app.sessions.RefreshUser(cmd.Context())
		if !res.OK {
			return fmt.Errorf("could not load profile: %s", res.Message)
		}
		u := res.User
		fmt.Printf("Username:  %s\n", u.Username)
		fmt.Printf("Name:      %s\n", u.DisplayName())
		fmt.Printf("Email:     %s\n", u.Email)
		fmt.Printf("Phone:     %s\n", u.Phone)
		fmt.Printf("Role:      %s\n", u.EffectiveRole())
		return nil
	},
}

var profileUpdate = struct {
	firstName string
	lastName  string
	email     string
	phone     string
	image     string
}{}

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update profile fields",
	Long: `Update profile fields. Only the flags you pass are changed.

Example:
  masjidctl profile set --first-name Omar --phone "+44 20 0000 0000"`,
	RunE: runProfileSet,
}

func init() {
	f := profileSetCmd.Flags()
	f.StringVar(&profileUpdate.firstName, "first-name", "", "first name")
	f.StringVar(&profileUpdate.lastName, "last-name", "", "last name")
	f.StringVar(&profileUpdate.email, "email", "", "email address")
	f.StringVar(&profileUpdate.phone, "phone", "", "phone number")
	f.StringVar(&profileUpdate.image, "image", "", "path to a new profile image")
	profileCmd.AddCommand(profileSetCmd)
	rootCmd.AddCommand(profileCmd)
}

func runProfileSet(cmd *cobra.Command, args []string) error {
	app, err := buildApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer app.close()
	if err := app.requireUser(); err != nil {
		return err
	}

	if profileUpdate.image != "" {
		content, err := os.ReadFile(profileUpdate.image)
		if err != nil {
			return fmt.Errorf("read profile image: %w", err)
		}
		if _, err := app.client.UpdateProfileImage(cmd.Context(), api.FileAttachment{
			FileName: filepath.Base(profileUpdate.image),
			Content:  content,
		}); err != nil {
			return fmt.Errorf("update profile image: %w", err)
		}
		fmt.Println("Profile image updated.")
	}

	var update api.ProfileUpdate
	changed := false
	if cmd.Flags().Changed("first-name") {
		update.FirstName = &profileUpdate.firstName
		changed = true
	}
	if cmd.Flags().Changed("last-name") {
		update.LastName = &profileUpdate.lastName
		changed = true
	}
	if cmd.Flags().Changed("email") {
		update.Email = &profileUpdate.email
		changed = true
	}
	if cmd.Flags().Changed("phone") {
		update.Phone = &profileUpdate.phone
		changed = true
	}
	if !changed {
		return nil
	}

	res := app.sessions.UpdateProfile(cmd.Context(), update)
	if !res.OK {
		return fmt.Errorf("profile update failed: %s", res.Message)
	}
	fmt.Println("Profile updated.")
	return nil
}
