package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/masjid-network/masjidctl/internal/api"
)

var registerForm = struct {
	username  string
	email     string
	password  string
	firstName string
	lastName  string
	phone     string
	image     string
}{}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Long: `Create a Masjid Network account and sign in as it.

An optional profile image can be attached with --image.`,
	RunE: runRegister,
}

func init() {
	f := registerCmd.Flags()
	f.StringVar(&registerForm.username, "username", "", "account username")
	f.StringVar(&registerForm.email, "email", "", "account email")
	f.StringVar(&registerForm.password, "password", "", "account password (or MASJIDCTL_PASSWORD)")
	f.StringVar(&registerForm.firstName, "first-name", "", "first name")
	f.StringVar(&registerForm.lastName, "last-name", "", "last name")
	f.StringVar(&registerForm.phone, "phone", "", "phone number")
	f.StringVar(&registerForm.image, "image", "", "path to a profile image")
	_ = registerCmd.MarkFlagRequired("username")
	_ = registerCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(registerCmd)
}

func runRegister(cmd *cobra.Command, args []string) error {
	app, err := buildApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer app.close()

	password := registerForm.password
	if password == "" {
		password = os.Getenv("MASJIDCTL_PASSWORD")
	}
	if password == "" {
		if password, err = promptSecret("Password: "); err != nil {
			return err
		}
	}

	form := api.RegisterForm{
		Username:  registerForm.username,
		Email:     registerForm.email,
		Password:  password,
		FirstName: registerForm.firstName,
		LastName:  registerForm.lastName,
		Phone:     registerForm.phone,
	}
	if registerForm.image != "" {
		content, err := os.ReadFile(registerForm.image)
		if err != nil {
			return fmt.Errorf("read profile image: %w", err)
		}
		form.ProfileImage = &api.FileAttachment{
			FileName: filepath.Base(registerForm.image),
			Content:  content,
		}
	}

	res := app.sessions.Register(cmd.Context(), form)
	if !res.OK {
		return fmt.Errorf("registration failed: %s", res.Message)
	}
	fmt.Printf("Account created. Signed in as %s\n", res.User.DisplayName())
	return nil
}
