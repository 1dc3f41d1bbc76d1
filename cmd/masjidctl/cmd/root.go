// Package cmd provides the CLI commands for masjidctl.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/masjid-network/masjidctl/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "masjidctl",
	Short: "masjidctl - Masjid Network client",
	Long: `masjidctl is a command-line client for the Masjid Network.

It signs in to a Masjid Network backend, keeps the session alive across
invocations, and gives you prayer times, mosque search and notification
subscriptions from the terminal. "masjidctl serve" additionally starts a
local web dashboard over the same session.

Quick start:
  1. masjidctl login --email you@example.org
  2. masjidctl timetable --location London
  3. masjidctl serve

Configuration:
  Config is loaded from masjidctl.yaml in the current directory or
  $HOME/.masjidctl/. Environment variables override config values with
  the MASJIDCTL_ prefix.
  Example: MASJIDCTL_API_BASE_URL=https://api.masjid.example

Commands:
  login       Sign in and store the session tokens
  logout      End the session
  register    Create an account
  whoami      Show the signed-in user
  password    Change the account password
  profile     Show or update the profile
  mosques     Search and manage mosques
  timetable   Show, sync or export prayer times
  subscribe   Manage prayer-time notifications
  serve       Start the local web dashboard
  lock        Protect the token file with a passphrase
  config      Show the effective configuration
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./masjidctl.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
