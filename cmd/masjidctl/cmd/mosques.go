package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/masjid-network/masjidctl/internal/api"
)

var mosquesCmd = &cobra.Command{
	Use:   "mosques",
	Short: "Search and manage mosques",
}

var mosquesSearch string

var mosquesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mosques, optionally filtered",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer app.close()

		mosques, err := app.client.Mosques(cmd.Context(), mosquesSearch)
		if err != nil {
			return fmt.Errorf("list mosques: %w", err)
		}
		printMosques(mosques)
		return nil
	},
}

var nearby struct {
	lat, lng, radius float64
}

var mosquesNearbyCmd = &cobra.Command{
	Use:   "nearby",
	Short: "List mosques near coordinates",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer app.close()

		mosques, err := app.client.NearbyMosques(cmd.Context(), nearby.lat, nearby.lng, nearby.radius)
		if err != nil {
			return fmt.Errorf("nearby mosques: %w", err)
		}
		printMosques(mosques)
		return nil
	},
}

var mosquesFavoritesCmd = &cobra.Command{
	Use:   "favorites",
	Short: "List your favorite mosques",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer app.close()
		if err := app.requireUser(); err != nil {
			return err
		}

		mosques, err := app.client.FavoriteMosques(cmd.Context())
		if err != nil {
			return fmt.Errorf("list favorites: %w", err)
		}
		printMosques(mosques)
		return nil
	},
}

var mosquesFavoriteCmd = &cobra.Command{
	Use:   "favorite <mosque-id>",
	Short: "Add a mosque to your favorites",
	Args:  cobra.ExactArgs(1),
	RunE:  favoriteRunner(false),
}

var mosquesUnfavoriteCmd = &cobra.Command{
	Use:   "unfavorite <mosque-id>",
	Short: "Remove a mosque from your favorites",
	Args:  cobra.ExactArgs(1),
	RunE:  favoriteRunner(true),
}

func favoriteRunner(remove bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("mosque id must be a number: %q", args[0])
		}
		app, err := buildApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer app.close()
		if err := app.requireUser(); err != nil {
			return err
		}

		if remove {
			if err := app.client.RemoveFavorite(cmd.Context(), id); err != nil {
				return fmt.Errorf("remove favorite: %w", err)
			}
			fmt.Println("Removed from favorites.")
			return nil
		}
		if err := app.client.AddFavorite(cmd.Context(), id); err != nil {
			return fmt.Errorf("add favorite: %w", err)
		}
		fmt.Println("Added to favorites.")
		return nil
	}
}

var mosqueReg struct {
	name     string
	address  string
	city     string
	country  string
	lat      float64
	lng      float64
	phone    string
	email    string
	website  string
	document string
}

var mosquesRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Submit a mosque for listing",
	Long: `Submit a mosque to the directory.

A verification document (registration certificate, utility bill) can be
attached with --document; listings go live after review.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer app.close()
		if err := app.requireUser(); err != nil {
			return err
		}

		reg := api.MosqueRegistration{
			Name:      mosqueReg.name,
			Address:   mosqueReg.address,
			City:      mosqueReg.city,
			Country:   mosqueReg.country,
			Latitude:  mosqueReg.lat,
			Longitude: mosqueReg.lng,
			Phone:     mosqueReg.phone,
			Email:     mosqueReg.email,
			Website:   mosqueReg.website,
		}
		if mosqueReg.document != "" {
			content, err := os.ReadFile(mosqueReg.document)
			if err != nil {
				return fmt.Errorf("read verification document: %w", err)
			}
			reg.Document = &api.FileAttachment{
				FileName: filepath.Base(mosqueReg.document),
				Content:  content,
			}
		}

		m, err := app.client.RegisterMosque(cmd.Context(), reg)
		if err != nil {
			return fmt.Errorf("register mosque: %w", err)
		}
		fmt.Printf("Submitted %q (id %d) for review.\n", m.Name, m.ID)
		return nil
	},
}

func printMosques(mosques []api.Mosque) {
	if len(mosques) == 0 {
		fmt.Println("No mosques found.")
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tName\tCity\tAddress")
	for _, m := range mosques {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", m.ID, m.Name, m.City, m.Address)
	}
	tw.Flush()
}

func init() {
	mosquesListCmd.Flags().StringVar(&mosquesSearch, "search", "", "free-text filter")
	f := mosquesNearbyCmd.Flags()
	f.Float64Var(&nearby.lat, "lat", 0, "latitude")
	f.Float64Var(&nearby.lng, "lng", 0, "longitude")
	f.Float64Var(&nearby.radius, "radius", 10, "radius in kilometres")
	_ = mosquesNearbyCmd.MarkFlagRequired("lat")
	_ = mosquesNearbyCmd.MarkFlagRequired("lng")

	rf := mosquesRegisterCmd.Flags()
	rf.StringVar(&mosqueReg.name, "name", "", "mosque name")
	rf.StringVar(&mosqueReg.address, "address", "", "street address")
	rf.StringVar(&mosqueReg.city, "city", "", "city")
	rf.StringVar(&mosqueReg.country, "country", "", "country")
	rf.Float64Var(&mosqueReg.lat, "lat", 0, "latitude")
	rf.Float64Var(&mosqueReg.lng, "lng", 0, "longitude")
	rf.StringVar(&mosqueReg.phone, "phone", "", "contact phone")
	rf.StringVar(&mosqueReg.email, "email", "", "contact email")
	rf.StringVar(&mosqueReg.website, "website", "", "website URL")
	rf.StringVar(&mosqueReg.document, "document", "", "path to a verification document")
	_ = mosquesRegisterCmd.MarkFlagRequired("name")
	_ = mosquesRegisterCmd.MarkFlagRequired("address")
	_ = mosquesRegisterCmd.MarkFlagRequired("city")
	_ = mosquesRegisterCmd.MarkFlagRequired("country")

	mosquesCmd.AddCommand(mosquesListCmd, mosquesNearbyCmd, mosquesFavoritesCmd,
		mosquesFavoriteCmd, mosquesUnfavoriteCmd, mosquesRegisterCmd)
	rootCmd.AddCommand(mosquesCmd)
}
