package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/masjid-network/masjidctl/internal/api"
)

var bookingsCmd = &cobra.Command{
	Use:   "bookings",
	Short: "Manage facility bookings",
}

var bookingReq struct {
	mosque  int
	date    string
	time    string
	purpose string
}

var bookingsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Reserve a mosque facility",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer app.close()
		if err := app.requireUser(); err != nil {
			return err
		}

		b, err := app.client.CreateBooking(cmd.Context(), api.BookingRequest{
			MosqueID: bookingReq.mosque,
			Date:     bookingReq.date,
			Time:     bookingReq.time,
			Purpose:  bookingReq.purpose,
		})
		if err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		fmt.Printf("Booking %d created for %s %s (%s).\n", b.ID, b.Date, b.Time, b.Status)
		return nil
	},
}

var bookingFilter struct {
	mosque int
	status string
}

var bookingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your bookings",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer app.close()
		if err := app.requireUser(); err != nil {
			return err
		}

		bookings, err := app.client.Bookings(cmd.Context(), api.BookingFilter{
			MosqueID: bookingFilter.mosque,
			Status:   bookingFilter.status,
		})
		if err != nil {
			return fmt.Errorf("list bookings: %w", err)
		}
		if len(bookings) == 0 {
			fmt.Println("No bookings.")
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tMosque\tDate\tTime\tPurpose\tStatus")
		for _, b := range bookings {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\n", b.ID, b.MosqueID, b.Date, b.Time, b.Purpose, b.Status)
		}
		return tw.Flush()
	},
}

var bookingsCancelCmd = &cobra.Command{
	Use:   "cancel <booking-id>",
	Short: "Cancel a booking",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("booking id must be a number: %q", args[0])
		}
		app, err := buildApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer app.close()
		if err := app.requireUser(); err != nil {
			return err
		}

		b, err := app.client.CancelBooking(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("cancel booking: %w", err)
		}
		fmt.Printf("Booking %d is now %s.\n", b.ID, b.Status)
		return nil
	},
}

var bookingsDeleteCmd = &cobra.Command{
	Use:   "delete <booking-id>",
	Short: "Delete a booking record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("booking id must be a number: %q", args[0])
		}
		app, err := buildApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer app.close()
		if err := app.requireUser(); err != nil {
			return err
		}

		if err := app.client.DeleteBooking(cmd.Context(), id); err != nil {
			return fmt.Errorf("delete booking: %w", err)
		}
		fmt.Printf("Booking %d deleted.\n", id)
		return nil
	},
}

func init() {
	bookingsAddCmd.Flags().IntVar(&bookingReq.mosque, "mosque", 0, "mosque id")
	bookingsAddCmd.Flags().StringVar(&bookingReq.date, "date", "", "booking date (YYYY-MM-DD)")
	bookingsAddCmd.Flags().StringVar(&bookingReq.time, "time", "", "booking time (HH:MM)")
	bookingsAddCmd.Flags().StringVar(&bookingReq.purpose, "purpose", "", "what the space is for")
	bookingsAddCmd.MarkFlagRequired("mosque")
	bookingsAddCmd.MarkFlagRequired("date")
	bookingsAddCmd.MarkFlagRequired("time")

	bookingsListCmd.Flags().IntVar(&bookingFilter.mosque, "mosque", 0, "filter by mosque id")
	bookingsListCmd.Flags().StringVar(&bookingFilter.status, "status", "", "filter by status")

	bookingsCmd.AddCommand(bookingsAddCmd, bookingsListCmd, bookingsCancelCmd, bookingsDeleteCmd)
	rootCmd.AddCommand(bookingsCmd)
}
