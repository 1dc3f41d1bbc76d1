package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/masjid-network/masjidctl/internal/api"
)

var subscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Manage prayer-time notifications",
}

var subReq struct {
	email    string
	phone    string
	mosque   int
	schedule string
}

var subscribeAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a subscription",
	Long: `Create a prayer-time notification subscription.

The backend emails an activation link to the address; the subscription goes
live once it is confirmed with "masjidctl subscribe activate".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer app.close()
		if err := app.requireUser(); err != nil {
			return err
		}

		sub, err := app.client.Subscribe(cmd.Context(), api.SubscriptionRequest{
			Email:    subReq.email,
			Phone:    subReq.phone,
			MosqueID: subReq.mosque,
			Type:     subReq.schedule,
		})
		if err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
		fmt.Printf("Subscription %d created; check %s for the activation link.\n", sub.ID, sub.Email)
		return nil
	},
}

var subscribeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your subscriptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer app.close()
		if err := app.requireUser(); err != nil {
			return err
		}

		subs, err := app.client.Subscriptions(cmd.Context())
		if err != nil {
			return fmt.Errorf("list subscriptions: %w", err)
		}
		if len(subs) == 0 {
			fmt.Println("No subscriptions.")
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tEmail\tSchedule\tActive")
		for _, s := range subs {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%t\n", s.ID, s.Email, s.Type, s.Active)
		}
		return tw.Flush()
	},
}

var subUpdate struct {
	mosque   int
	schedule string
}

var subscribeSetCmd = &cobra.Command{
	Use:   "set <subscription-id>",
	Short: "Change a subscription's schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("subscription id must be a number: %q", args[0])
		}
		app, err := buildApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer app.close()
		if err := app.requireUser(); err != nil {
			return err
		}

		current, err := app.client.Subscription(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("load subscription: %w", err)
		}
		req := api.SubscriptionRequest{
			Email:    current.Email,
			Phone:    current.Phone,
			MosqueID: current.MosqueID,
			Type:     current.Type,
		}
		if cmd.Flags().Changed("schedule") {
			req.Type = subUpdate.schedule
		}
		if cmd.Flags().Changed("mosque") {
			req.MosqueID = subUpdate.mosque
		}

		sub, err := app.client.UpdateSubscription(cmd.Context(), id, req)
		if err != nil {
			return fmt.Errorf("update subscription: %w", err)
		}
		fmt.Printf("Subscription %d now on the %s schedule.\n", sub.ID, sub.Type)
		return nil
	},
}

var subscribeDeleteCmd = &cobra.Command{
	Use:   "delete <subscription-id>",
	Short: "Delete one subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("subscription id must be a number: %q", args[0])
		}
		app, err := buildApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer app.close()
		if err := app.requireUser(); err != nil {
			return err
		}

		if err := app.client.DeleteSubscription(cmd.Context(), id); err != nil {
			return fmt.Errorf("delete subscription: %w", err)
		}
		fmt.Println("Subscription deleted.")
		return nil
	},
}

var subscribeActivateCmd = &cobra.Command{
	Use:   "activate <token>",
	Short: "Confirm a subscription with its emailed token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer app.close()

		if err := app.client.ActivateSubscription(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("activate subscription: %w", err)
		}
		fmt.Println("Subscription active.")
		return nil
	},
}

var subscribeRemoveCmd = &cobra.Command{
	Use:   "remove <email>",
	Short: "Remove every subscription for an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer app.close()

		if err := app.client.Unsubscribe(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("unsubscribe: %w", err)
		}
		fmt.Println("Unsubscribed.")
		return nil
	},
}

var subscribeLogsCmd = &cobra.Command{
	Use:   "logs <subscription-id>",
	Short: "Show delivery records for a subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("subscription id must be a number: %q", args[0])
		}
		app, err := buildApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer app.close()
		if err := app.requireUser(); err != nil {
			return err
		}

		logs, err := app.client.SubscriptionLogs(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("subscription logs: %w", err)
		}
		if len(logs) == 0 {
			fmt.Println("No deliveries yet.")
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "Sent\tChannel\tStatus")
		for _, l := range logs {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", l.SentAt, l.Channel, l.Status)
		}
		return tw.Flush()
	},
}

func init() {
	f := subscribeAddCmd.Flags()
	f.StringVar(&subReq.email, "email", "", "address to notify")
	f.StringVar(&subReq.phone, "phone", "", "phone number for SMS delivery")
	f.IntVar(&subReq.mosque, "mosque", 0, "restrict to one mosque's times")
	f.StringVar(&subReq.schedule, "schedule", "daily", "daily, weekly, monthly or ramadan")
	_ = subscribeAddCmd.MarkFlagRequired("email")

	sf := subscribeSetCmd.Flags()
	sf.StringVar(&subUpdate.schedule, "schedule", "", "daily, weekly, monthly or ramadan")
	sf.IntVar(&subUpdate.mosque, "mosque", 0, "restrict to one mosque's times")

	subscribeCmd.AddCommand(subscribeAddCmd, subscribeListCmd, subscribeSetCmd,
		subscribeDeleteCmd, subscribeActivateCmd, subscribeRemoveCmd, subscribeLogsCmd)
	rootCmd.AddCommand(subscribeCmd)
}
