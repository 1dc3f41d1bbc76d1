package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/masjid-network/masjidctl/internal/api"
)

var financeCmd = &cobra.Command{
	Use:   "finance",
	Short: "Donations and mosque bookkeeping",
}

var donationReq struct {
	mosque int
	amount float64
	donor  string
	method string
}

var financeDonateCmd = &cobra.Command{
	Use:   "donate",
	Short: "Record a donation",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer app.close()
		if err := app.requireUser(); err != nil {
			return err
		}

		d, err := app.client.CreateDonation(cmd.Context(), api.DonationRequest{
			MosqueID:      donationReq.mosque,
			Amount:        donationReq.amount,
			DonorName:     donationReq.donor,
			PaymentMethod: donationReq.method,
		})
		if err != nil {
			return fmt.Errorf("record donation: %w", err)
		}
		fmt.Printf("Donation %d recorded (%.2f, reference %s).\n", d.ID, d.Amount, d.Reference)
		return nil
	},
}

var financeDonationsCmd = &cobra.Command{
	Use:   "donations",
	Short: "List your donations",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer app.close()
		if err := app.requireUser(); err != nil {
			return err
		}

		donations, err := app.client.MyDonations(cmd.Context())
		if err != nil {
			return fmt.Errorf("list donations: %w", err)
		}
		if len(donations) == 0 {
			fmt.Println("No donations.")
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tMosque\tAmount\tMethod\tReference\tDate")
		for _, d := range donations {
			fmt.Fprintf(tw, "%d\t%d\t%.2f\t%s\t%s\t%s\n", d.ID, d.MosqueID, d.Amount, d.PaymentMethod, d.Reference, d.CreatedAt)
		}
		return tw.Flush()
	},
}

var ledgerReq struct {
	mosque      int
	amount      float64
	source      string
	category    string
	description string
	date        string
}

var financeIncomeCmd = &cobra.Command{
	Use:   "income",
	Short: "Record an income entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer app.close()
		if err := app.requireUser(); err != nil {
			return err
		}

		e, err := app.client.RecordIncome(cmd.Context(), api.LedgerEntryRequest{
			MosqueID:    ledgerReq.mosque,
			Amount:      ledgerReq.amount,
			Source:      ledgerReq.source,
			Description: ledgerReq.description,
			Date:        ledgerReq.date,
		})
		if err != nil {
			return fmt.Errorf("record income: %w", err)
		}
		fmt.Printf("Income entry %d recorded (%.2f from %s).\n", e.ID, e.Amount, e.Source)
		return nil
	},
}

var financeExpenseCmd = &cobra.Command{
	Use:   "expense",
	Short: "Record an expense entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer app.close()
		if err := app.requireUser(); err != nil {
			return err
		}

		e, err := app.client.RecordExpense(cmd.Context(), api.LedgerEntryRequest{
			MosqueID:    ledgerReq.mosque,
			Amount:      ledgerReq.amount,
			Category:    ledgerReq.category,
			Description: ledgerReq.description,
			Date:        ledgerReq.date,
		})
		if err != nil {
			return fmt.Errorf("record expense: %w", err)
		}
		fmt.Printf("Expense entry %d recorded (%.2f on %s).\n", e.ID, e.Amount, e.Category)
		return nil
	},
}

var financeSummaryCmd = &cobra.Command{
	Use:   "summary <mosque-id>",
	Short: "Show a mosque's income and expense totals",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		income, err := app.client.IncomeSummary(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("income summary: %w", err)
		}
		expenses, err := app.client.ExpenseSummary(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("expense summary: %w", err)
		}
		fmt.Printf("Income:   %.2f across %d entries\n", income.Total, income.Count)
		fmt.Printf("Expenses: %.2f across %d entries\n", expenses.Total, expenses.Count)
		fmt.Printf("Net:      %.2f\n", income.Total-expenses.Total)
		return nil
	},
}

func init() {
	financeDonateCmd.Flags().IntVar(&donationReq.mosque, "mosque", 0, "mosque id")
	financeDonateCmd.Flags().Float64Var(&donationReq.amount, "amount", 0, "donation amount")
	financeDonateCmd.Flags().StringVar(&donationReq.donor, "donor", "", "donor name (blank for anonymous)")
	financeDonateCmd.Flags().StringVar(&donationReq.method, "method", "online", "payment method (cash, card, transfer, online)")
	financeDonateCmd.MarkFlagRequired("mosque")
	financeDonateCmd.MarkFlagRequired("amount")

	for _, c := range []*cobra.Command{financeIncomeCmd, financeExpenseCmd} {
		c.Flags().IntVar(&ledgerReq.mosque, "mosque", 0, "mosque id")
		c.Flags().Float64Var(&ledgerReq.amount, "amount", 0, "entry amount")
		c.Flags().StringVar(&ledgerReq.description, "description", "", "free-text note")
		c.Flags().StringVar(&ledgerReq.date, "date", "", "entry date (YYYY-MM-DD)")
		c.MarkFlagRequired("mosque")
		c.MarkFlagRequired("amount")
		c.MarkFlagRequired("date")
	}
	financeIncomeCmd.Flags().StringVar(&ledgerReq.source, "source", "", "income source")
	financeIncomeCmd.MarkFlagRequired("source")
	financeExpenseCmd.Flags().StringVar(&ledgerReq.category, "category", "", "expense category")
	financeExpenseCmd.MarkFlagRequired("category")

	financeCmd.AddCommand(financeDonateCmd, financeDonationsCmd, financeIncomeCmd, financeExpenseCmd, financeSummaryCmd)
	rootCmd.AddCommand(financeCmd)
}
