package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrec/internal/ledger"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/transactions"
)

func newAccountCommand(opts *globalOptions) *cobra.Command {
	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Bank account operations",
	}
	accountCmd.AddCommand(newAccountCreateCommand(opts), newAccountListCommand(opts), newTransactionAddCommand(opts))
	return accountCmd
}

func newAccountCreateCommand(opts *globalOptions) *cobra.Command {
	var p ledger.CreateParams
	var balance string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a bank account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(balance)
			if err != nil {
				return fmt.Errorf("parsing --balance: %w", err)
			}
			p.InitialBalance = amount
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				acct, err := a.services.Ledger.Create(ctx, p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created bank account %d (%s, %s)\n", acct.ID, acct.Name, acct.AccountNumber)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&p.Name, "name", "", "account name (required)")
	cmd.Flags().StringVar(&p.BankName, "bank", "", "bank name (required)")
	cmd.Flags().StringVar(&p.AccountNumber, "number", "", "account number; stored masked (required)")
	cmd.Flags().StringVar(&balance, "balance", "0", "opening balance")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("bank")
	_ = cmd.MarkFlagRequired("number")

	return cmd
}

func newAccountListCommand(opts *globalOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bank accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				accounts, err := a.services.Ledger.List(ctx, !all)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tBANK\tNUMBER\tBALANCE\tACTIVE")
				for _, acct := range accounts {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%t\n",
						acct.ID, acct.Name, acct.BankName, acct.AccountNumber, acct.Balance.StringFixed(2), acct.Active)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include deactivated accounts")
	return cmd
}

func newTransactionAddCommand(opts *globalOptions) *cobra.Command {
	var p transactions.CreateParams
	var amount, date string

	cmd := &cobra.Command{
		Use:   "add-transaction",
		Short: "Record an internal transaction against an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if p.Amount, err = decimal.NewFromString(amount); err != nil {
				return fmt.Errorf("parsing --amount: %w", err)
			}
			if p.Date, err = model.ParseDate(date); err != nil {
				return fmt.Errorf("parsing --date: %w", err)
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				t, err := a.services.Transactions.Create(ctx, p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded transaction %d (%s %s on %s)\n", t.ID, t.Type, t.Amount.StringFixed(2), t.Date)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&p.AccountID, "account", 0, "bank account id (required)")
	cmd.Flags().StringVar(&amount, "amount", "", "signed amount (required)")
	cmd.Flags().StringVar(&date, "date", "", "transaction date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&p.Reference, "ref", "", "reference number")
	cmd.Flags().StringVar(&p.Description, "description", "", "description")
	cmd.Flags().StringVar(&p.Type, "type", "", "transaction type (DEPOSIT, CHECK, ...)")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}
