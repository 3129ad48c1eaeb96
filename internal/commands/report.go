package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/report"
)

func newReportCommand(opts *globalOptions) *cobra.Command {
	var accountID int64
	var from, to string
	var csvPath string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a reconciliation summary or export the detail as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fromDate, err := optionalDate("--from", from)
			if err != nil {
				return err
			}
			toDate, err := optionalDate("--to", to)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if csvPath != "" {
					return exportCSV(ctx, cmd, a, accountID, fromDate, toDate, csvPath)
				}
				sum, err := a.services.Reports.Summary(ctx, accountID, fromDate, toDate)
				if err != nil {
					return err
				}
				printSummary(cmd.OutOrStdout(), sum)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&accountID, "account", 0, "bank account id (required)")
	cmd.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD")
	cmd.Flags().StringVar(&csvPath, "csv", "", "write the line-level export to this file (- for stdout)")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func optionalDate(flag, v string) (model.Date, error) {
	if v == "" {
		return model.Date{}, nil
	}
	d, err := model.ParseDate(v)
	if err != nil {
		return model.Date{}, fmt.Errorf("parsing %s: %w", flag, err)
	}
	return d, nil
}

func exportCSV(ctx context.Context, cmd *cobra.Command, a *app, accountID int64, from, to model.Date, path string) error {
	rows, err := a.services.Reports.ExportRows(ctx, accountID, from, to)
	if err != nil {
		return err
	}
	if path == "-" {
		return report.WriteRows(cmd.OutOrStdout(), rows)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := report.WriteRows(f, rows); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows to %s\n", len(rows), path)
	return nil
}

func printSummary(w io.Writer, s report.Summary) {
	fmt.Fprintf(w, "Account %d (%s)\n", s.AccountID, s.AccountName)
	fmt.Fprintf(w, "  status:                 %s\n", s.Status)
	fmt.Fprintf(w, "  reconciled:             %d of %d internal (%s%%)\n", s.ReconciledCount, s.TotalTransactions, s.Percentage.StringFixed(2))
	fmt.Fprintf(w, "  statement total:        %s\n", s.StatementTotal.StringFixed(2))
	fmt.Fprintf(w, "  internal total:         %s\n", s.InternalTotal.StringFixed(2))
	fmt.Fprintf(w, "  unmatched statement:    %d (%s)\n", s.UnmatchedEntries, s.UnmatchedEntryAmount.StringFixed(2))
	fmt.Fprintf(w, "  unmatched internal:     %d (%s)\n", s.UnmatchedTransactions, s.UnmatchedTransactionAmount.StringFixed(2))
	fmt.Fprintf(w, "  open discrepancies:     %d (%d high priority)\n", s.OpenDiscrepancies, s.HighPriorityOpen)
	fmt.Fprintf(w, "  difference:             %s\n", s.FinalDifference.StringFixed(2))
}
