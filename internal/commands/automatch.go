package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrec/internal/discrepancy"
	"github.com/cleared-dev/bankrec/internal/model"
)

func newAutoMatchCommand(opts *globalOptions) *cobra.Command {
	var accountID int64
	var actor string
	var detect bool

	cmd := &cobra.Command{
		Use:   "automatch",
		Short: "Match unmatched statement lines to internal transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				run, err := a.services.Matching.AutoMatch(ctx, accountID, actor)
				summary := fmt.Sprintf("processed=%d confirmed=%d candidates=%d pending=%d unmatched=%d",
					run.Processed, run.Confirmed, run.Candidates, run.Pending, run.Unmatched)
				a.record(ctx, "automatch", accountID, actor, summary, err)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), summary)

				if !cmd.Flags().Changed("detect") {
					detect = a.cfg.Discrepancies.DetectAfterAutoMatch
				}
				if !detect {
					return nil
				}
				return runDetect(ctx, cmd, a, accountID, model.Date{}, actor)
			})
		},
	}

	cmd.Flags().Int64Var(&accountID, "account", 0, "bank account id (required)")
	cmd.Flags().StringVar(&actor, "actor", "", "recorded as the confirming user")
	cmd.Flags().BoolVar(&detect, "detect", false, "run discrepancy detection afterwards (default from config)")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func newDetectCommand(opts *globalOptions) *cobra.Command {
	var accountID int64
	var actor string
	var asOf string

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Open discrepancies for items still unreconciled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var date model.Date
			if asOf != "" {
				var err error
				if date, err = model.ParseDate(asOf); err != nil {
					return fmt.Errorf("parsing --as-of: %w", err)
				}
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return runDetect(ctx, cmd, a, accountID, date, actor)
			})
		},
	}

	cmd.Flags().Int64Var(&accountID, "account", 0, "bank account id (required)")
	cmd.Flags().StringVar(&actor, "actor", "", "recorded as identifiedBy")
	cmd.Flags().StringVar(&asOf, "as-of", "", "detection date, YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func runDetect(ctx context.Context, cmd *cobra.Command, a *app, accountID int64, asOf model.Date, actor string) error {
	if asOf.IsZero() {
		asOf = model.DateOf(a.services.Discrepancies.Now())
	}
	sum, err := a.services.Discrepancies.Detect(ctx, accountID, asOf, actor)
	line := detectLine(sum)
	a.record(ctx, "detect", accountID, actor, line, err)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, line)
	for _, d := range sum.Discrepancies {
		fmt.Fprintf(out, "  #%d %s %s %s: %s\n", d.ID, d.Priority, d.Type, d.Amount.StringFixed(2), d.Description)
	}
	return nil
}

func detectLine(sum discrepancy.DetectSummary) string {
	return fmt.Sprintf("as of %s: created=%d updated=%d unchanged=%d", sum.AsOf, sum.Created, sum.Updated, sum.Unchanged)
}
