package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrec/internal/importer"
	"github.com/cleared-dev/bankrec/internal/logger"
	"github.com/cleared-dev/bankrec/internal/statements"
)

func newImportCommand(opts *globalOptions) *cobra.Command {
	var accountID int64
	var format string
	var actor string

	cmd := &cobra.Command{
		Use:   "import [file...]",
		Short: "Import bank statement CSV files",
		Long: "Import bank statement CSV files into an account. Without file arguments every\n" +
			"CSV in <dir>/import is imported and moved to <dir>/import/processed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if len(args) > 0 {
					for _, path := range args {
						if _, err := importFile(ctx, cmd, a, path, accountID, format, actor); err != nil {
							return err
						}
					}
					return nil
				}
				return importDir(ctx, cmd, a, filepath.Join(a.workspace, "import"), accountID, format, actor)
			})
		},
	}

	cmd.Flags().Int64Var(&accountID, "account", 0, "bank account id (required)")
	cmd.Flags().StringVar(&format, "format", "generic", "statement format (chase, generic)")
	cmd.Flags().StringVar(&actor, "actor", "", "recorded as importedBy")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func importDir(ctx context.Context, cmd *cobra.Command, a *app, dir string, accountID int64, format, actor string) error {
	files, err := importer.Scan(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No CSV files in %s\n", dir)
		return nil
	}
	for _, f := range files {
		if _, err := importFile(ctx, cmd, a, f.Path, accountID, format, actor); err != nil {
			return err
		}
		if err := importer.MarkProcessed(dir, f.Name); err != nil {
			return err
		}
		logger.FromContext(ctx).Debug("statement file moved to processed", "file", f.Name)
	}
	return nil
}

func importFile(ctx context.Context, cmd *cobra.Command, a *app, path string, accountID int64, format, actor string) (statements.BatchResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return statements.BatchResult{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	res, err := a.services.Statements.ImportCSV(ctx, accountID, format, f, actor)
	summary := fmt.Sprintf("%s: imported=%d failed=%d batch=%s", filepath.Base(path), res.Imported, res.Failed, res.Batch)
	a.record(ctx, "import", accountID, actor, summary, err)
	if err != nil {
		return res, fmt.Errorf("importing %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, summary)
	for _, line := range res.Results {
		if !line.OK() {
			fmt.Fprintf(out, "  line %d: %s\n", line.Line, line.Error)
		}
	}
	return res, nil
}
