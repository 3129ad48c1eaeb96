package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrec/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:     "bankrec",
		Short:   "Bank reconciliation service",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.workspace, "dir", ".", "workspace directory")
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default <dir>/"+ConfigFile+")")

	rootCmd.AddCommand(
		newInitCommand(),
		newServeCommand(opts),
		newMigrateCommand(opts),
		newAccountCommand(opts),
		newImportCommand(opts),
		newAutoMatchCommand(opts),
		newDetectCommand(opts),
		newReportCommand(opts),
		newHistoryCommand(opts),
	)

	return rootCmd
}
