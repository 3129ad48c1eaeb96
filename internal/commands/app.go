package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrec/internal/api"
	"github.com/cleared-dev/bankrec/internal/config"
	"github.com/cleared-dev/bankrec/internal/database"
	"github.com/cleared-dev/bankrec/internal/discrepancy"
	"github.com/cleared-dev/bankrec/internal/events"
	"github.com/cleared-dev/bankrec/internal/importer"
	"github.com/cleared-dev/bankrec/internal/ledger"
	"github.com/cleared-dev/bankrec/internal/logger"
	"github.com/cleared-dev/bankrec/internal/matching"
	"github.com/cleared-dev/bankrec/internal/report"
	"github.com/cleared-dev/bankrec/internal/runlog"
	"github.com/cleared-dev/bankrec/internal/statements"
	"github.com/cleared-dev/bankrec/internal/store"
	"github.com/cleared-dev/bankrec/internal/store/memory"
	"github.com/cleared-dev/bankrec/internal/store/sqlstore"
	"github.com/cleared-dev/bankrec/internal/transactions"
)

// ConfigFile is the workspace-relative name of the configuration.
const ConfigFile = "bankrec.yaml"

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	workspace  string
	configPath string
}

func (o *globalOptions) resolvedConfigPath() string {
	if o.configPath != "" {
		return o.configPath
	}
	return filepath.Join(o.workspace, ConfigFile)
}

func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Resolve(o.resolvedConfigPath())
	if err != nil {
		return nil, err
	}
	if cfg.Database.Driver == database.DriverSQLite {
		cfg.Database.DSN = workspacePath(o.workspace, cfg.Database.DSN)
	}
	return cfg, nil
}

// workspacePath anchors a relative SQLite path at the workspace. DSNs with
// a scheme or query are left alone.
func workspacePath(workspace, dsn string) string {
	if filepath.IsAbs(dsn) || strings.ContainsAny(dsn, ":?") {
		return dsn
	}
	return filepath.Join(workspace, dsn)
}

// app is one wired instance of the reconciliation services.
type app struct {
	cfg       *config.Config
	workspace string
	store     store.Store
	events    events.Publisher
	services  api.Services
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (store.Store, error) {
	if cfg.Driver == "memory" {
		return memory.New(), nil
	}
	db, err := database.Open(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db, cfg.Driver); err != nil {
		db.Close()
		return nil, err
	}
	return sqlstore.New(db, cfg.Driver), nil
}

func openApp(ctx context.Context, opts *globalOptions, cfg *config.Config) (*app, error) {
	st, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	pub := events.New(cfg.Events.Brokers, cfg.Events.Topic)
	locks := ledger.NewLocks()
	matchOpts := matching.OptionsFrom(cfg.Matching)
	return &app{
		cfg:       cfg,
		workspace: opts.workspace,
		store:     st,
		events:    pub,
		services: api.Services{
			Ledger:        ledger.NewService(st),
			Statements:    statements.NewService(st, importer.DefaultRegistry(), matchOpts.WindowDays),
			Transactions:  transactions.NewService(st),
			Matching:      matching.NewService(st, locks, pub, matchOpts),
			Discrepancies: discrepancy.NewService(st, locks, pub, discrepancy.OptionsFrom(cfg.Discrepancies, cfg.Matching)),
			Reports:       report.NewService(st, report.OptionsFrom(cfg.Reports)),
		},
	}, nil
}

func (a *app) Close() error {
	pubErr := a.events.Close()
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return pubErr
}

// withApp loads the configuration, logs to stderr and runs fn against a
// freshly opened app.
func withApp(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, a *app) error) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger.InitWriter(cmd.ErrOrStderr(), cfg.Log.Level)

	a, err := openApp(cmd.Context(), opts, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}

// record appends a run to the workspace run log. A failing log write is
// reported but does not fail the command.
func (a *app) record(ctx context.Context, command string, accountID int64, actor, summary string, runErr error) {
	e := runlog.Entry{
		At:        time.Now(),
		Command:   command,
		AccountID: accountID,
		Actor:     actor,
		Outcome:   "ok",
		Summary:   summary,
	}
	if runErr != nil {
		e.Outcome = "failed"
		e.Summary = runErr.Error()
	}
	if err := runlog.Append(a.workspace, e); err != nil {
		logger.FromContext(ctx).Warn("writing run log failed", "error", err)
	}
}
