// Package store defines the persistence boundary of the reconciliation core.
//
// Every entity lives in a flat table keyed by an int64 id assigned in creation
// order. Matches reference statement entries and internal transactions by id
// only. Multi-entity mutations run inside WithTx and either apply completely
// or not at all.
package store

import (
	"context"

	"github.com/cleared-dev/bankrec/internal/model"
)

// Reader is the read side shared by Store and Tx. Get methods return an
// apperr.ErrNotFound error for unknown ids; list methods return an empty
// slice when nothing matches.
type Reader interface {
	GetAccount(ctx context.Context, id int64) (model.BankAccount, error)
	ListAccounts(ctx context.Context) ([]model.BankAccount, error)

	GetEntry(ctx context.Context, id int64) (model.StatementEntry, error)
	ListEntries(ctx context.Context, f EntryFilter) ([]model.StatementEntry, error)

	GetTransaction(ctx context.Context, id int64) (model.InternalTransaction, error)
	ListTransactions(ctx context.Context, f TransactionFilter) ([]model.InternalTransaction, error)

	GetMatch(ctx context.Context, id int64) (model.Match, error)
	ListMatches(ctx context.Context, f MatchFilter) ([]model.Match, error)

	GetDiscrepancy(ctx context.Context, id int64) (model.Discrepancy, error)
	ListDiscrepancies(ctx context.Context, f DiscrepancyFilter) ([]model.Discrepancy, error)
}

// Writer mutates tables. Create methods assign the id on the passed value.
// Update methods return apperr.ErrNotFound for unknown ids.
type Writer interface {
	CreateAccount(ctx context.Context, a *model.BankAccount) error
	UpdateAccount(ctx context.Context, a model.BankAccount) error

	CreateEntry(ctx context.Context, e *model.StatementEntry) error
	UpdateEntry(ctx context.Context, e model.StatementEntry) error

	CreateTransaction(ctx context.Context, t *model.InternalTransaction) error
	UpdateTransaction(ctx context.Context, t model.InternalTransaction) error

	CreateMatch(ctx context.Context, m *model.Match) error
	UpdateMatch(ctx context.Context, m model.Match) error
	DeleteMatch(ctx context.Context, id int64) error

	CreateDiscrepancy(ctx context.Context, d *model.Discrepancy) error
	UpdateDiscrepancy(ctx context.Context, d model.Discrepancy) error
}

// Tx is a unit of work. Reads through a Tx observe its own writes.
type Tx interface {
	Reader
	Writer
}

// Store is the persistence backend.
type Store interface {
	Reader
	// WithTx runs fn atomically. A non-nil error from fn discards every write
	// fn made and is returned unchanged.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}
