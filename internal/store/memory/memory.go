// Package memory is a Store held entirely in process memory. Transactions
// work on a private copy of every table that replaces the live copy only
// when the transaction function succeeds.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
)

// sequences holds the last id handed out per table.
type sequences struct {
	account, entry, transaction, match, discrepancy int64
}

type tables struct {
	seq           sequences
	accounts      map[int64]model.BankAccount
	entries       map[int64]model.StatementEntry
	transactions  map[int64]model.InternalTransaction
	matches       map[int64]model.Match
	discrepancies map[int64]model.Discrepancy
}

func newTables() *tables {
	return &tables{
		accounts:      make(map[int64]model.BankAccount),
		entries:       make(map[int64]model.StatementEntry),
		transactions:  make(map[int64]model.InternalTransaction),
		matches:       make(map[int64]model.Match),
		discrepancies: make(map[int64]model.Discrepancy),
	}
}

func (t *tables) clone() *tables {
	c := &tables{
		seq:           t.seq,
		accounts:      make(map[int64]model.BankAccount, len(t.accounts)),
		entries:       make(map[int64]model.StatementEntry, len(t.entries)),
		transactions:  make(map[int64]model.InternalTransaction, len(t.transactions)),
		matches:       make(map[int64]model.Match, len(t.matches)),
		discrepancies: make(map[int64]model.Discrepancy, len(t.discrepancies)),
	}
	for id, v := range t.accounts {
		c.accounts[id] = v
	}
	for id, v := range t.entries {
		c.entries[id] = v
	}
	for id, v := range t.transactions {
		c.transactions[id] = v
	}
	for id, v := range t.matches {
		c.matches[id] = copyMatch(v)
	}
	for id, v := range t.discrepancies {
		c.discrepancies[id] = copyDiscrepancy(v)
	}
	return c
}

func copyMatch(m model.Match) model.Match {
	m.TransactionIDs = slices.Clone(m.TransactionIDs)
	m.GroupedEntryIDs = slices.Clone(m.GroupedEntryIDs)
	return m
}

func copyDiscrepancy(d model.Discrepancy) model.Discrepancy {
	d.Notes = slices.Clone(d.Notes)
	return d
}

// Store is the in-memory store.Store.
type Store struct {
	mu   sync.RWMutex
	data *tables
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: newTables()}
}

var _ store.Store = (*Store)(nil)

// WithTx serializes writers. fn sees a private copy of all tables.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(&tx{data: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) read() *tx {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// The live tables are replaced, never mutated, once published.
	return &tx{data: s.data}
}

func (s *Store) GetAccount(ctx context.Context, id int64) (model.BankAccount, error) {
	return s.read().GetAccount(ctx, id)
}

func (s *Store) ListAccounts(ctx context.Context) ([]model.BankAccount, error) {
	return s.read().ListAccounts(ctx)
}

func (s *Store) GetEntry(ctx context.Context, id int64) (model.StatementEntry, error) {
	return s.read().GetEntry(ctx, id)
}

func (s *Store) ListEntries(ctx context.Context, f store.EntryFilter) ([]model.StatementEntry, error) {
	return s.read().ListEntries(ctx, f)
}

func (s *Store) GetTransaction(ctx context.Context, id int64) (model.InternalTransaction, error) {
	return s.read().GetTransaction(ctx, id)
}

func (s *Store) ListTransactions(ctx context.Context, f store.TransactionFilter) ([]model.InternalTransaction, error) {
	return s.read().ListTransactions(ctx, f)
}

func (s *Store) GetMatch(ctx context.Context, id int64) (model.Match, error) {
	return s.read().GetMatch(ctx, id)
}

func (s *Store) ListMatches(ctx context.Context, f store.MatchFilter) ([]model.Match, error) {
	return s.read().ListMatches(ctx, f)
}

func (s *Store) GetDiscrepancy(ctx context.Context, id int64) (model.Discrepancy, error) {
	return s.read().GetDiscrepancy(ctx, id)
}

func (s *Store) ListDiscrepancies(ctx context.Context, f store.DiscrepancyFilter) ([]model.Discrepancy, error) {
	return s.read().ListDiscrepancies(ctx, f)
}
