package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
)

type tx struct {
	data *tables
}

var _ store.Tx = (*tx)(nil)

func byDateThenID(ad, bd model.Date, aid, bid int64) int {
	switch {
	case ad.Before(bd):
		return -1
	case ad.After(bd):
		return 1
	}
	return cmp.Compare(aid, bid)
}

func (t *tx) GetAccount(_ context.Context, id int64) (model.BankAccount, error) {
	a, ok := t.data.accounts[id]
	if !ok {
		return model.BankAccount{}, apperr.NotFound("bank account", id)
	}
	return a, nil
}

func (t *tx) ListAccounts(_ context.Context) ([]model.BankAccount, error) {
	out := make([]model.BankAccount, 0, len(t.data.accounts))
	for _, a := range t.data.accounts {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b model.BankAccount) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (t *tx) GetEntry(_ context.Context, id int64) (model.StatementEntry, error) {
	e, ok := t.data.entries[id]
	if !ok {
		return model.StatementEntry{}, apperr.NotFound("statement entry", id)
	}
	return e, nil
}

func (t *tx) ListEntries(_ context.Context, f store.EntryFilter) ([]model.StatementEntry, error) {
	out := []model.StatementEntry{}
	for _, e := range t.data.entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b model.StatementEntry) int { return byDateThenID(a.Date, b.Date, a.ID, b.ID) })
	return out, nil
}

func (t *tx) GetTransaction(_ context.Context, id int64) (model.InternalTransaction, error) {
	it, ok := t.data.transactions[id]
	if !ok {
		return model.InternalTransaction{}, apperr.NotFound("internal transaction", id)
	}
	return it, nil
}

func (t *tx) ListTransactions(_ context.Context, f store.TransactionFilter) ([]model.InternalTransaction, error) {
	out := []model.InternalTransaction{}
	for _, it := range t.data.transactions {
		if f.Match(it) {
			out = append(out, it)
		}
	}
	slices.SortFunc(out, func(a, b model.InternalTransaction) int { return byDateThenID(a.Date, b.Date, a.ID, b.ID) })
	return out, nil
}

func (t *tx) GetMatch(_ context.Context, id int64) (model.Match, error) {
	m, ok := t.data.matches[id]
	if !ok {
		return model.Match{}, apperr.NotFound("transaction match", id)
	}
	return copyMatch(m), nil
}

func (t *tx) ListMatches(_ context.Context, f store.MatchFilter) ([]model.Match, error) {
	out := []model.Match{}
	for _, m := range t.data.matches {
		if f.Match(m) {
			out = append(out, copyMatch(m))
		}
	}
	slices.SortFunc(out, func(a, b model.Match) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (t *tx) GetDiscrepancy(_ context.Context, id int64) (model.Discrepancy, error) {
	d, ok := t.data.discrepancies[id]
	if !ok {
		return model.Discrepancy{}, apperr.NotFound("discrepancy", id)
	}
	return copyDiscrepancy(d), nil
}

func (t *tx) ListDiscrepancies(_ context.Context, f store.DiscrepancyFilter) ([]model.Discrepancy, error) {
	out := []model.Discrepancy{}
	for _, d := range t.data.discrepancies {
		if f.Match(d) {
			out = append(out, copyDiscrepancy(d))
		}
	}
	slices.SortFunc(out, func(a, b model.Discrepancy) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (t *tx) CreateAccount(_ context.Context, a *model.BankAccount) error {
	t.data.seq.account++
	a.ID = t.data.seq.account
	t.data.accounts[a.ID] = *a
	return nil
}

func (t *tx) UpdateAccount(_ context.Context, a model.BankAccount) error {
	if _, ok := t.data.accounts[a.ID]; !ok {
		return apperr.NotFound("bank account", a.ID)
	}
	t.data.accounts[a.ID] = a
	return nil
}

func (t *tx) CreateEntry(_ context.Context, e *model.StatementEntry) error {
	if _, ok := t.data.accounts[e.AccountID]; !ok {
		return apperr.NotFound("bank account", e.AccountID)
	}
	t.data.seq.entry++
	e.ID = t.data.seq.entry
	t.data.entries[e.ID] = *e
	return nil
}

// UpdateEntry writes matched metadata only; imported fields never change.
func (t *tx) UpdateEntry(_ context.Context, e model.StatementEntry) error {
	cur, ok := t.data.entries[e.ID]
	if !ok {
		return apperr.NotFound("statement entry", e.ID)
	}
	cur.Matched, cur.MatchedAt, cur.MatchedBy = e.Matched, e.MatchedAt, e.MatchedBy
	t.data.entries[e.ID] = cur
	return nil
}

func (t *tx) CreateTransaction(_ context.Context, it *model.InternalTransaction) error {
	if _, ok := t.data.accounts[it.AccountID]; !ok {
		return apperr.NotFound("bank account", it.AccountID)
	}
	t.data.seq.transaction++
	it.ID = t.data.seq.transaction
	t.data.transactions[it.ID] = *it
	return nil
}

// UpdateTransaction writes reconciliation metadata only.
func (t *tx) UpdateTransaction(_ context.Context, it model.InternalTransaction) error {
	cur, ok := t.data.transactions[it.ID]
	if !ok {
		return apperr.NotFound("internal transaction", it.ID)
	}
	cur.Reconciled, cur.ReconciledAt, cur.ReconciledBy = it.Reconciled, it.ReconciledAt, it.ReconciledBy
	t.data.transactions[it.ID] = cur
	return nil
}

// checkConfirmedUnique mirrors the unique index the SQL store keeps on the
// statement entry of confirmed matches.
func (t *tx) checkConfirmedUnique(m model.Match) error {
	if !m.Confirmed {
		return nil
	}
	for _, other := range t.data.matches {
		if other.ID != m.ID && other.Confirmed && other.StatementEntryID == m.StatementEntryID {
			return apperr.Conflict("statement entry %d already has confirmed match %d", m.StatementEntryID, other.ID)
		}
	}
	return nil
}

func (t *tx) CreateMatch(_ context.Context, m *model.Match) error {
	if _, ok := t.data.entries[m.StatementEntryID]; !ok {
		return apperr.NotFound("statement entry", m.StatementEntryID)
	}
	if err := t.checkConfirmedUnique(*m); err != nil {
		return err
	}
	t.data.seq.match++
	m.ID = t.data.seq.match
	t.data.matches[m.ID] = copyMatch(*m)
	return nil
}

func (t *tx) UpdateMatch(_ context.Context, m model.Match) error {
	if _, ok := t.data.matches[m.ID]; !ok {
		return apperr.NotFound("transaction match", m.ID)
	}
	if err := t.checkConfirmedUnique(m); err != nil {
		return err
	}
	t.data.matches[m.ID] = copyMatch(m)
	return nil
}

func (t *tx) DeleteMatch(_ context.Context, id int64) error {
	if _, ok := t.data.matches[id]; !ok {
		return apperr.NotFound("transaction match", id)
	}
	delete(t.data.matches, id)
	return nil
}

func (t *tx) CreateDiscrepancy(_ context.Context, d *model.Discrepancy) error {
	if _, ok := t.data.accounts[d.AccountID]; !ok {
		return apperr.NotFound("bank account", d.AccountID)
	}
	t.data.seq.discrepancy++
	d.ID = t.data.seq.discrepancy
	t.data.discrepancies[d.ID] = copyDiscrepancy(*d)
	return nil
}

func (t *tx) UpdateDiscrepancy(_ context.Context, d model.Discrepancy) error {
	if _, ok := t.data.discrepancies[d.ID]; !ok {
		return apperr.NotFound("discrepancy", d.ID)
	}
	t.data.discrepancies[d.ID] = copyDiscrepancy(d)
	return nil
}
