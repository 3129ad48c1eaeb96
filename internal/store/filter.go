package store

import (
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/model"
)

// Bool returns a pointer to b for optional filter fields.
func Bool(b bool) *bool { return &b }

// EntryFilter selects statement entries. Zero fields do not filter.
// Results are ordered by (date, id).
type EntryFilter struct {
	AccountID int64
	Matched   *bool
	From, To  model.Date
	Amount    *decimal.Decimal
	Reference *string
}

// Match reports whether e passes the filter.
func (f EntryFilter) Match(e model.StatementEntry) bool {
	if f.AccountID != 0 && e.AccountID != f.AccountID {
		return false
	}
	if f.Matched != nil && e.Matched != *f.Matched {
		return false
	}
	if !e.Date.Within(f.From, f.To) {
		return false
	}
	if f.Amount != nil && !e.Amount.Equal(*f.Amount) {
		return false
	}
	if f.Reference != nil && e.Reference != *f.Reference {
		return false
	}
	return true
}

// TransactionFilter selects internal transactions. Results are ordered by (date, id).
type TransactionFilter struct {
	AccountID  int64
	Reconciled *bool
	From, To   model.Date
	Type       model.TransactionType
}

// Match reports whether t passes the filter.
func (f TransactionFilter) Match(t model.InternalTransaction) bool {
	if f.AccountID != 0 && t.AccountID != f.AccountID {
		return false
	}
	if f.Reconciled != nil && t.Reconciled != *f.Reconciled {
		return false
	}
	if !t.Date.Within(f.From, f.To) {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	return true
}

// MatchFilter selects matches. EntryID and TransactionID match any
// referenced item, including grouped entries. Results are ordered by id.
type MatchFilter struct {
	AccountID     int64
	Confirmed     *bool
	EntryID       int64
	TransactionID int64
}

// Match reports whether m passes the filter.
func (f MatchFilter) Match(m model.Match) bool {
	if f.AccountID != 0 && m.AccountID != f.AccountID {
		return false
	}
	if f.Confirmed != nil && m.Confirmed != *f.Confirmed {
		return false
	}
	if f.EntryID != 0 && !m.References([]int64{f.EntryID}, nil) {
		return false
	}
	if f.TransactionID != 0 && !m.References(nil, []int64{f.TransactionID}) {
		return false
	}
	return true
}

// DiscrepancyFilter selects discrepancies. Results are ordered by id.
type DiscrepancyFilter struct {
	AccountID     int64
	Statuses      []model.DiscrepancyStatus
	Type          model.DiscrepancyType
	EntryID       int64
	TransactionID int64
	MatchID       int64
}

// OpenStatuses are the statuses that still need work.
var OpenStatuses = []model.DiscrepancyStatus{model.StatusOpen, model.StatusInProgress}

// Match reports whether d passes the filter.
func (f DiscrepancyFilter) Match(d model.Discrepancy) bool {
	if f.AccountID != 0 && d.AccountID != f.AccountID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if d.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Type != "" && d.Type != f.Type {
		return false
	}
	if f.EntryID != 0 && (d.StatementEntryID == nil || *d.StatementEntryID != f.EntryID) {
		return false
	}
	if f.TransactionID != 0 && (d.TransactionID == nil || *d.TransactionID != f.TransactionID) {
		return false
	}
	if f.MatchID != 0 && (d.MatchID == nil || *d.MatchID != f.MatchID) {
		return false
	}
	return true
}
