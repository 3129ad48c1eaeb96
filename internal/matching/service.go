// Package matching pairs bank statement entries with internal transactions.
// It scores candidates, records them for review and confirms matches, which
// is the only operation that sets the matched and reconciled flags.
package matching

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/events"
	"github.com/cleared-dev/bankrec/internal/ledger"
	"github.com/cleared-dev/bankrec/internal/logger"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
	"github.com/cleared-dev/bankrec/internal/validation"
)

// SystemActor is recorded for automatic decisions without a caller identity.
const SystemActor = "system"

// Service is the match engine.
type Service struct {
	store  store.Store
	locks  *ledger.Locks
	events events.Publisher
	opts   Options
	Now    func() time.Time
}

// NewService creates a match engine. Every component that mutates matches
// for an account must share locks.
func NewService(s store.Store, locks *ledger.Locks, pub events.Publisher, opts Options) *Service {
	return &Service{store: s, locks: locks, events: pub, opts: opts, Now: time.Now}
}

// Options returns the scoring options in use.
func (s *Service) Options() Options { return s.opts }

func actorOr(actor string) string {
	if actor == "" {
		return SystemActor
	}
	return actor
}

// RunSummary reports one auto-matching run.
type RunSummary struct {
	AccountID  int64         `json:"bankAccountId"`
	Processed  int           `json:"processed"`
	Confirmed  int           `json:"confirmed"`
	Candidates int           `json:"candidates"`
	Pending    int           `json:"pending"`
	Unmatched  int           `json:"unmatched"`
	Matches    []model.Match `json:"matches"`
}

// AutoMatch runs candidate search over every unmatched statement entry of
// the account in (date, id) order. The best candidate is confirmed when it
// reaches the auto-confirm threshold and otherwise recorded for review when
// it reaches the listing threshold. Candidates identical to one already on
// file are not recorded again, so repeated runs without new data change
// nothing. Each run ends by pruning candidates over consumed items. Events
// are published after the account lock is released.
func (s *Service) AutoMatch(ctx context.Context, accountID int64, actor string) (RunSummary, error) {
	var c validation.Checker
	c.Positive("bankAccountId", accountID)
	if err := c.Err(); err != nil {
		return RunSummary{}, err
	}
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return RunSummary{}, err
	}
	actor = actorOr(actor)
	log := logger.FromContext(ctx).With("accountID", accountID)

	sum, confirmed, err := s.autoMatch(ctx, accountID, actor)
	for _, m := range confirmed {
		s.publishConfirmed(ctx, m)
	}
	if err != nil {
		return sum, err
	}
	events.Emit(ctx, s.events, events.Event{
		Type:       events.AutoMatchCompleted,
		AccountID:  accountID,
		OccurredAt: s.Now().UTC(),
		Payload:    sum,
	})
	log.Info("auto-match finished", "processed", sum.Processed, "confirmed", sum.Confirmed,
		"candidates", sum.Candidates, "pending", sum.Pending, "unmatched", sum.Unmatched)
	return sum, nil
}

// autoMatch does the work of AutoMatch under the account lock and returns
// the matches it committed, also when it stops on an error.
func (s *Service) autoMatch(ctx context.Context, accountID int64, actor string) (RunSummary, []model.Match, error) {
	log := logger.FromContext(ctx).With("accountID", accountID)

	unlock := s.locks.Lock(accountID)
	defer unlock()

	entries, err := s.store.ListEntries(ctx, store.EntryFilter{AccountID: accountID, Matched: store.Bool(false)})
	if err != nil {
		return RunSummary{}, nil, fmt.Errorf("loading unmatched entries: %w", err)
	}
	txns, err := s.store.ListTransactions(ctx, store.TransactionFilter{AccountID: accountID, Reconciled: store.Bool(false)})
	if err != nil {
		return RunSummary{}, nil, fmt.Errorf("loading unreconciled transactions: %w", err)
	}
	listed, err := s.store.ListMatches(ctx, store.MatchFilter{AccountID: accountID, Confirmed: store.Bool(false)})
	if err != nil {
		return RunSummary{}, nil, fmt.Errorf("loading candidates: %w", err)
	}

	sum := RunSummary{AccountID: accountID, Matches: []model.Match{}}
	usedEntries := make(map[int64]bool)
	usedTxns := make(map[int64]bool)
	var confirmed []model.Match

	for _, e := range entries {
		if usedEntries[e.ID] {
			continue
		}
		sum.Processed++

		pool := slices.DeleteFunc(slices.Clone(txns), func(t model.InternalTransaction) bool { return usedTxns[t.ID] })
		others := slices.DeleteFunc(slices.Clone(entries), func(o model.StatementEntry) bool { return usedEntries[o.ID] || o.ID == e.ID })
		found := s.opts.Candidates(e, pool, others)
		if len(found) == 0 || found[0].Confidence.LessThan(s.opts.ListingThreshold) {
			sum.Unmatched++
			continue
		}

		m := found[0].Match(accountID)
		m.Automatic = true
		m.CreatedBy = actor
		m.CreatedAt = s.Now().UTC()

		if m.Confidence.GreaterThanOrEqual(s.opts.AutoConfirm) {
			err := s.store.WithTx(ctx, func(tx store.Tx) error {
				return s.confirmTx(ctx, tx, &m, actor)
			})
			if errors.Is(err, apperr.ErrConflict) {
				log.Warn("auto-confirm lost to a concurrent change", "entryID", e.ID, "error", err)
				sum.Unmatched++
				continue
			}
			if err != nil {
				return sum, confirmed, fmt.Errorf("confirming match for entry %d: %w", e.ID, err)
			}
			for _, id := range m.EntryIDs() {
				usedEntries[id] = true
			}
			for _, id := range m.TransactionIDs {
				usedTxns[id] = true
			}
			confirmed = append(confirmed, m)
			sum.Confirmed++
			sum.Matches = append(sum.Matches, m)
			continue
		}

		if slices.ContainsFunc(listed, func(l model.Match) bool { return sameCandidate(l, m) }) {
			sum.Pending++
			continue
		}
		err := s.store.WithTx(ctx, func(tx store.Tx) error {
			return tx.CreateMatch(ctx, &m)
		})
		if err != nil {
			return sum, confirmed, fmt.Errorf("recording candidate for entry %d: %w", e.ID, err)
		}
		listed = append(listed, m)
		sum.Candidates++
		sum.Matches = append(sum.Matches, m)
	}

	if _, err := s.PruneStale(ctx, accountID); err != nil {
		log.Warn("pruning stale candidates failed", "error", err)
	}
	return sum, confirmed, nil
}

// sameCandidate reports whether two matches propose the same pairing. A
// combined match is the same set whichever of its entries leads it.
func sameCandidate(a, b model.Match) bool {
	return a.Type == b.Type &&
		slices.Equal(sortedIDs(a.EntryIDs()), sortedIDs(b.EntryIDs())) &&
		slices.Equal(sortedIDs(a.TransactionIDs), sortedIDs(b.TransactionIDs))
}

func sortedIDs(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return out
}

// confirmTx consumes every item of m and stores m as confirmed. It creates
// m when it has no id yet. Items already consumed are a conflict.
func (s *Service) confirmTx(ctx context.Context, tx store.Tx, m *model.Match, actor string) error {
	at := s.Now().UTC()
	for _, id := range m.EntryIDs() {
		e, err := tx.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		if e.AccountID != m.AccountID {
			return apperr.Invalid("bankStatementEntryId", "statement entry %d belongs to account %d", id, e.AccountID)
		}
		if e.Matched {
			return apperr.Conflict("statement entry %d is already matched", id)
		}
		e.Matched, e.MatchedAt, e.MatchedBy = true, &at, actor
		if err := tx.UpdateEntry(ctx, e); err != nil {
			return err
		}
	}
	for _, id := range m.TransactionIDs {
		t, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if t.AccountID != m.AccountID {
			return apperr.Invalid("internalTransactionIds", "internal transaction %d belongs to account %d", id, t.AccountID)
		}
		if t.Reconciled {
			return apperr.Conflict("internal transaction %d is already reconciled", id)
		}
		t.Reconciled, t.ReconciledAt, t.ReconciledBy = true, &at, actor
		if err := tx.UpdateTransaction(ctx, t); err != nil {
			return err
		}
	}

	m.Confirmed, m.ConfirmedAt, m.ConfirmedBy = true, &at, actor
	if m.ID == 0 {
		return tx.CreateMatch(ctx, m)
	}
	return tx.UpdateMatch(ctx, *m)
}

// PruneStale deletes unconfirmed candidates of the account that reference
// a statement entry or transaction already consumed by a confirmed match.
// It returns how many were deleted.
func (s *Service) PruneStale(ctx context.Context, accountID int64) (int, error) {
	open, err := s.store.ListMatches(ctx, store.MatchFilter{AccountID: accountID, Confirmed: store.Bool(false)})
	if err != nil || len(open) == 0 {
		return 0, err
	}
	matched, err := s.store.ListEntries(ctx, store.EntryFilter{AccountID: accountID, Matched: store.Bool(true)})
	if err != nil {
		return 0, err
	}
	reconciled, err := s.store.ListTransactions(ctx, store.TransactionFilter{AccountID: accountID, Reconciled: store.Bool(true)})
	if err != nil {
		return 0, err
	}
	entryIDs := make([]int64, len(matched))
	for i, e := range matched {
		entryIDs[i] = e.ID
	}
	txnIDs := make([]int64, len(reconciled))
	for i, t := range reconciled {
		txnIDs[i] = t.ID
	}

	var stale []int64
	for _, c := range open {
		if c.References(entryIDs, txnIDs) {
			stale = append(stale, c.ID)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		for _, id := range stale {
			if err := tx.DeleteMatch(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("deleting stale candidates: %w", err)
	}
	logger.FromContext(ctx).Debug("stale candidates pruned", "accountID", accountID, "count", len(stale))
	return len(stale), nil
}

type confirmedPayload struct {
	MatchID        int64           `json:"matchId"`
	Type           model.MatchType `json:"matchType"`
	Confidence     decimal.Decimal `json:"confidenceScore"`
	EntryIDs       []int64         `json:"bankStatementEntryIds"`
	TransactionIDs []int64         `json:"internalTransactionIds"`
	ConfirmedBy    string          `json:"confirmedBy"`
}

func (s *Service) publishConfirmed(ctx context.Context, m model.Match) {
	events.Emit(ctx, s.events, events.Event{
		Type:       events.MatchConfirmed,
		AccountID:  m.AccountID,
		OccurredAt: s.Now().UTC(),
		Payload: confirmedPayload{
			MatchID:        m.ID,
			Type:           m.Type,
			Confidence:     m.Confidence,
			EntryIDs:       m.EntryIDs(),
			TransactionIDs: m.TransactionIDs,
			ConfirmedBy:    m.ConfirmedBy,
		},
	})
}

// Confirm consumes the match's statement entries and transactions. A match
// that is already confirmed is an invalid transition; an item consumed by
// another match is a conflict and nothing changes. Other candidates over the
// same items are left for dismissal and pruned by the next auto-match run.
func (s *Service) Confirm(ctx context.Context, id int64, actor string) (model.Match, error) {
	m, err := s.store.GetMatch(ctx, id)
	if err != nil {
		return model.Match{}, err
	}
	actor = actorOr(actor)

	unlock := s.locks.Lock(m.AccountID)
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		cur, err := tx.GetMatch(ctx, id)
		if err != nil {
			return err
		}
		if cur.Confirmed {
			return apperr.InvalidTransition("match %d is already confirmed", id)
		}
		if err := s.confirmTx(ctx, tx, &cur, actor); err != nil {
			return err
		}
		m = cur
		return nil
	})
	unlock()
	if err != nil {
		return model.Match{}, err
	}

	s.publishConfirmed(ctx, m)
	logger.FromContext(ctx).Info("match confirmed", "matchID", m.ID, "accountID", m.AccountID, "type", m.Type)
	return m, nil
}

// ManualParams describes a match chosen by a person.
type ManualParams struct {
	EntryID        int64   `json:"bankStatementEntryId"`
	TransactionIDs []int64 `json:"internalTransactionIds"`
	Notes          string  `json:"notes"`
	Confirm        bool    `json:"confirm"`
}

// CreateManual records a MANUAL_MATCH at full confidence and, when asked,
// confirms it in the same unit of work.
func (s *Service) CreateManual(ctx context.Context, p ManualParams, actor string) (model.Match, error) {
	p.Notes = validation.SanitizeText(p.Notes)
	var c validation.Checker
	c.Positive("bankStatementEntryId", p.EntryID)
	seen := make(map[int64]bool, len(p.TransactionIDs))
	for _, id := range p.TransactionIDs {
		if id <= 0 {
			c.Add("internalTransactionIds", "must contain positive ids")
			break
		}
		if seen[id] {
			c.Add("internalTransactionIds", "transaction %d is listed twice", id)
			break
		}
		seen[id] = true
	}
	c.MaxLen("notes", p.Notes, validation.MaxNotes)
	if err := c.Err(); err != nil {
		return model.Match{}, err
	}

	entry, err := s.store.GetEntry(ctx, p.EntryID)
	if err != nil {
		return model.Match{}, err
	}
	actor = actorOr(actor)

	m := model.Match{
		AccountID:        entry.AccountID,
		StatementEntryID: entry.ID,
		TransactionIDs:   slices.Clone(p.TransactionIDs),
		Type:             model.MatchManual,
		Confidence:       s.opts.Confidence(model.MatchManual, 0),
		Notes:            p.Notes,
		CreatedAt:        s.Now().UTC(),
		CreatedBy:        actor,
	}
	if m.TransactionIDs == nil {
		m.TransactionIDs = []int64{}
	}
	unlock := s.locks.Lock(entry.AccountID)
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		e, err := tx.GetEntry(ctx, m.StatementEntryID)
		if err != nil {
			return err
		}
		if e.Matched {
			return apperr.Conflict("statement entry %d is already matched", e.ID)
		}
		for _, id := range m.TransactionIDs {
			t, err := tx.GetTransaction(ctx, id)
			if err != nil {
				return err
			}
			if t.AccountID != m.AccountID {
				return apperr.Invalid("internalTransactionIds", "internal transaction %d belongs to account %d", id, t.AccountID)
			}
			if t.Reconciled {
				return apperr.Conflict("internal transaction %d is already reconciled", id)
			}
		}
		if p.Confirm {
			return s.confirmTx(ctx, tx, &m, actor)
		}
		return tx.CreateMatch(ctx, &m)
	})
	unlock()
	if err != nil {
		return model.Match{}, err
	}

	if m.Confirmed {
		s.publishConfirmed(ctx, m)
	}
	logger.FromContext(ctx).Info("manual match recorded", "matchID", m.ID, "accountID", m.AccountID, "confirmed", m.Confirmed)
	return m, nil
}

// MatchEntry is the statement-side shortcut: it confirms a manual match of
// the entry against the given transactions.
func (s *Service) MatchEntry(ctx context.Context, entryID int64, transactionIDs []int64, actor string) (model.Match, error) {
	return s.CreateManual(ctx, ManualParams{EntryID: entryID, TransactionIDs: transactionIDs, Confirm: true}, actor)
}

// ReconcileTransaction is the transaction-side shortcut: it confirms a
// manual match of the transaction against one statement entry.
func (s *Service) ReconcileTransaction(ctx context.Context, transactionID, entryID int64, actor string) (model.Match, error) {
	var c validation.Checker
	c.Positive("id", transactionID)
	c.Positive("statementEntryId", entryID)
	if err := c.Err(); err != nil {
		return model.Match{}, err
	}
	if _, err := s.store.GetTransaction(ctx, transactionID); err != nil {
		return model.Match{}, err
	}
	return s.CreateManual(ctx, ManualParams{EntryID: entryID, TransactionIDs: []int64{transactionID}, Confirm: true}, actor)
}

// Dismiss deletes an unconfirmed candidate.
func (s *Service) Dismiss(ctx context.Context, id int64) error {
	m, err := s.store.GetMatch(ctx, id)
	if err != nil {
		return err
	}
	unlock := s.locks.Lock(m.AccountID)
	defer unlock()

	return s.store.WithTx(ctx, func(tx store.Tx) error {
		cur, err := tx.GetMatch(ctx, id)
		if err != nil {
			return err
		}
		if cur.Confirmed {
			return apperr.InvalidTransition("match %d is confirmed and cannot be dismissed", id)
		}
		return tx.DeleteMatch(ctx, id)
	})
}

// Get returns one match.
func (s *Service) Get(ctx context.Context, id int64) (model.Match, error) {
	return s.store.GetMatch(ctx, id)
}

// ByAccount returns every match of an account.
func (s *Service) ByAccount(ctx context.Context, accountID int64) ([]model.Match, error) {
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.store.ListMatches(ctx, store.MatchFilter{AccountID: accountID})
}

// ListUnconfirmed returns the candidates awaiting review, optionally for
// one account (0 = all).
func (s *Service) ListUnconfirmed(ctx context.Context, accountID int64) ([]model.Match, error) {
	return s.store.ListMatches(ctx, store.MatchFilter{AccountID: accountID, Confirmed: store.Bool(false)})
}

// NeedsReview returns unconfirmed candidates scored below threshold.
func (s *Service) NeedsReview(ctx context.Context, threshold decimal.Decimal) ([]model.Match, error) {
	if threshold.IsNegative() || threshold.GreaterThan(decimal.NewFromInt(1)) {
		return nil, apperr.Invalid("confidenceThreshold", "must be between 0 and 1")
	}
	open, err := s.ListUnconfirmed(ctx, 0)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(open, func(m model.Match) bool {
		return !m.Confidence.LessThan(threshold)
	}), nil
}

// Candidates scores the current candidates for one statement entry without
// recording anything. A matched entry has none.
func (s *Service) Candidates(ctx context.Context, entryID int64) ([]Candidate, error) {
	e, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if e.Matched {
		return []Candidate{}, nil
	}
	txns, err := s.store.ListTransactions(ctx, store.TransactionFilter{
		AccountID:  e.AccountID,
		Reconciled: store.Bool(false),
		From:       e.Date.AddDays(-s.opts.WindowDays),
		To:         e.Date.AddDays(s.opts.WindowDays),
	})
	if err != nil {
		return nil, err
	}
	others, err := s.store.ListEntries(ctx, store.EntryFilter{
		AccountID: e.AccountID,
		Matched:   store.Bool(false),
		From:      e.Date.AddDays(-2 * s.opts.WindowDays),
		To:        e.Date.AddDays(2 * s.opts.WindowDays),
	})
	if err != nil {
		return nil, err
	}
	return s.opts.Candidates(e, txns, others), nil
}
