package discrepancy

import (
	"cmp"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/events"
	"github.com/cleared-dev/bankrec/internal/logger"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
	"github.com/cleared-dev/bankrec/internal/validation"
)

var feePattern = regexp.MustCompile(`(?i)\b(fees?|service charge)\b`)

// DetectSummary reports one detection pass.
type DetectSummary struct {
	AccountID     int64               `json:"bankAccountId"`
	AsOf          model.Date          `json:"asOf"`
	Created       int                 `json:"created"`
	Updated       int                 `json:"updated"`
	Unchanged     int                 `json:"unchanged"`
	Discrepancies []model.Discrepancy `json:"discrepancies"`
}

// key identifies the item a discrepancy is about.
func key(d model.Discrepancy) string {
	ref := func(p *int64) int64 {
		if p == nil {
			return 0
		}
		return *p
	}
	return fmt.Sprintf("%s/%d/%d/%d", d.Type, ref(d.StatementEntryID), ref(d.TransactionID), ref(d.MatchID))
}

func idOf(id int64) *int64 { return &id }

func money(a decimal.Decimal) string { return a.StringFixed(2) }

// Detect scans the account as of asOf and records what does not reconcile:
//
//   - statement entries still unmatched after the grace period
//     (MISSING_INTERNAL, or BANK_FEE_UNKNOWN when they look like a fee)
//   - internal transactions still unreconciled after the grace period
//     (OUTSTANDING_CHECK, DEPOSIT_IN_TRANSIT or MISSING_BANK)
//   - confirmed matches whose totals differ by more than the amount
//     tolerance (AMOUNT_MISMATCH) or whose dates are further apart than
//     the match window (DATE_MISMATCH)
//   - internal transactions repeating an earlier one's amount, date and
//     reference (DUPLICATE)
//
// An open discrepancy about the same item and type is updated in place. A
// resolved or closed one is left alone and nothing new is opened for it.
func (s *Service) Detect(ctx context.Context, accountID int64, asOf model.Date, actor string) (DetectSummary, error) {
	var c validation.Checker
	c.Positive("bankAccountId", accountID)
	c.Date("asOf", asOf)
	if err := c.Err(); err != nil {
		return DetectSummary{}, err
	}
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return DetectSummary{}, err
	}
	actor = actorOr(actor)

	unlock := s.locks.Lock(accountID)
	sum := DetectSummary{AccountID: accountID, AsOf: asOf, Discrepancies: []model.Discrepancy{}}
	var created []model.Discrepancy
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		sum.Created, sum.Updated, sum.Unchanged = 0, 0, 0
		sum.Discrepancies = sum.Discrepancies[:0]
		created = created[:0]

		found, err := s.scan(ctx, tx, accountID, asOf)
		if err != nil {
			return err
		}
		existing, err := tx.ListDiscrepancies(ctx, store.DiscrepancyFilter{AccountID: accountID})
		if err != nil {
			return errorf(accountID, "loading discrepancies", err)
		}
		byKey := make(map[string]model.Discrepancy, len(existing))
		for _, d := range existing {
			k := key(d)
			if prev, ok := byKey[k]; ok && prev.Status.IsOpen() {
				continue
			}
			byKey[k] = d
		}

		now := s.Now().UTC()
		for _, d := range found {
			prev, ok := byKey[key(d)]
			switch {
			case !ok:
				d.Status = model.StatusOpen
				d.Priority = s.opts.PriorityFor(d.Amount)
				d.IdentifiedAt, d.IdentifiedBy = now, actor
				if err := tx.CreateDiscrepancy(ctx, &d); err != nil {
					return errorf(accountID, "recording discrepancy", err)
				}
				byKey[key(d)] = d
				created = append(created, d)
				sum.Created++
				sum.Discrepancies = append(sum.Discrepancies, d)
			case prev.Status.IsOpen() && (!prev.Amount.Equal(d.Amount) || prev.Description != d.Description):
				prev.Amount, prev.Description = d.Amount, d.Description
				if err := tx.UpdateDiscrepancy(ctx, prev); err != nil {
					return errorf(accountID, "updating discrepancy", err)
				}
				byKey[key(prev)] = prev
				sum.Updated++
				sum.Discrepancies = append(sum.Discrepancies, prev)
			default:
				sum.Unchanged++
			}
		}
		return nil
	})
	unlock()
	if err != nil {
		return DetectSummary{}, err
	}

	for _, d := range created {
		s.publish(ctx, events.DiscrepancyOpened, d)
	}
	logger.FromContext(ctx).Info("discrepancy detection finished", "accountID", accountID, "asOf", asOf,
		"created", sum.Created, "updated", sum.Updated, "unchanged", sum.Unchanged)
	return sum, nil
}

// scan returns the unsaved discrepancies the account currently warrants.
func (s *Service) scan(ctx context.Context, r store.Reader, accountID int64, asOf model.Date) ([]model.Discrepancy, error) {
	entries, err := r.ListEntries(ctx, store.EntryFilter{AccountID: accountID})
	if err != nil {
		return nil, errorf(accountID, "loading statement entries", err)
	}
	txns, err := r.ListTransactions(ctx, store.TransactionFilter{AccountID: accountID})
	if err != nil {
		return nil, errorf(accountID, "loading internal transactions", err)
	}
	matches, err := r.ListMatches(ctx, store.MatchFilter{AccountID: accountID, Confirmed: store.Bool(true)})
	if err != nil {
		return nil, errorf(accountID, "loading matches", err)
	}

	lastInGrace := asOf.AddDays(-s.opts.GraceDays)
	var out []model.Discrepancy
	for _, e := range entries {
		if e.Matched || !e.Date.Before(lastInGrace) {
			continue
		}
		out = append(out, unmatchedEntry(e))
	}
	for _, t := range txns {
		if t.Reconciled || !t.Date.Before(lastInGrace) {
			continue
		}
		out = append(out, unreconciledTransaction(t))
	}
	out = append(out, s.matchMismatches(accountID, matches, entries, txns)...)
	out = append(out, duplicates(accountID, txns)...)
	return out, nil
}

func unmatchedEntry(e model.StatementEntry) model.Discrepancy {
	d := model.Discrepancy{
		AccountID:        e.AccountID,
		StatementEntryID: idOf(e.ID),
		Type:             model.DiscrepancyMissingInternal,
		Amount:           e.Amount,
		Description: fmt.Sprintf("Bank statement entry %d for %s on %s has no matching internal transaction",
			e.ID, money(e.Amount), e.Date),
	}
	if feePattern.MatchString(e.Category) || feePattern.MatchString(e.Description) {
		d.Type = model.DiscrepancyBankFeeUnknown
		d.Description = fmt.Sprintf("Bank fee of %s on %s is not recorded internally", money(e.Amount), e.Date)
	}
	return d
}

func unreconciledTransaction(t model.InternalTransaction) model.Discrepancy {
	d := model.Discrepancy{
		AccountID:     t.AccountID,
		TransactionID: idOf(t.ID),
		Amount:        t.Amount,
	}
	switch t.Type {
	case model.TransactionCheck:
		ref := t.Reference
		if ref == "" {
			ref = fmt.Sprintf("#%d", t.ID)
		}
		d.Type = model.DiscrepancyOutstandingCheck
		d.Description = fmt.Sprintf("Check %s for %s issued %s has not cleared", ref, money(t.Amount), t.Date)
	case model.TransactionDeposit:
		d.Type = model.DiscrepancyDepositInTransit
		d.Description = fmt.Sprintf("Deposit of %s on %s is not on the bank statement", money(t.Amount), t.Date)
	default:
		d.Type = model.DiscrepancyMissingBank
		d.Description = fmt.Sprintf("Internal transaction %d for %s on %s has no matching bank statement entry",
			t.ID, money(t.Amount), t.Date)
	}
	return d
}

func (s *Service) matchMismatches(accountID int64, matches []model.Match, entries []model.StatementEntry, txns []model.InternalTransaction) []model.Discrepancy {
	entryByID := make(map[int64]model.StatementEntry, len(entries))
	for _, e := range entries {
		entryByID[e.ID] = e
	}
	txnByID := make(map[int64]model.InternalTransaction, len(txns))
	for _, t := range txns {
		txnByID[t.ID] = t
	}

	var out []model.Discrepancy
	for _, m := range matches {
		if len(m.TransactionIDs) == 0 {
			continue
		}
		var bankTotal, bookTotal decimal.Decimal
		var bankDates, bookDates []model.Date
		for _, id := range m.EntryIDs() {
			e := entryByID[id]
			bankTotal = bankTotal.Add(e.Amount)
			bankDates = append(bankDates, e.Date)
		}
		for _, id := range m.TransactionIDs {
			t := txnByID[id]
			bookTotal = bookTotal.Add(t.Amount)
			bookDates = append(bookDates, t.Date)
		}

		if diff := bankTotal.Sub(bookTotal); diff.Abs().GreaterThan(s.opts.AmountTolerance) {
			out = append(out, model.Discrepancy{
				AccountID:        accountID,
				StatementEntryID: idOf(m.StatementEntryID),
				MatchID:          idOf(m.ID),
				Type:             model.DiscrepancyAmountMismatch,
				Amount:           diff,
				Description: fmt.Sprintf("Match %d: bank total %s differs from internal total %s by %s",
					m.ID, money(bankTotal), money(bookTotal), money(diff)),
			})
		}

		span := 0
		for _, b := range bankDates {
			for _, k := range bookDates {
				span = max(span, model.DaysApart(b, k))
			}
		}
		if span > s.opts.WindowDays {
			out = append(out, model.Discrepancy{
				AccountID:        accountID,
				StatementEntryID: idOf(m.StatementEntryID),
				MatchID:          idOf(m.ID),
				Type:             model.DiscrepancyDateMismatch,
				Amount:           bankTotal,
				Description: fmt.Sprintf("Match %d pairs dates %d days apart (window is %d)",
					m.ID, span, s.opts.WindowDays),
			})
		}
	}
	return out
}

// duplicates flags every internal transaction that repeats the amount,
// date and reference of an earlier one.
func duplicates(accountID int64, txns []model.InternalTransaction) []model.Discrepancy {
	sorted := slices.Clone(txns)
	slices.SortFunc(sorted, func(a, b model.InternalTransaction) int { return cmp.Compare(a.ID, b.ID) })

	first := make(map[string]model.InternalTransaction)
	var out []model.Discrepancy
	for _, t := range sorted {
		k := strings.Join([]string{t.Amount.String(), t.Date.String(), strings.ToUpper(strings.TrimSpace(t.Reference))}, "|")
		orig, seen := first[k]
		if !seen {
			first[k] = t
			continue
		}
		out = append(out, model.Discrepancy{
			AccountID:     accountID,
			TransactionID: idOf(t.ID),
			Type:          model.DiscrepancyDuplicate,
			Amount:        t.Amount,
			Description: fmt.Sprintf("Internal transaction %d repeats transaction %d (%s on %s, reference %q)",
				t.ID, orig.ID, money(t.Amount), t.Date, t.Reference),
		})
	}
	return out
}

func errorf(accountID int64, what string, err error) error {
	return fmt.Errorf("detecting discrepancies for account %d: %s: %w", accountID, what, err)
}
