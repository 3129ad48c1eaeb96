// Package storetest is the behavioral contract every store.Store backend runs.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
)

// Opener returns a fresh, empty store for one subtest.
type Opener func(t *testing.T) store.Store

// Run exercises s against the shared contract.
func Run(t *testing.T, open Opener) {
	t.Run("accounts", func(t *testing.T) { testAccounts(t, open(t)) })
	t.Run("entries", func(t *testing.T) { testEntries(t, open(t)) })
	t.Run("transactions", func(t *testing.T) { testTransactions(t, open(t)) })
	t.Run("matches", func(t *testing.T) { testMatches(t, open(t)) })
	t.Run("combined matches", func(t *testing.T) { testCombinedMatch(t, open(t)) })
	t.Run("confirmed match unique per entry", func(t *testing.T) { testConfirmedUnique(t, open(t)) })
	t.Run("discrepancies", func(t *testing.T) { testDiscrepancies(t, open(t)) })
	t.Run("rollback", func(t *testing.T) { testRollback(t, open(t)) })
}

var now = time.Date(2024, 7, 10, 9, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedAccount(t *testing.T, s store.Store) model.BankAccount {
	t.Helper()
	a := model.BankAccount{
		Name: "Operating", BankName: "Chase", AccountNumber: "****7890",
		Balance: dec("1500.25"), Active: true, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.CreateAccount(context.Background(), &a)
	}))
	require.NotZero(t, a.ID)
	return a
}

func testAccounts(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := seedAccount(t, s)

	got, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Operating", got.Name)
	assert.True(t, got.Balance.Equal(dec("1500.25")))
	assert.True(t, got.Active)
	assert.True(t, got.CreatedAt.Equal(now))

	got.Active = false
	got.Balance = dec("-20.10")
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error { return tx.UpdateAccount(ctx, got) }))

	list, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Active)
	assert.True(t, list[0].Balance.Equal(dec("-20.10")))

	_, err = s.GetAccount(ctx, 999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	err = s.WithTx(ctx, func(tx store.Tx) error { return tx.UpdateAccount(ctx, model.BankAccount{ID: 999}) })
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func testEntries(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := seedAccount(t, s)
	bal := dec("900.00")

	entries := []model.StatementEntry{
		{AccountID: a.ID, Amount: dec("500.00"), Date: model.NewDate(2024, 7, 2), Reference: "1001", Description: "CHECK 1001", ImportedAt: now, ImportedBy: "alice", RunningBalance: &bal},
		{AccountID: a.ID, Amount: dec("-25.00"), Date: model.NewDate(2024, 7, 1), Category: "FEE", ImportedAt: now, ImportedBy: "alice"},
		{AccountID: a.ID, Amount: dec("500.00"), Date: model.NewDate(2024, 7, 2), Reference: "1002", ImportedAt: now, ImportedBy: "alice"},
	}
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		for i := range entries {
			if err := tx.CreateEntry(ctx, &entries[i]); err != nil {
				return err
			}
		}
		return nil
	}))

	list, err := s.ListEntries(ctx, store.EntryFilter{AccountID: a.ID})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, entries[1].ID, list[0].ID, "ordered by date first")
	assert.Equal(t, entries[0].ID, list[1].ID)

	amt := dec("500")
	ref := "1002"
	dup, err := s.ListEntries(ctx, store.EntryFilter{AccountID: a.ID, Amount: &amt, Reference: &ref, From: model.NewDate(2024, 7, 2), To: model.NewDate(2024, 7, 2)})
	require.NoError(t, err)
	require.Len(t, dup, 1)
	assert.Equal(t, entries[2].ID, dup[0].ID)

	got, err := s.GetEntry(ctx, entries[0].ID)
	require.NoError(t, err)
	require.NotNil(t, got.RunningBalance)
	assert.True(t, got.RunningBalance.Equal(bal))
	assert.Equal(t, model.NewDate(2024, 7, 2), got.Date)
	assert.False(t, got.Matched)
	assert.Nil(t, got.MatchedAt)

	matchedAt := now.Add(time.Hour)
	got.Matched, got.MatchedAt, got.MatchedBy = true, &matchedAt, "bob"
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error { return tx.UpdateEntry(ctx, got) }))

	unmatched, err := s.ListEntries(ctx, store.EntryFilter{AccountID: a.ID, Matched: store.Bool(false)})
	require.NoError(t, err)
	assert.Len(t, unmatched, 2)

	got, err = s.GetEntry(ctx, entries[0].ID)
	require.NoError(t, err)
	assert.True(t, got.Matched)
	require.NotNil(t, got.MatchedAt)
	assert.True(t, got.MatchedAt.Equal(matchedAt))
	assert.Equal(t, "bob", got.MatchedBy)
}

func testTransactions(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := seedAccount(t, s)

	txns := []model.InternalTransaction{
		{AccountID: a.ID, Amount: dec("-700.00"), Date: model.NewDate(2024, 7, 3), Type: model.TransactionCheck, Reference: "2001", CreatedAt: now},
		{AccountID: a.ID, Amount: dec("1200.00"), Date: model.NewDate(2024, 7, 1), Type: model.TransactionDeposit, CreatedAt: now},
	}
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		for i := range txns {
			if err := tx.CreateTransaction(ctx, &txns[i]); err != nil {
				return err
			}
		}
		return nil
	}))

	checks, err := s.ListTransactions(ctx, store.TransactionFilter{AccountID: a.ID, Type: model.TransactionCheck, Reconciled: store.Bool(false)})
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.True(t, checks[0].Amount.Equal(dec("-700")))

	all, err := s.ListTransactions(ctx, store.TransactionFilter{To: model.NewDate(2024, 7, 2)})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, txns[1].ID, all[0].ID)

	_, err = s.GetTransaction(ctx, 424242)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func seedPair(t *testing.T, s store.Store) (model.BankAccount, model.StatementEntry, []model.InternalTransaction) {
	t.Helper()
	ctx := context.Background()
	a := seedAccount(t, s)
	e := model.StatementEntry{AccountID: a.ID, Amount: dec("1200.00"), Date: model.NewDate(2024, 7, 1), ImportedAt: now, ImportedBy: "alice"}
	txns := []model.InternalTransaction{
		{AccountID: a.ID, Amount: dec("700.00"), Date: model.NewDate(2024, 7, 1), Type: model.TransactionDeposit, CreatedAt: now},
		{AccountID: a.ID, Amount: dec("500.00"), Date: model.NewDate(2024, 7, 1), Type: model.TransactionDeposit, CreatedAt: now},
	}
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateEntry(ctx, &e); err != nil {
			return err
		}
		for i := range txns {
			if err := tx.CreateTransaction(ctx, &txns[i]); err != nil {
				return err
			}
		}
		return nil
	}))
	return a, e, txns
}

func testMatches(t *testing.T, s store.Store) {
	ctx := context.Background()
	a, e, txns := seedPair(t, s)

	m := model.Match{
		AccountID: a.ID, StatementEntryID: e.ID,
		TransactionIDs: []int64{txns[1].ID, txns[0].ID},
		Type:           model.MatchSplit, Confidence: dec("0.4"), Automatic: true,
		CreatedAt: now, CreatedBy: "system",
	}
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error { return tx.CreateMatch(ctx, &m) }))

	got, err := s.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{txns[1].ID, txns[0].ID}, got.TransactionIDs, "transaction order preserved")
	assert.Empty(t, got.GroupedEntryIDs)
	assert.True(t, got.Confidence.Equal(dec("0.4")))
	assert.Equal(t, model.MatchSplit, got.Type)
	assert.True(t, got.Automatic)

	byTxn, err := s.ListMatches(ctx, store.MatchFilter{TransactionID: txns[0].ID, Confirmed: store.Bool(false)})
	require.NoError(t, err)
	require.Len(t, byTxn, 1)

	confirmedAt := now.Add(time.Minute)
	got.Confirmed, got.ConfirmedAt, got.ConfirmedBy = true, &confirmedAt, "bob"
	got.Notes = "checked"
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error { return tx.UpdateMatch(ctx, got) }))

	confirmed, err := s.ListMatches(ctx, store.MatchFilter{AccountID: a.ID, Confirmed: store.Bool(true)})
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, "checked", confirmed[0].Notes)
	require.NotNil(t, confirmed[0].ConfirmedAt)
	assert.True(t, confirmed[0].ConfirmedAt.Equal(confirmedAt))

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error { return tx.DeleteMatch(ctx, m.ID) }))
	_, err = s.GetMatch(ctx, m.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func testCombinedMatch(t *testing.T, s store.Store) {
	ctx := context.Background()
	a, e, txns := seedPair(t, s)
	grouped := []model.StatementEntry{
		{AccountID: a.ID, Amount: dec("-300.00"), Date: model.NewDate(2024, 7, 2), ImportedAt: now},
		{AccountID: a.ID, Amount: dec("-200.00"), Date: model.NewDate(2024, 7, 2), ImportedAt: now},
	}
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		for i := range grouped {
			if err := tx.CreateEntry(ctx, &grouped[i]); err != nil {
				return err
			}
		}
		return nil
	}))

	m := model.Match{
		AccountID: a.ID, StatementEntryID: e.ID,
		GroupedEntryIDs: []int64{grouped[1].ID, grouped[0].ID},
		TransactionIDs:  []int64{txns[0].ID},
		Type:            model.MatchCombined, Confidence: dec("0.4"), Automatic: true,
		CreatedAt: now, CreatedBy: "system",
	}
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error { return tx.CreateMatch(ctx, &m) }))

	got, err := s.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MatchCombined, got.Type)
	assert.Equal(t, []int64{grouped[1].ID, grouped[0].ID}, got.GroupedEntryIDs, "grouped order preserved")
	assert.Equal(t, []int64{txns[0].ID}, got.TransactionIDs)

	byGrouped, err := s.ListMatches(ctx, store.MatchFilter{EntryID: grouped[0].ID})
	require.NoError(t, err)
	require.Len(t, byGrouped, 1)
	assert.Equal(t, m.ID, byGrouped[0].ID)
	assert.Equal(t, got.GroupedEntryIDs, byGrouped[0].GroupedEntryIDs)

	confirmedAt := now.Add(time.Hour)
	got.Confirmed, got.ConfirmedAt, got.ConfirmedBy = true, &confirmedAt, "carol"
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error { return tx.UpdateMatch(ctx, got) }))

	after, err := s.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, after.Confirmed)
	assert.Equal(t, []int64{grouped[1].ID, grouped[0].ID}, after.GroupedEntryIDs)

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error { return tx.DeleteMatch(ctx, m.ID) }))
	gone, err := s.ListMatches(ctx, store.MatchFilter{EntryID: grouped[1].ID})
	require.NoError(t, err)
	assert.Empty(t, gone)
}

func testConfirmedUnique(t *testing.T, s store.Store) {
	ctx := context.Background()
	a, e, txns := seedPair(t, s)

	first := model.Match{AccountID: a.ID, StatementEntryID: e.ID, TransactionIDs: []int64{txns[0].ID}, Type: model.MatchManual, Confidence: dec("1"), Confirmed: true, CreatedAt: now}
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error { return tx.CreateMatch(ctx, &first) }))

	second := model.Match{AccountID: a.ID, StatementEntryID: e.ID, TransactionIDs: []int64{txns[1].ID}, Type: model.MatchManual, Confidence: dec("1"), Confirmed: true, CreatedAt: now}
	err := s.WithTx(ctx, func(tx store.Tx) error { return tx.CreateMatch(ctx, &second) })
	assert.ErrorIs(t, err, apperr.ErrConflict)

	candidate := second
	candidate.Confirmed = false
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error { return tx.CreateMatch(ctx, &candidate) }))
}

func testDiscrepancies(t *testing.T, s store.Store) {
	ctx := context.Background()
	a, e, _ := seedPair(t, s)
	entryID := e.ID

	d := model.Discrepancy{
		AccountID: a.ID, StatementEntryID: &entryID, Type: model.DiscrepancyMissingInternal,
		Amount: dec("1200.00"), Description: "no internal record", Status: model.StatusOpen,
		Priority: model.PriorityHigh, IdentifiedAt: now, IdentifiedBy: "system",
	}
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error { return tx.CreateDiscrepancy(ctx, &d) }))

	got, err := s.GetDiscrepancy(ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, got.StatementEntryID)
	assert.Equal(t, e.ID, *got.StatementEntryID)
	assert.Nil(t, got.TransactionID)
	assert.Nil(t, got.AssignedAt)
	assert.Empty(t, got.Notes)

	assigned := now.Add(time.Hour)
	got.Status, got.AssignedTo, got.AssignedAt = model.StatusInProgress, "carol", &assigned
	got.Notes = append(got.Notes, model.Note{At: assigned, Author: "carol", Text: "called bank"})
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error { return tx.UpdateDiscrepancy(ctx, got) }))

	open, err := s.ListDiscrepancies(ctx, store.DiscrepancyFilter{AccountID: a.ID, Statuses: store.OpenStatuses, EntryID: e.ID})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, model.StatusInProgress, open[0].Status)
	assert.Equal(t, "carol", open[0].AssignedTo)
	require.Len(t, open[0].Notes, 1)
	assert.Equal(t, "called bank", open[0].Notes[0].Text)

	closed, err := s.ListDiscrepancies(ctx, store.DiscrepancyFilter{Statuses: []model.DiscrepancyStatus{model.StatusClosed}})
	require.NoError(t, err)
	assert.Empty(t, closed)
}

func testRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := seedAccount(t, s)
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx store.Tx) error {
		e := model.StatementEntry{AccountID: a.ID, Amount: dec("10"), Date: model.NewDate(2024, 7, 1), ImportedAt: now}
		if err := tx.CreateEntry(ctx, &e); err != nil {
			return err
		}
		inTx, err := tx.ListEntries(ctx, store.EntryFilter{AccountID: a.ID})
		if err != nil {
			return err
		}
		assert.Len(t, inTx, 1, "tx observes its own writes")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	list, err := s.ListEntries(ctx, store.EntryFilter{AccountID: a.ID})
	require.NoError(t, err)
	assert.Empty(t, list)
}
