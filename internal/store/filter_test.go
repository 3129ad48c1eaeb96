package store

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/cleared-dev/bankrec/internal/model"
)

func TestEntryFilter(t *testing.T) {
	e := model.StatementEntry{
		AccountID: 1,
		Amount:    decimal.RequireFromString("500.00"),
		Date:      model.NewDate(2024, 7, 2),
		Reference: "1001",
	}
	amt := decimal.NewFromInt(500)
	ref := "1001"
	other := "1002"

	assert.True(t, EntryFilter{}.Match(e))
	assert.True(t, EntryFilter{AccountID: 1, Matched: Bool(false), Amount: &amt, Reference: &ref}.Match(e))
	assert.False(t, EntryFilter{AccountID: 2}.Match(e))
	assert.False(t, EntryFilter{Matched: Bool(true)}.Match(e))
	assert.False(t, EntryFilter{Reference: &other}.Match(e))
	assert.False(t, EntryFilter{From: model.NewDate(2024, 7, 3)}.Match(e))
	assert.True(t, EntryFilter{From: model.NewDate(2024, 7, 2), To: model.NewDate(2024, 7, 2)}.Match(e))
}

func TestMatchFilterGroupedEntries(t *testing.T) {
	m := model.Match{AccountID: 1, StatementEntryID: 3, GroupedEntryIDs: []int64{4}, TransactionIDs: []int64{8}}
	assert.True(t, MatchFilter{EntryID: 4}.Match(m))
	assert.True(t, MatchFilter{TransactionID: 8, Confirmed: Bool(false)}.Match(m))
	assert.False(t, MatchFilter{EntryID: 5}.Match(m))
}

func TestDiscrepancyFilter(t *testing.T) {
	entryID := int64(3)
	d := model.Discrepancy{AccountID: 1, StatementEntryID: &entryID, Status: model.StatusInProgress, Type: model.DiscrepancyMissingInternal}

	assert.True(t, DiscrepancyFilter{Statuses: OpenStatuses, EntryID: 3}.Match(d))
	assert.False(t, DiscrepancyFilter{Statuses: []model.DiscrepancyStatus{model.StatusClosed}}.Match(d))
	assert.False(t, DiscrepancyFilter{TransactionID: 3}.Match(d))
	assert.False(t, DiscrepancyFilter{Type: model.DiscrepancyDuplicate}.Match(d))
}
