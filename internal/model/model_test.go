package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate(t *testing.T) {
	d, err := ParseDate("2024-07-01")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2024, time.July, 1), d)
	assert.Equal(t, "2024-07-01", d.String())

	assert.Equal(t, 1, DaysApart(d, d.AddDays(1)))
	assert.Equal(t, 3, DaysApart(d.AddDays(3), d))
	assert.Equal(t, 31, DaysApart(NewDate(2024, 3, 1), NewDate(2024, 4, 1)))
	assert.Equal(t, NewDate(2024, 7, 1), NewDate(2024, 7, 19).FirstOfMonth())

	assert.True(t, d.Within(NewDate(2024, 7, 1), NewDate(2024, 7, 31)))
	assert.True(t, d.Within(Date{}, Date{}))
	assert.False(t, d.Within(NewDate(2024, 7, 2), Date{}))

	_, err = ParseDate("07/01/2024")
	assert.Error(t, err)
}

func TestDateJSON(t *testing.T) {
	type wrapper struct {
		On Date `json:"on"`
	}
	data, err := json.Marshal(wrapper{On: NewDate(2024, 7, 2)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"on":"2024-07-02"}`, string(data))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"on":"2024-12-31"}`), &w))
	assert.Equal(t, NewDate(2024, 12, 31), w.On)
	assert.Error(t, json.Unmarshal([]byte(`{"on":"yesterday"}`), &w))
}

func TestDateScan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan("2024-07-01"))
	assert.Equal(t, NewDate(2024, 7, 1), d)
	require.NoError(t, d.Scan(time.Date(2024, 7, 3, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, NewDate(2024, 7, 3), d)
	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())
	assert.Error(t, d.Scan(42))
}

func TestMaskAccountNumber(t *testing.T) {
	assert.Equal(t, "****7890", MaskAccountNumber("12-3456-7890"))
	assert.Equal(t, "****123", MaskAccountNumber("123"))
	assert.Equal(t, "****7890", MaskAccountNumber("****7890"))
}

func TestParseTransactionType(t *testing.T) {
	tt, ok := ParseTransactionType(" check ")
	assert.True(t, ok)
	assert.Equal(t, TransactionCheck, tt)
	_, ok = ParseTransactionType("wire")
	assert.False(t, ok)
}

func TestMatchTypeBaseConfidence(t *testing.T) {
	assert.Equal(t, "1", MatchExact.BaseConfidence().String())
	assert.Equal(t, "0.85", MatchAmountDate.BaseConfidence().String())
	assert.Equal(t, "0.4", MatchCombined.BaseConfidence().String())
	assert.False(t, MatchType("FUZZY").Valid())
}

func TestMatchEntryIDs(t *testing.T) {
	m := Match{StatementEntryID: 3, GroupedEntryIDs: []int64{5, 6}, TransactionIDs: []int64{9}}
	assert.Equal(t, []int64{3, 5, 6}, m.EntryIDs())
	assert.True(t, m.References([]int64{6}, nil))
	assert.True(t, m.References(nil, []int64{9}))
	assert.False(t, m.References([]int64{4}, []int64{8}))
}

func TestDiscrepancyTransitions(t *testing.T) {
	tests := []struct {
		from, to DiscrepancyStatus
		ok       bool
	}{
		{StatusOpen, StatusInProgress, true},
		{StatusOpen, StatusResolved, false},
		{StatusOpen, StatusClosed, false},
		{StatusInProgress, StatusInProgress, true},
		{StatusInProgress, StatusResolved, true},
		{StatusResolved, StatusClosed, true},
		{StatusResolved, StatusOpen, false},
		{StatusResolved, StatusInProgress, true},
		{StatusClosed, StatusInProgress, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to))
		})
	}
}
