package matching

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankrec/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(s string) model.Date {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func entry(id int64, amount, day, ref string) model.StatementEntry {
	return model.StatementEntry{ID: id, AccountID: 1, Amount: dec(amount), Date: date(day), Reference: ref}
}

func txn(id int64, amount, day, ref string) model.InternalTransaction {
	return model.InternalTransaction{ID: id, AccountID: 1, Amount: dec(amount), Date: date(day), Reference: ref}
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func TestConfidence(t *testing.T) {
	o := DefaultOptions()
	tests := []struct {
		typ  model.MatchType
		days int
		want string
	}{
		{model.MatchExact, 0, "1"},
		{model.MatchAmountDate, 1, "0.80"},
		{model.MatchAmountRef, 2, "0.65"},
		{model.MatchSplit, 0, "0.4"},
		{model.MatchPossible, 1, "0.15"},
		{model.MatchPossible, 5, "0.05"},
		{model.MatchAmount, 30, "0.05"},
		{model.MatchManual, 10, "1"},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assertDec(t, tt.want, o.Confidence(tt.typ, tt.days))
		})
	}
}

func TestSingleTiers(t *testing.T) {
	o := DefaultOptions()
	e := entry(1, "500.00", "2024-07-02", "1001")
	tests := []struct {
		name string
		t    model.InternalTransaction
		typ  model.MatchType
		conf string
	}{
		{"same day and reference", txn(10, "500", "2024-07-02", "1001"), model.MatchExact, "1"},
		{"posting lag with reference", txn(10, "500", "2024-07-01", "1001"), model.MatchAmountDate, "0.80"},
		{"same day without reference", txn(10, "500", "2024-07-02", ""), model.MatchAmountDate, "0.85"},
		{"reference two days apart", txn(10, "500", "2024-07-04", " 1001 "), model.MatchAmountRef, "0.65"},
		{"amount only", txn(10, "500", "2024-06-29", "9999"), model.MatchAmount, "0.35"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := o.Candidates(e, []model.InternalTransaction{tt.t}, nil)
			require.Len(t, got, 1)
			assert.Equal(t, tt.typ, got[0].Type)
			assertDec(t, tt.conf, got[0].Confidence)
			assert.Equal(t, []int64{10}, got[0].TransactionIDs)
		})
	}
}

func TestCandidatesOutsideWindow(t *testing.T) {
	o := DefaultOptions()
	got := o.Candidates(entry(1, "500", "2024-07-10", ""), []model.InternalTransaction{
		txn(10, "500", "2024-07-01", ""),
	}, nil)
	assert.Empty(t, got)
}

func TestCandidatesSignMatters(t *testing.T) {
	o := DefaultOptions()
	got := o.Candidates(entry(1, "-500", "2024-07-01", ""), []model.InternalTransaction{
		txn(10, "500", "2024-07-01", ""),
	}, nil)
	assert.Empty(t, got)
}

func TestCandidatesTieBreaks(t *testing.T) {
	o := DefaultOptions()
	e := entry(1, "250", "2024-07-05", "")
	got := o.Candidates(e, []model.InternalTransaction{
		txn(12, "250", "2024-07-05", ""),
		txn(11, "250", "2024-07-06", ""),
		txn(13, "250", "2024-07-05", ""),
	}, nil)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{12}, got[0].TransactionIDs)
	assert.Equal(t, []int64{13}, got[1].TransactionIDs)
	assert.Equal(t, []int64{11}, got[2].TransactionIDs)
}

func TestCandidatesSplit(t *testing.T) {
	o := DefaultOptions()
	e := entry(1, "1200.00", "2024-07-05", "")
	got := o.Candidates(e, []model.InternalTransaction{
		txn(21, "500.00", "2024-07-05", ""),
		txn(20, "700.00", "2024-07-05", ""),
		txn(22, "300.00", "2024-07-05", ""),
	}, nil)
	require.Len(t, got, 1)
	assert.Equal(t, model.MatchSplit, got[0].Type)
	assert.Equal(t, []int64{20, 21}, got[0].TransactionIDs)
	assertDec(t, "0.4", got[0].Confidence)
}

func TestCandidatesSplitLosesToSingle(t *testing.T) {
	o := DefaultOptions()
	e := entry(1, "1200", "2024-07-05", "")
	got := o.Candidates(e, []model.InternalTransaction{
		txn(20, "700", "2024-07-05", ""),
		txn(21, "500", "2024-07-05", ""),
		txn(22, "1200", "2024-07-08", ""),
	}, nil)
	require.Len(t, got, 1)
	assert.Equal(t, model.MatchAmount, got[0].Type)
	assert.Equal(t, []int64{22}, got[0].TransactionIDs)
}

func TestCandidatesSplitRespectsMaxSize(t *testing.T) {
	o := DefaultOptions()
	o.MaxCombination = 2
	e := entry(1, "600", "2024-07-05", "")
	got := o.Candidates(e, []model.InternalTransaction{
		txn(1, "200", "2024-07-05", ""),
		txn(2, "200", "2024-07-05", ""),
		txn(3, "200", "2024-07-05", ""),
	}, nil)
	assert.Empty(t, got)
}

func TestCandidatesCombined(t *testing.T) {
	o := DefaultOptions()
	e := entry(1, "700", "2024-07-05", "")
	others := []model.StatementEntry{
		entry(2, "500", "2024-07-06", ""),
		entry(3, "90", "2024-07-06", ""),
	}
	got := o.Candidates(e, []model.InternalTransaction{txn(30, "1200", "2024-07-05", "")}, others)
	require.Len(t, got, 1)
	assert.Equal(t, model.MatchCombined, got[0].Type)
	assert.Equal(t, []int64{2}, got[0].GroupedEntryIDs)
	assert.Equal(t, []int64{30}, got[0].TransactionIDs)
	assert.Equal(t, 1, got[0].DaysApart)
	assertDec(t, "0.35", got[0].Confidence)

	m := got[0].Match(7)
	assert.Equal(t, []int64{1, 2}, m.EntryIDs())
	assert.Equal(t, int64(7), m.AccountID)
}

func TestCandidatesPossible(t *testing.T) {
	o := DefaultOptions()
	e := entry(1, "100.00", "2024-07-05", "")
	got := o.Candidates(e, []model.InternalTransaction{
		txn(40, "100.03", "2024-07-05", ""),
		txn(41, "100.50", "2024-07-05", ""),
	}, nil)
	require.Len(t, got, 1)
	assert.Equal(t, model.MatchPossible, got[0].Type)
	assertDec(t, "-0.03", got[0].AmountDifference)
	assertDec(t, "0.2", got[0].Confidence)
}

func TestCandidatesIgnoreOtherAccountsAndReconciled(t *testing.T) {
	o := DefaultOptions()
	other := txn(50, "500", "2024-07-05", "")
	other.AccountID = 2
	done := txn(51, "500", "2024-07-05", "")
	done.Reconciled = true
	got := o.Candidates(entry(1, "500", "2024-07-05", ""), []model.InternalTransaction{other, done}, nil)
	assert.Empty(t, got)
}

func TestSubsetsSumming(t *testing.T) {
	amounts := []decimal.Decimal{dec("1"), dec("2"), dec("3"), dec("4")}
	got := subsetsSumming(amounts, dec("5"), 2, 3)
	assert.Equal(t, [][]int{{0, 3}, {1, 2}}, got)

	assert.Empty(t, subsetsSumming(amounts, dec("100"), 2, 4))
	assert.Empty(t, subsetsSumming(amounts, dec("1"), 2, 1))
}

func TestNearestKeepsClosestInIDOrder(t *testing.T) {
	var items []model.InternalTransaction
	for i := 0; i < maxCombinationPool+5; i++ {
		day := "2024-07-01"
		if i < 5 {
			day = "2024-07-04"
		}
		items = append(items, txn(int64(i+1), "1", day, ""))
	}
	got := nearest(items, date("2024-07-01"), func(t model.InternalTransaction) model.Date { return t.Date })
	require.Len(t, got, maxCombinationPool)
	assert.Equal(t, int64(6), got[0].ID)
	assert.Equal(t, int64(maxCombinationPool+5), got[len(got)-1].ID)
}
