package report

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/config"
	"github.com/cleared-dev/bankrec/internal/discrepancy"
	"github.com/cleared-dev/bankrec/internal/events"
	"github.com/cleared-dev/bankrec/internal/importer"
	"github.com/cleared-dev/bankrec/internal/ledger"
	"github.com/cleared-dev/bankrec/internal/matching"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/statements"
	"github.com/cleared-dev/bankrec/internal/store/memory"
	"github.com/cleared-dev/bankrec/internal/transactions"
)

var fixedNow = time.Date(2024, 7, 20, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(s string) model.Date {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

type fixture struct {
	svc     *Service
	ledger  *ledger.Service
	stmts   *statements.Service
	txns    *transactions.Service
	match   *matching.Service
	disc    *discrepancy.Service
	account model.BankAccount
}

func setup(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	led := ledger.NewService(st)
	acct, err := led.Create(context.Background(), ledger.CreateParams{Name: "Operating", BankName: "Chase", AccountNumber: "4321"})
	require.NoError(t, err)

	locks := ledger.NewLocks()
	pub := &events.Recorder{}
	svc := NewService(st, OptionsFrom(config.Default().Reports))
	svc.Now = func() time.Time { return fixedNow }
	return &fixture{
		svc:     svc,
		ledger:  led,
		stmts:   statements.NewService(st, importer.DefaultRegistry(), 3),
		txns:    transactions.NewService(st),
		match:   matching.NewService(st, locks, pub, matching.DefaultOptions()),
		disc:    discrepancy.NewService(st, locks, pub, discrepancy.DefaultOptions()),
		account: acct,
	}
}

func (f *fixture) entry(t *testing.T, amount, day, ref string) model.StatementEntry {
	t.Helper()
	e, err := f.stmts.Import(context.Background(), statements.EntryInput{
		AccountID:     f.account.ID,
		StatementLine: model.StatementLine{Amount: dec(amount), Date: date(day), Reference: ref, Description: "bank " + ref},
	}, "")
	require.NoError(t, err)
	return e
}

func (f *fixture) txn(t *testing.T, amount, day, typ, ref string) model.InternalTransaction {
	t.Helper()
	tx, err := f.txns.Create(context.Background(), transactions.CreateParams{
		AccountID: f.account.ID, Amount: dec(amount), Date: date(day), Type: typ, Reference: ref, Description: "book " + ref,
	})
	require.NoError(t, err)
	return tx
}

func TestPercentage(t *testing.T) {
	assertDec(t, "0", Percentage(0, 0))
	assertDec(t, "0", Percentage(0, 4))
	assertDec(t, "33.33", Percentage(1, 3))
	assertDec(t, "66.67", Percentage(2, 3))
	assertDec(t, "100", Percentage(3, 3))
	assertDec(t, "100", Percentage(5, 4))
}

func TestDeriveStatus(t *testing.T) {
	assert.Equal(t, StatusComplete, DeriveStatus(dec("100"), 0, 0))
	assert.Equal(t, StatusInProgress, DeriveStatus(dec("100"), 1, 0))
	assert.Equal(t, StatusInProgress, DeriveStatus(dec("99.99"), 0, 0))
	assert.Equal(t, StatusIssues, DeriveStatus(dec("100"), 1, 1))
	assert.Equal(t, StatusIssues, DeriveStatus(dec("0"), 3, 2))
}

func TestSummary(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.txn(t, "500.00", "2024-07-01", "CHECK", "1001")
	f.txn(t, "200.00", "2024-07-03", "DEPOSIT", "")
	f.entry(t, "500.00", "2024-07-02", "1001")
	f.entry(t, "75.00", "2024-07-04", "")
	f.txn(t, "999.00", "2024-08-01", "OTHER", "")

	_, err := f.match.AutoMatch(ctx, f.account.ID, "")
	require.NoError(t, err)

	sum, err := f.svc.Summary(ctx, f.account.ID, date("2024-07-01"), date("2024-07-31"))
	require.NoError(t, err)
	assert.Equal(t, "Operating", sum.AccountName)
	assert.Equal(t, 2, sum.TotalTransactions)
	assert.Equal(t, 2, sum.TotalEntries)
	assert.Equal(t, 1, sum.ReconciledCount)
	assert.Equal(t, 1, sum.MatchedEntries)
	assert.Equal(t, 1, sum.UnmatchedTransactions)
	assert.Equal(t, 1, sum.UnmatchedEntries)
	assertDec(t, "700", sum.InternalTotal)
	assertDec(t, "575", sum.StatementTotal)
	assertDec(t, "500", sum.ReconciledAmount)
	assertDec(t, "200", sum.UnreconciledAmount)
	assertDec(t, "75", sum.UnmatchedEntryAmount)
	assertDec(t, "-125", sum.FinalDifference)
	assertDec(t, "50", sum.Percentage)
	assert.Equal(t, StatusInProgress, sum.Status)
	assert.Equal(t, fixedNow, sum.GeneratedAt)
}

func TestSummaryEmptyAccount(t *testing.T) {
	f := setup(t)
	sum, err := f.svc.Status(context.Background(), f.account.ID)
	require.NoError(t, err)
	assert.Zero(t, sum.TotalTransactions)
	assertDec(t, "0", sum.Percentage)
	assert.Equal(t, StatusInProgress, sum.Status)
}

func TestStatusCompleteAndIssues(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.txn(t, "40.00", "2024-07-01", "OTHER", "X1")
	f.entry(t, "40.00", "2024-07-01", "X1")
	_, err := f.match.AutoMatch(ctx, f.account.ID, "")
	require.NoError(t, err)

	sum, err := f.svc.Status(ctx, f.account.ID)
	require.NoError(t, err)
	assertDec(t, "100", sum.Percentage)
	assert.Equal(t, StatusComplete, sum.Status)

	_, err = f.disc.Create(ctx, discrepancy.CreateParams{
		AccountID: f.account.ID, Type: "OTHER", Amount: dec("12000"), Description: "wire recalled",
	}, "")
	require.NoError(t, err)

	sum, err = f.svc.Status(ctx, f.account.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusIssues, sum.Status)
	assert.Equal(t, 1, sum.OpenDiscrepancies)
	assert.Equal(t, 1, sum.HighPriorityOpen)
	assertDec(t, "12000", sum.OpenDiscrepancyAmount)
}

func TestSummaryErrors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.Summary(ctx, f.account.ID, date("2024-07-31"), date("2024-07-01"))
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.svc.Summary(ctx, 404, model.Date{}, model.Date{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAllAccountsSkipsInactive(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	closed, err := f.ledger.Create(ctx, ledger.CreateParams{Name: "Old", BankName: "Chase", AccountNumber: "1111"})
	require.NoError(t, err)
	_, err = f.ledger.Deactivate(ctx, closed.ID)
	require.NoError(t, err)

	all, err := f.svc.AllAccounts(ctx, model.Date{}, model.Date{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, f.account.ID, all[0].AccountID)
}

func TestOutstandingViews(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	old := f.txn(t, "-300.00", "2024-05-01", "CHECK", "881")
	f.txn(t, "-40.00", "2024-07-01", "CHECK", "882")
	dep := f.txn(t, "900.00", "2024-06-01", "DEPOSIT", "")
	f.txn(t, "-10.00", "2024-05-01", "FEE", "")

	checks, err := f.svc.OutstandingChecks(ctx, f.account.ID, date("2024-07-10"), 30)
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.Equal(t, old.ID, checks[0].TransactionID)
	assert.Equal(t, 70, checks[0].DaysOutstanding)

	deposits, err := f.svc.DepositsInTransit(ctx, f.account.ID, date("2024-07-10"), 0)
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	assert.Equal(t, dep.ID, deposits[0].TransactionID)

	_, err = f.svc.OutstandingChecks(ctx, 404, model.Date{}, 0)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTrend(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.txn(t, "10.00", "2024-06-15", "OTHER", "")
	f.txn(t, "20.00", "2024-07-02", "OTHER", "T1")
	f.entry(t, "20.00", "2024-07-02", "T1")
	_, err := f.match.AutoMatch(ctx, f.account.ID, "")
	require.NoError(t, err)

	points, err := f.svc.Trend(ctx, f.account.ID, 3, date("2024-07-20"))
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, "2024-05", points[0].Period)
	assert.Equal(t, "2024-06", points[1].Period)
	assert.Equal(t, "2024-07", points[2].Period)

	assert.Zero(t, points[0].TotalTransactions)
	assert.Equal(t, 1, points[1].TotalTransactions)
	assertDec(t, "0", points[1].Percentage)
	assert.Equal(t, date("2024-06-30"), points[1].To)
	assertDec(t, "100", points[2].Percentage)

	defaults, err := f.svc.Trend(ctx, f.account.ID, 0, model.Date{})
	require.NoError(t, err)
	assert.Len(t, defaults, config.Default().Reports.TrendMonths)
}

func TestExportRoundTrip(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.txn(t, "500.00", "2024-07-01", "CHECK", "1001")
	f.entry(t, "500.00", "2024-07-01", "1001")
	f.entry(t, "-12.50", "2024-07-03", "fee, monthly")

	run, err := f.match.AutoMatch(ctx, f.account.ID, "")
	require.NoError(t, err)
	require.Len(t, run.Matches, 1)

	rows, err := f.svc.ExportRows(ctx, f.account.ID, date("2024-07-01"), date("2024-07-31"))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, SourceBank, rows[0].Source)
	assert.Equal(t, SourceInternal, rows[1].Source)
	assert.Equal(t, RowMatched, rows[0].Status)
	assert.Equal(t, run.Matches[0].ID, rows[1].MatchID)
	assert.Equal(t, RowUnmatched, rows[2].Status)

	var buf bytes.Buffer
	require.NoError(t, WriteRows(&buf, rows))
	assert.True(t, strings.HasPrefix(buf.String(), Header+"\n"))
	assert.Contains(t, buf.String(), `"fee, monthly"`)

	back, err := ReadRows(&buf)
	require.NoError(t, err)
	require.Len(t, back, 3)
	assert.Equal(t, rows[2].Reference, back[2].Reference)
	assert.True(t, rows[2].Amount.Equal(back[2].Amount))
	assert.Equal(t, model.MatchExact, back[0].MatchType)
}

func TestUnmarshalRowErrors(t *testing.T) {
	_, err := UnmarshalRow([]string{"BANK"})
	assert.Error(t, err)
	_, err = UnmarshalRow([]string{"BANK", "x", "2024-07-01", "1", "", "", "MATCHED", "", ""})
	assert.Error(t, err)
	_, err = UnmarshalRow([]string{"BANK", "1", "07/01/2024", "1", "", "", "MATCHED", "", ""})
	assert.Error(t, err)
}
