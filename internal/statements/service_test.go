package statements

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/importer"
	"github.com/cleared-dev/bankrec/internal/ledger"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store/memory"
)

var fixedNow = time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(s string) model.Date {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fixture struct {
	svc     *Service
	ledger  *ledger.Service
	account model.BankAccount
}

func setup(t *testing.T) fixture {
	t.Helper()
	st := memory.New()
	led := ledger.NewService(st)
	acct, err := led.Create(context.Background(), ledger.CreateParams{Name: "Operating", BankName: "Chase", AccountNumber: "1234"})
	require.NoError(t, err)

	svc := NewService(st, importer.DefaultRegistry(), 3)
	svc.Now = func() time.Time { return fixedNow }
	return fixture{svc: svc, ledger: led, account: acct}
}

func line(amount, day, ref string) model.StatementLine {
	return model.StatementLine{Amount: dec(amount), Date: date(day), Reference: ref, Description: "line " + ref}
}

func TestImport(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	e, err := f.svc.Import(ctx, EntryInput{AccountID: f.account.ID, StatementLine: model.StatementLine{
		Amount: dec("500.00"), Date: date("2024-07-02"), Reference: "1001",
		Description: "<i>CHECK</i> 1001", Category: "CHECK",
	}}, "alice")
	require.NoError(t, err)
	assert.NotZero(t, e.ID)
	assert.Equal(t, "CHECK 1001", e.Description)
	assert.Equal(t, "alice", e.ImportedBy)
	assert.Equal(t, fixedNow, e.ImportedAt)
	assert.False(t, e.Matched)
	assert.Empty(t, e.ImportBatch)
}

func TestImportValidation(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Import(context.Background(), EntryInput{StatementLine: model.StatementLine{
		Reference: strings.Repeat("x", 101),
	}}, "")
	require.ErrorIs(t, err, apperr.ErrValidation)

	var names []string
	for _, fe := range apperr.Fields(err) {
		names = append(names, fe.Field)
	}
	assert.Equal(t, []string{"bankAccountId", "amount", "transactionDate", "referenceNumber"}, names)
}

func TestImportNegativeAmountAllowed(t *testing.T) {
	f := setup(t)
	e, err := f.svc.Import(context.Background(), EntryInput{AccountID: f.account.ID, StatementLine: line("-25.00", "2024-07-03", "")}, "")
	require.NoError(t, err)
	assert.Equal(t, SystemActor, e.ImportedBy)
	assert.True(t, e.Amount.IsNegative())
}

func TestImportDuplicateConflict(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	in := EntryInput{AccountID: f.account.ID, StatementLine: line("500.00", "2024-07-02", "1001")}

	_, err := f.svc.Import(ctx, in, "alice")
	require.NoError(t, err)

	in.Amount = dec("500")
	_, err = f.svc.Import(ctx, in, "alice")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	in.Reference = "1002"
	_, err = f.svc.Import(ctx, in, "alice")
	assert.NoError(t, err, "different reference is not a duplicate")
}

func TestImportInactiveAccount(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.ledger.Deactivate(ctx, f.account.ID)
	require.NoError(t, err)

	_, err = f.svc.Import(ctx, EntryInput{AccountID: f.account.ID, StatementLine: line("1", "2024-07-01", "")}, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.Import(ctx, EntryInput{AccountID: 999, StatementLine: line("1", "2024-07-01", "")}, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestImportBatchPerLineResults(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.svc.ImportBatch(ctx, []EntryInput{
		{AccountID: f.account.ID, StatementLine: line("100.00", "2024-07-01", "A")},
		{AccountID: f.account.ID, StatementLine: line("0", "2024-07-01", "B")},
		{AccountID: f.account.ID, StatementLine: line("100.00", "2024-07-01", "A")},
		{AccountID: 999, StatementLine: line("5", "2024-07-01", "C")},
		{AccountID: f.account.ID, StatementLine: line("200.00", "2024-07-02", "D")},
	}, "bob")
	require.NoError(t, err)

	assert.NotEmpty(t, res.Batch)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 3, res.Failed)
	require.Len(t, res.Results, 5)

	assert.True(t, res.Results[0].OK())
	assert.Equal(t, res.Batch, res.Results[0].Entry.ImportBatch)
	assert.Equal(t, "validation", res.Results[1].Kind)
	assert.Equal(t, "amount", res.Results[1].Fields[0].Field)
	assert.Equal(t, "conflict", res.Results[2].Kind)
	assert.Equal(t, "not_found", res.Results[3].Kind)
	assert.Equal(t, 5, res.Results[4].Line)
	assert.True(t, res.Results[4].OK())

	all, err := f.svc.List(ctx, f.account.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestImportCSV(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	csv := "date,amount,description,reference\n" +
		"2024-07-02,500.00,CHECK 1001,1001\n" +
		"2024-07-02,abc,broken,\n" +
		"2024-07-03,-25.00,fee,\n"

	res, err := f.svc.ImportCSV(ctx, f.account.ID, "generic", strings.NewReader(csv), "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Imported)
	require.Len(t, res.Results, 3)
	assert.Equal(t, 3, res.Results[1].Line)
	assert.Contains(t, res.Results[1].Error, "parsing amount")

	_, err = f.svc.ImportCSV(ctx, f.account.ID, "ofx", strings.NewReader(csv), "alice")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.ImportCSV(ctx, f.account.ID, "generic", strings.NewReader("date\n2024-01-01\n"), "alice")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestQueries(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	for _, in := range []model.StatementLine{
		line("500.00", "2024-07-02", "1001"),
		line("500.00", "2024-07-09", "1002"),
		line("75.00", "2024-07-03", "1003"),
	} {
		_, err := f.svc.Import(ctx, EntryInput{AccountID: f.account.ID, StatementLine: in}, "alice")
		require.NoError(t, err)
	}

	unmatched, err := f.svc.Unmatched(ctx, f.account.ID)
	require.NoError(t, err)
	assert.Len(t, unmatched, 3)

	ranged, err := f.svc.DateRange(ctx, f.account.ID, date("2024-07-02"), date("2024-07-03"))
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	assert.Equal(t, "1001", ranged[0].Reference)
	assert.Equal(t, "1003", ranged[1].Reference)

	_, err = f.svc.DateRange(ctx, f.account.ID, date("2024-07-03"), date("2024-07-02"))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	potential, err := f.svc.PotentialMatches(ctx, f.account.ID, dec("500"), date("2024-07-01"))
	require.NoError(t, err)
	require.Len(t, potential, 1)
	assert.Equal(t, "1001", potential[0].Reference)

	_, err = f.svc.PotentialMatches(ctx, 999, dec("500"), date("2024-07-01"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	got, err := f.svc.Get(ctx, potential[0].ID)
	require.NoError(t, err)
	assert.Equal(t, potential[0], got)
}
