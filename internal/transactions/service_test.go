package transactions

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/ledger"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store/memory"
)

var fixedNow = time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func setup(t *testing.T) (*Service, *ledger.Service, model.BankAccount) {
	t.Helper()
	st := memory.New()
	led := ledger.NewService(st)
	acct, err := led.Create(context.Background(), ledger.CreateParams{Name: "Operating", BankName: "Chase", AccountNumber: "1234"})
	require.NoError(t, err)
	svc := NewService(st)
	svc.Now = func() time.Time { return fixedNow }
	return svc, led, acct
}

func TestCreate(t *testing.T) {
	svc, _, acct := setup(t)
	ctx := context.Background()

	txn, err := svc.Create(ctx, CreateParams{
		AccountID: acct.ID, Amount: dec("-700.00"), Date: model.NewDate(2024, 7, 1),
		Description: "Vendor <script>x</script>payment", Reference: "2001", Type: "vendor_payment",
	})
	require.NoError(t, err)
	assert.NotZero(t, txn.ID)
	assert.Equal(t, model.TransactionVendorPayment, txn.Type)
	assert.Equal(t, "Vendor payment", txn.Description)
	assert.False(t, txn.Reconciled)
	assert.Equal(t, fixedNow, txn.CreatedAt)

	other, err := svc.Create(ctx, CreateParams{AccountID: acct.ID, Amount: dec("5"), Date: model.NewDate(2024, 7, 2)})
	require.NoError(t, err)
	assert.Equal(t, model.TransactionOther, other.Type)

	got, err := svc.Get(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, txn, got)
}

func TestCreateValidation(t *testing.T) {
	svc, _, acct := setup(t)
	_, err := svc.Create(context.Background(), CreateParams{AccountID: acct.ID, Type: "wire"})
	require.ErrorIs(t, err, apperr.ErrValidation)

	var names []string
	for _, f := range apperr.Fields(err) {
		names = append(names, f.Field)
	}
	assert.Equal(t, []string{"amount", "transactionDate", "transactionType"}, names)
}

func TestCreateInactiveAccount(t *testing.T) {
	svc, led, acct := setup(t)
	ctx := context.Background()
	_, err := led.Deactivate(ctx, acct.ID)
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateParams{AccountID: acct.ID, Amount: dec("1"), Date: model.NewDate(2024, 7, 1)})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUnreconciled(t *testing.T) {
	svc, led, acct := setup(t)
	ctx := context.Background()
	second, err := led.Create(ctx, ledger.CreateParams{Name: "Payroll", BankName: "Chase", AccountNumber: "9"})
	require.NoError(t, err)

	for _, id := range []int64{acct.ID, acct.ID, second.ID} {
		_, err := svc.Create(ctx, CreateParams{AccountID: id, Amount: dec("10"), Date: model.NewDate(2024, 7, 1)})
		require.NoError(t, err)
	}

	mine, err := svc.Unreconciled(ctx, acct.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	all, err := svc.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
