package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/store/memory"
)

var fixedNow = time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService() *Service {
	svc := NewService(memory.New())
	svc.Now = func() time.Time { return fixedNow }
	return svc
}

func TestCreate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateParams{Name: "Operating", BankName: "Chase", AccountNumber: "000123456789"})
	require.NoError(t, err)
	assert.NotZero(t, a.ID)
	assert.Equal(t, "****6789", a.AccountNumber)
	assert.True(t, a.Balance.IsZero())
	assert.True(t, a.Active)
	assert.Equal(t, fixedNow, a.CreatedAt)

	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService()
	_, err := svc.Create(context.Background(), CreateParams{Name: " ", BankName: "<b></b>"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	fields := apperr.Fields(err)
	require.Len(t, fields, 3)
	assert.Equal(t, "name", fields[0].Field)
	assert.Equal(t, "bankName", fields[1].Field)
	assert.Equal(t, "accountNumber", fields[2].Field)
}

func TestUpdateBalanceReplaces(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	a, err := svc.Create(ctx, CreateParams{Name: "Operating", BankName: "Chase", AccountNumber: "1234", InitialBalance: dec("100.00")})
	require.NoError(t, err)

	updated, err := svc.UpdateBalance(ctx, a.ID, dec("42.50"))
	require.NoError(t, err)
	assert.True(t, updated.Balance.Equal(dec("42.50")))

	_, err = svc.UpdateBalance(ctx, 999, dec("1"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateDetails(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	a, err := svc.Create(ctx, CreateParams{Name: "Operating", BankName: "Chase", AccountNumber: "1234"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, a.ID, UpdateParams{Name: "Payroll", BankName: "Wells Fargo"})
	require.NoError(t, err)
	assert.Equal(t, "Payroll", updated.Name)
	assert.Equal(t, "****1234", updated.AccountNumber)

	_, err = svc.Update(ctx, a.ID, UpdateParams{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDeactivateAndRequireActive(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	a, err := svc.Create(ctx, CreateParams{Name: "Operating", BankName: "Chase", AccountNumber: "1234"})
	require.NoError(t, err)

	_, err = RequireActive(ctx, svc.store, a.ID, "bankAccountId")
	require.NoError(t, err)

	off, err := svc.Deactivate(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, off.Active)

	_, err = RequireActive(ctx, svc.store, a.ID, "bankAccountId")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = RequireActive(ctx, svc.store, 0, "bankAccountId")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = RequireActive(ctx, svc.store, 77, "bankAccountId")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	all, err := svc.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	active, err := svc.List(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestSearchAndMinBalance(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	for _, p := range []CreateParams{
		{Name: "Operating Checking", BankName: "Chase", AccountNumber: "1111", InitialBalance: dec("5000")},
		{Name: "Payroll", BankName: "Chase", AccountNumber: "2222", InitialBalance: dec("250")},
		{Name: "Tax Reserve CHECKING", BankName: "Ally", AccountNumber: "3333", InitialBalance: dec("-10")},
	} {
		_, err := svc.Create(ctx, p)
		require.NoError(t, err)
	}

	found, err := svc.Search(ctx, "checking")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Operating Checking", found[0].Name)

	rich, err := svc.MinBalance(ctx, dec("250"))
	require.NoError(t, err)
	assert.Len(t, rich, 2)
}

func TestLocksSerializePerAccount(t *testing.T) {
	locks := NewLocks()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		running int
		maxSeen int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(1)
			defer unlock()

			mu.Lock()
			running++
			if running > maxSeen {
				maxSeen = running
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			running--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)

	// Different accounts do not block each other.
	unlockA := locks.Lock(1)
	unlockB := locks.Lock(2)
	unlockB()
	unlockA()
}
