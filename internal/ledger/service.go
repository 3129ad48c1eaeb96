// Package ledger holds bank accounts: their recorded balance and whether
// they still accept statement lines and internal transactions.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/logger"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
	"github.com/cleared-dev/bankrec/internal/validation"
)

// Service manages bank accounts.
type Service struct {
	store store.Store
	Now   func() time.Time
}

// NewService creates a ledger Service.
func NewService(s store.Store) *Service {
	return &Service{store: s, Now: time.Now}
}

// CreateParams holds the fields of a new bank account.
type CreateParams struct {
	Name           string          `json:"name"`
	BankName       string          `json:"bankName"`
	AccountNumber  string          `json:"accountNumber"`
	InitialBalance decimal.Decimal `json:"currentBalance"`
}

// Create validates and stores a new active account. The account number is
// masked before it is stored.
func (s *Service) Create(ctx context.Context, p CreateParams) (model.BankAccount, error) {
	p.Name = validation.SanitizeText(p.Name)
	p.BankName = validation.SanitizeText(p.BankName)
	p.AccountNumber = strings.TrimSpace(p.AccountNumber)

	var c validation.Checker
	c.Required("name", p.Name)
	c.Required("bankName", p.BankName)
	c.Required("accountNumber", p.AccountNumber)
	c.MaxLen("name", p.Name, validation.MaxName)
	c.MaxLen("bankName", p.BankName, validation.MaxName)
	if err := c.Err(); err != nil {
		return model.BankAccount{}, err
	}

	now := s.Now().UTC()
	a := model.BankAccount{
		Name:          p.Name,
		BankName:      p.BankName,
		AccountNumber: model.MaskAccountNumber(p.AccountNumber),
		Balance:       p.InitialBalance,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.CreateAccount(ctx, &a)
	})
	if err != nil {
		return model.BankAccount{}, fmt.Errorf("creating bank account: %w", err)
	}
	logger.FromContext(ctx).Info("bank account created", "accountID", a.ID, "bank", a.BankName)
	return a, nil
}

// Get returns an account by ID.
func (s *Service) Get(ctx context.Context, id int64) (model.BankAccount, error) {
	return s.store.GetAccount(ctx, id)
}

// List returns every account, or only active ones.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]model.BankAccount, error) {
	all, err := s.store.ListAccounts(ctx)
	if err != nil || !activeOnly {
		return all, err
	}
	out := []model.BankAccount{}
	for _, a := range all {
		if a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

// UpdateParams holds the editable details of an account.
type UpdateParams struct {
	Name     string `json:"name"`
	BankName string `json:"bankName"`
}

// Update replaces the display details of an account.
func (s *Service) Update(ctx context.Context, id int64, p UpdateParams) (model.BankAccount, error) {
	p.Name = validation.SanitizeText(p.Name)
	p.BankName = validation.SanitizeText(p.BankName)

	var c validation.Checker
	c.Required("name", p.Name)
	c.Required("bankName", p.BankName)
	c.MaxLen("name", p.Name, validation.MaxName)
	c.MaxLen("bankName", p.BankName, validation.MaxName)
	if err := c.Err(); err != nil {
		return model.BankAccount{}, err
	}

	return s.modify(ctx, id, func(a *model.BankAccount) {
		a.Name = p.Name
		a.BankName = p.BankName
	})
}

// UpdateBalance replaces the recorded balance. It does not recompute from
// history; callers own consistency.
func (s *Service) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) (model.BankAccount, error) {
	a, err := s.modify(ctx, id, func(a *model.BankAccount) {
		a.Balance = balance
	})
	if err == nil {
		logger.FromContext(ctx).Info("bank account balance replaced", "accountID", id, "balance", balance.StringFixed(2))
	}
	return a, err
}

// Deactivate soft-deletes an account. Its history is kept.
func (s *Service) Deactivate(ctx context.Context, id int64) (model.BankAccount, error) {
	return s.modify(ctx, id, func(a *model.BankAccount) {
		a.Active = false
	})
}

func (s *Service) modify(ctx context.Context, id int64, change func(a *model.BankAccount)) (model.BankAccount, error) {
	var out model.BankAccount
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		a, err := tx.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		change(&a)
		a.UpdatedAt = s.Now().UTC()
		if err := tx.UpdateAccount(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return model.BankAccount{}, fmt.Errorf("updating bank account %d: %w", id, err)
	}
	return out, nil
}

// Search returns accounts whose name contains term, ignoring case.
func (s *Service) Search(ctx context.Context, term string) ([]model.BankAccount, error) {
	all, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(term))
	out := []model.BankAccount{}
	for _, a := range all {
		if strings.Contains(strings.ToLower(a.Name), needle) {
			out = append(out, a)
		}
	}
	return out, nil
}

// MinBalance returns accounts whose balance is at least min.
func (s *Service) MinBalance(ctx context.Context, min decimal.Decimal) ([]model.BankAccount, error) {
	all, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	out := []model.BankAccount{}
	for _, a := range all {
		if a.Balance.GreaterThanOrEqual(min) {
			out = append(out, a)
		}
	}
	return out, nil
}

// RequireActive loads an account through r and rejects inactive ones with a
// validation error on field.
func RequireActive(ctx context.Context, r store.Reader, id int64, field string) (model.BankAccount, error) {
	if id <= 0 {
		return model.BankAccount{}, apperr.Invalid(field, "is required")
	}
	a, err := r.GetAccount(ctx, id)
	if err != nil {
		return model.BankAccount{}, err
	}
	if !a.Active {
		return model.BankAccount{}, apperr.Invalid(field, "bank account %d is deactivated", id)
	}
	return a, nil
}
