// Package transactions records the organization's own cash movements that
// wait to be reconciled against the bank.
package transactions

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/ledger"
	"github.com/cleared-dev/bankrec/internal/logger"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
	"github.com/cleared-dev/bankrec/internal/validation"
)

// Service is the internal transaction store.
type Service struct {
	store store.Store
	Now   func() time.Time
}

// NewService creates a transactions Service.
func NewService(s store.Store) *Service {
	return &Service{store: s, Now: time.Now}
}

// CreateParams holds a new internal transaction.
type CreateParams struct {
	AccountID   int64           `json:"bankAccountId"`
	Amount      decimal.Decimal `json:"amount"`
	Date        model.Date      `json:"transactionDate"`
	Description string          `json:"description"`
	Reference   string          `json:"referenceNumber"`
	Type        string          `json:"transactionType"`
}

// Create validates and stores an unreconciled transaction.
func (s *Service) Create(ctx context.Context, p CreateParams) (model.InternalTransaction, error) {
	p.Description = validation.SanitizeText(p.Description)
	p.Reference = validation.SanitizeText(p.Reference)

	var c validation.Checker
	c.Positive("bankAccountId", p.AccountID)
	c.NonZero("amount", p.Amount)
	c.Date("transactionDate", p.Date)
	c.MaxLen("description", p.Description, validation.MaxDescription)
	c.MaxLen("referenceNumber", p.Reference, validation.MaxReference)
	txnType := model.TransactionOther
	if p.Type != "" {
		parsed, ok := model.ParseTransactionType(p.Type)
		if !ok {
			c.Add("transactionType", "unknown transaction type %q", p.Type)
		}
		txnType = parsed
	}
	if err := c.Err(); err != nil {
		return model.InternalTransaction{}, err
	}

	t := model.InternalTransaction{
		AccountID:   p.AccountID,
		Amount:      p.Amount,
		Date:        p.Date,
		Description: p.Description,
		Reference:   p.Reference,
		Type:        txnType,
		CreatedAt:   s.Now().UTC(),
	}
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := ledger.RequireActive(ctx, tx, p.AccountID, "bankAccountId"); err != nil {
			return err
		}
		return tx.CreateTransaction(ctx, &t)
	})
	if err != nil {
		return model.InternalTransaction{}, fmt.Errorf("creating internal transaction: %w", err)
	}
	logger.FromContext(ctx).Debug("internal transaction recorded", "transactionID", t.ID, "accountID", t.AccountID)
	return t, nil
}

// Get returns one transaction.
func (s *Service) Get(ctx context.Context, id int64) (model.InternalTransaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// List returns transactions, optionally for one account (0 = all).
func (s *Service) List(ctx context.Context, accountID int64) ([]model.InternalTransaction, error) {
	return s.store.ListTransactions(ctx, store.TransactionFilter{AccountID: accountID})
}

// Unreconciled returns transactions not yet in a confirmed match.
func (s *Service) Unreconciled(ctx context.Context, accountID int64) ([]model.InternalTransaction, error) {
	return s.store.ListTransactions(ctx, store.TransactionFilter{AccountID: accountID, Reconciled: store.Bool(false)})
}
