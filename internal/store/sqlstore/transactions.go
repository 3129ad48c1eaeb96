package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
)

const transactionColumns = `id, bank_account_id, amount, transaction_date, description, reference, transaction_type,
	reconciled, reconciled_at, reconciled_by, created_at`

func scanTransaction(row interface{ Scan(...any) error }) (model.InternalTransaction, error) {
	var (
		t            model.InternalTransaction
		reconciledAt sql.NullString
		createdAt    string
	)
	err := row.Scan(&t.ID, &t.AccountID, &t.Amount, &t.Date, &t.Description, &t.Reference, &t.Type,
		&t.Reconciled, &reconciledAt, &t.ReconciledBy, &createdAt)
	if err != nil {
		return t, err
	}
	if t.ReconciledAt, err = parseNullTS(reconciledAt); err != nil {
		return t, err
	}
	if t.CreatedAt, err = parseTS(createdAt); err != nil {
		return t, err
	}
	return t, nil
}

func (c *conn) GetTransaction(ctx context.Context, id int64) (model.InternalTransaction, error) {
	t, err := scanTransaction(c.queryRow(ctx, "SELECT "+transactionColumns+" FROM internal_transactions WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return t, apperr.NotFound("internal transaction", id)
	}
	if err != nil {
		return t, fmt.Errorf("getting internal transaction %d: %w", id, err)
	}
	return t, nil
}

func (c *conn) ListTransactions(ctx context.Context, f store.TransactionFilter) ([]model.InternalTransaction, error) {
	var (
		where []string
		args  []any
	)
	if f.AccountID != 0 {
		where, args = append(where, "bank_account_id = ?"), append(args, f.AccountID)
	}
	if f.Reconciled != nil {
		where, args = append(where, "reconciled = ?"), append(args, *f.Reconciled)
	}
	if !f.From.IsZero() {
		where, args = append(where, "transaction_date >= ?"), append(args, f.From)
	}
	if !f.To.IsZero() {
		where, args = append(where, "transaction_date <= ?"), append(args, f.To)
	}
	if f.Type != "" {
		where, args = append(where, "transaction_type = ?"), append(args, string(f.Type))
	}

	q := "SELECT " + transactionColumns + " FROM internal_transactions"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY transaction_date, id"

	rows, err := c.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing internal transactions: %w", err)
	}
	defer rows.Close()

	out := []model.InternalTransaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning internal transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (c *conn) CreateTransaction(ctx context.Context, t *model.InternalTransaction) error {
	if err := c.exists(ctx, "bank_accounts", "bank account", t.AccountID); err != nil {
		return err
	}
	id, err := c.insert(ctx,
		`INSERT INTO internal_transactions (bank_account_id, amount, transaction_date, description, reference,
			transaction_type, reconciled, reconciled_at, reconciled_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.AccountID, t.Amount, t.Date, t.Description, t.Reference, string(t.Type),
		t.Reconciled, nullTS(t.ReconciledAt), t.ReconciledBy, ts(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("creating internal transaction: %w", err)
	}
	t.ID = id
	return nil
}

// UpdateTransaction writes reconciliation metadata only.
func (c *conn) UpdateTransaction(ctx context.Context, t model.InternalTransaction) error {
	return c.update(ctx, "internal transaction", t.ID,
		`UPDATE internal_transactions SET reconciled = ?, reconciled_at = ?, reconciled_by = ? WHERE id = ?`,
		t.Reconciled, nullTS(t.ReconciledAt), t.ReconciledBy, t.ID)
}
