package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/model"
)

const accountColumns = `id, name, bank_name, account_number, balance, active, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (model.BankAccount, error) {
	var (
		a                    model.BankAccount
		createdAt, updatedAt string
	)
	if err := row.Scan(&a.ID, &a.Name, &a.BankName, &a.AccountNumber, &a.Balance, &a.Active, &createdAt, &updatedAt); err != nil {
		return a, err
	}
	var err error
	if a.CreatedAt, err = parseTS(createdAt); err != nil {
		return a, err
	}
	if a.UpdatedAt, err = parseTS(updatedAt); err != nil {
		return a, err
	}
	return a, nil
}

func (c *conn) GetAccount(ctx context.Context, id int64) (model.BankAccount, error) {
	a, err := scanAccount(c.queryRow(ctx, "SELECT "+accountColumns+" FROM bank_accounts WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return a, apperr.NotFound("bank account", id)
	}
	if err != nil {
		return a, fmt.Errorf("getting bank account %d: %w", id, err)
	}
	return a, nil
}

func (c *conn) ListAccounts(ctx context.Context) ([]model.BankAccount, error) {
	rows, err := c.query(ctx, "SELECT "+accountColumns+" FROM bank_accounts ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing bank accounts: %w", err)
	}
	defer rows.Close()

	out := []model.BankAccount{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning bank account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (c *conn) CreateAccount(ctx context.Context, a *model.BankAccount) error {
	id, err := c.insert(ctx,
		`INSERT INTO bank_accounts (name, bank_name, account_number, balance, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.Name, a.BankName, a.AccountNumber, a.Balance, a.Active, ts(a.CreatedAt), ts(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("creating bank account: %w", err)
	}
	a.ID = id
	return nil
}

func (c *conn) UpdateAccount(ctx context.Context, a model.BankAccount) error {
	return c.update(ctx, "bank account", a.ID,
		`UPDATE bank_accounts SET name = ?, bank_name = ?, account_number = ?, balance = ?, active = ?, updated_at = ?
		 WHERE id = ?`,
		a.Name, a.BankName, a.AccountNumber, a.Balance, a.Active, ts(a.UpdatedAt), a.ID)
}
