package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
)

const entryColumns = `id, bank_account_id, amount, entry_date, description, reference, category, running_balance,
	matched, matched_at, matched_by, imported_at, imported_by, import_batch`

func scanEntry(row interface{ Scan(...any) error }) (model.StatementEntry, error) {
	var (
		e          model.StatementEntry
		balance    decimal.NullDecimal
		matchedAt  sql.NullString
		importedAt string
	)
	err := row.Scan(&e.ID, &e.AccountID, &e.Amount, &e.Date, &e.Description, &e.Reference, &e.Category, &balance,
		&e.Matched, &matchedAt, &e.MatchedBy, &importedAt, &e.ImportedBy, &e.ImportBatch)
	if err != nil {
		return e, err
	}
	if balance.Valid {
		e.RunningBalance = &balance.Decimal
	}
	if e.MatchedAt, err = parseNullTS(matchedAt); err != nil {
		return e, err
	}
	if e.ImportedAt, err = parseTS(importedAt); err != nil {
		return e, err
	}
	return e, nil
}

func (c *conn) GetEntry(ctx context.Context, id int64) (model.StatementEntry, error) {
	e, err := scanEntry(c.queryRow(ctx, "SELECT "+entryColumns+" FROM bank_statement_entries WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return e, apperr.NotFound("statement entry", id)
	}
	if err != nil {
		return e, fmt.Errorf("getting statement entry %d: %w", id, err)
	}
	return e, nil
}

// ListEntries narrows by account, matched flag, date range and reference in
// SQL; amount equality is numeric and checked by the filter itself.
func (c *conn) ListEntries(ctx context.Context, f store.EntryFilter) ([]model.StatementEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.AccountID != 0 {
		where, args = append(where, "bank_account_id = ?"), append(args, f.AccountID)
	}
	if f.Matched != nil {
		where, args = append(where, "matched = ?"), append(args, *f.Matched)
	}
	if !f.From.IsZero() {
		where, args = append(where, "entry_date >= ?"), append(args, f.From)
	}
	if !f.To.IsZero() {
		where, args = append(where, "entry_date <= ?"), append(args, f.To)
	}
	if f.Reference != nil {
		where, args = append(where, "reference = ?"), append(args, *f.Reference)
	}

	q := "SELECT " + entryColumns + " FROM bank_statement_entries"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY entry_date, id"

	rows, err := c.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing statement entries: %w", err)
	}
	defer rows.Close()

	out := []model.StatementEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning statement entry: %w", err)
		}
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out, rows.Err()
}

func runningBalance(e model.StatementEntry) decimal.NullDecimal {
	if e.RunningBalance == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *e.RunningBalance, Valid: true}
}

func (c *conn) CreateEntry(ctx context.Context, e *model.StatementEntry) error {
	if err := c.exists(ctx, "bank_accounts", "bank account", e.AccountID); err != nil {
		return err
	}
	id, err := c.insert(ctx,
		`INSERT INTO bank_statement_entries (bank_account_id, amount, entry_date, description, reference, category,
			running_balance, matched, matched_at, matched_by, imported_at, imported_by, import_batch)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.AccountID, e.Amount, e.Date, e.Description, e.Reference, e.Category,
		runningBalance(*e), e.Matched, nullTS(e.MatchedAt), e.MatchedBy, ts(e.ImportedAt), e.ImportedBy, e.ImportBatch)
	if err != nil {
		return fmt.Errorf("creating statement entry: %w", err)
	}
	e.ID = id
	return nil
}

func (c *conn) UpdateEntry(ctx context.Context, e model.StatementEntry) error {
	return c.update(ctx, "statement entry", e.ID,
		`UPDATE bank_statement_entries SET matched = ?, matched_at = ?, matched_by = ? WHERE id = ?`,
		e.Matched, nullTS(e.MatchedAt), e.MatchedBy, e.ID)
}
