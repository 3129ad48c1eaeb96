package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
)

const discrepancyColumns = `id, bank_account_id, internal_transaction_id, statement_entry_id, match_id,
	discrepancy_type, amount, description, status, priority, assigned_to, assigned_at, notes, resolution,
	resolved_at, resolved_by, closed_at, closed_by, identified_at, identified_by`

func scanDiscrepancy(row interface{ Scan(...any) error }) (model.Discrepancy, error) {
	var (
		d                                model.Discrepancy
		txnID, entryID, matchID          sql.NullInt64
		assignedAt, resolvedAt, closedAt sql.NullString
		notes, identifiedAt              string
	)
	err := row.Scan(&d.ID, &d.AccountID, &txnID, &entryID, &matchID,
		&d.Type, &d.Amount, &d.Description, &d.Status, &d.Priority, &d.AssignedTo, &assignedAt, &notes, &d.Resolution,
		&resolvedAt, &d.ResolvedBy, &closedAt, &d.ClosedBy, &identifiedAt, &d.IdentifiedBy)
	if err != nil {
		return d, err
	}
	d.TransactionID, d.StatementEntryID, d.MatchID = idPtr(txnID), idPtr(entryID), idPtr(matchID)
	if d.AssignedAt, err = parseNullTS(assignedAt); err != nil {
		return d, err
	}
	if d.ResolvedAt, err = parseNullTS(resolvedAt); err != nil {
		return d, err
	}
	if d.ClosedAt, err = parseNullTS(closedAt); err != nil {
		return d, err
	}
	if d.IdentifiedAt, err = parseTS(identifiedAt); err != nil {
		return d, err
	}
	if err := json.Unmarshal([]byte(notes), &d.Notes); err != nil {
		return d, fmt.Errorf("decoding investigation notes: %w", err)
	}
	return d, nil
}

func encodeNotes(notes []model.Note) (string, error) {
	if notes == nil {
		notes = []model.Note{}
	}
	data, err := json.Marshal(notes)
	if err != nil {
		return "", fmt.Errorf("encoding investigation notes: %w", err)
	}
	return string(data), nil
}

func (c *conn) GetDiscrepancy(ctx context.Context, id int64) (model.Discrepancy, error) {
	d, err := scanDiscrepancy(c.queryRow(ctx, "SELECT "+discrepancyColumns+" FROM discrepancies WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return d, apperr.NotFound("discrepancy", id)
	}
	if err != nil {
		return d, fmt.Errorf("getting discrepancy %d: %w", id, err)
	}
	return d, nil
}

func (c *conn) ListDiscrepancies(ctx context.Context, f store.DiscrepancyFilter) ([]model.Discrepancy, error) {
	var (
		where []string
		args  []any
	)
	if f.AccountID != 0 {
		where, args = append(where, "bank_account_id = ?"), append(args, f.AccountID)
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	if f.Type != "" {
		where, args = append(where, "discrepancy_type = ?"), append(args, string(f.Type))
	}
	if f.EntryID != 0 {
		where, args = append(where, "statement_entry_id = ?"), append(args, f.EntryID)
	}
	if f.TransactionID != 0 {
		where, args = append(where, "internal_transaction_id = ?"), append(args, f.TransactionID)
	}
	if f.MatchID != 0 {
		where, args = append(where, "match_id = ?"), append(args, f.MatchID)
	}

	q := "SELECT " + discrepancyColumns + " FROM discrepancies"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id"

	rows, err := c.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing discrepancies: %w", err)
	}
	defer rows.Close()

	out := []model.Discrepancy{}
	for rows.Next() {
		d, err := scanDiscrepancy(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning discrepancy: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *conn) CreateDiscrepancy(ctx context.Context, d *model.Discrepancy) error {
	if err := c.exists(ctx, "bank_accounts", "bank account", d.AccountID); err != nil {
		return err
	}
	notes, err := encodeNotes(d.Notes)
	if err != nil {
		return err
	}
	id, err := c.insert(ctx,
		`INSERT INTO discrepancies (bank_account_id, internal_transaction_id, statement_entry_id, match_id,
			discrepancy_type, amount, description, status, priority, assigned_to, assigned_at, notes, resolution,
			resolved_at, resolved_by, closed_at, closed_by, identified_at, identified_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.AccountID, nullID(d.TransactionID), nullID(d.StatementEntryID), nullID(d.MatchID),
		string(d.Type), d.Amount, d.Description, string(d.Status), string(d.Priority), d.AssignedTo,
		nullTS(d.AssignedAt), notes, d.Resolution, nullTS(d.ResolvedAt), d.ResolvedBy,
		nullTS(d.ClosedAt), d.ClosedBy, ts(d.IdentifiedAt), d.IdentifiedBy)
	if err != nil {
		return fmt.Errorf("creating discrepancy: %w", err)
	}
	d.ID = id
	return nil
}

func (c *conn) UpdateDiscrepancy(ctx context.Context, d model.Discrepancy) error {
	notes, err := encodeNotes(d.Notes)
	if err != nil {
		return err
	}
	return c.update(ctx, "discrepancy", d.ID,
		`UPDATE discrepancies SET discrepancy_type = ?, amount = ?, description = ?, status = ?, priority = ?,
			assigned_to = ?, assigned_at = ?, notes = ?, resolution = ?, resolved_at = ?, resolved_by = ?,
			closed_at = ?, closed_by = ?
		 WHERE id = ?`,
		string(d.Type), d.Amount, d.Description, string(d.Status), string(d.Priority),
		d.AssignedTo, nullTS(d.AssignedAt), notes, d.Resolution, nullTS(d.ResolvedAt), d.ResolvedBy,
		nullTS(d.ClosedAt), d.ClosedBy, d.ID)
}
