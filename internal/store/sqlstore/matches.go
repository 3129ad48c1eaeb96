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

const matchColumns = `id, bank_account_id, statement_entry_id, match_type, confidence, automatic,
	confirmed, confirmed_at, confirmed_by, notes, created_at, created_by`

func scanMatch(row interface{ Scan(...any) error }) (model.Match, error) {
	var (
		m           model.Match
		confirmedAt sql.NullString
		createdAt   string
	)
	err := row.Scan(&m.ID, &m.AccountID, &m.StatementEntryID, &m.Type, &m.Confidence, &m.Automatic,
		&m.Confirmed, &confirmedAt, &m.ConfirmedBy, &m.Notes, &createdAt, &m.CreatedBy)
	if err != nil {
		return m, err
	}
	if m.ConfirmedAt, err = parseNullTS(confirmedAt); err != nil {
		return m, err
	}
	if m.CreatedAt, err = parseTS(createdAt); err != nil {
		return m, err
	}
	return m, nil
}

func (c *conn) GetMatch(ctx context.Context, id int64) (model.Match, error) {
	m, err := scanMatch(c.queryRow(ctx, "SELECT "+matchColumns+" FROM transaction_matches WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return m, apperr.NotFound("transaction match", id)
	}
	if err != nil {
		return m, fmt.Errorf("getting transaction match %d: %w", id, err)
	}
	matches := []model.Match{m}
	if err := c.loadMatchItems(ctx, matches); err != nil {
		return m, err
	}
	return matches[0], nil
}

func (c *conn) ListMatches(ctx context.Context, f store.MatchFilter) ([]model.Match, error) {
	var (
		where []string
		args  []any
	)
	if f.AccountID != 0 {
		where, args = append(where, "m.bank_account_id = ?"), append(args, f.AccountID)
	}
	if f.Confirmed != nil {
		where, args = append(where, "m.confirmed = ?"), append(args, *f.Confirmed)
	}
	if f.EntryID != 0 {
		where = append(where, `(m.statement_entry_id = ? OR EXISTS (
			SELECT 1 FROM match_statement_entries g WHERE g.match_id = m.id AND g.statement_entry_id = ?))`)
		args = append(args, f.EntryID, f.EntryID)
	}
	if f.TransactionID != 0 {
		where = append(where, `EXISTS (
			SELECT 1 FROM match_transactions mt WHERE mt.match_id = m.id AND mt.transaction_id = ?)`)
		args = append(args, f.TransactionID)
	}

	q := "SELECT " + qualify(matchColumns, "m") + " FROM transaction_matches m"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY m.id"

	rows, err := c.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transaction matches: %w", err)
	}
	out := []model.Match{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning transaction match: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Rows must be released before the item query on a single connection.
	rows.Close()

	if err := c.loadMatchItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func qualify(columns, alias string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// loadMatchItems fills TransactionIDs and GroupedEntryIDs in position order.
func (c *conn) loadMatchItems(ctx context.Context, matches []model.Match) error {
	if len(matches) == 0 {
		return nil
	}
	index := make(map[int64]int, len(matches))
	ids := make([]int64, len(matches))
	for i, m := range matches {
		index[m.ID] = i
		ids[i] = m.ID
	}

	load := func(query string, assign func(i int, id int64)) error {
		rows, err := c.query(ctx, fmt.Sprintf(query, placeholders(len(ids))), int64Args(ids)...)
		if err != nil {
			return fmt.Errorf("loading match items: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var matchID, itemID int64
			if err := rows.Scan(&matchID, &itemID); err != nil {
				return fmt.Errorf("scanning match item: %w", err)
			}
			assign(index[matchID], itemID)
		}
		return rows.Err()
	}

	err := load(`SELECT match_id, transaction_id FROM match_transactions WHERE match_id IN (%s) ORDER BY match_id, position`,
		func(i int, id int64) { matches[i].TransactionIDs = append(matches[i].TransactionIDs, id) })
	if err != nil {
		return err
	}
	return load(`SELECT match_id, statement_entry_id FROM match_statement_entries WHERE match_id IN (%s) ORDER BY match_id, position`,
		func(i int, id int64) { matches[i].GroupedEntryIDs = append(matches[i].GroupedEntryIDs, id) })
}

func (c *conn) CreateMatch(ctx context.Context, m *model.Match) error {
	if err := c.exists(ctx, "bank_statement_entries", "statement entry", m.StatementEntryID); err != nil {
		return err
	}
	id, err := c.insert(ctx,
		`INSERT INTO transaction_matches (bank_account_id, statement_entry_id, match_type, confidence, automatic,
			confirmed, confirmed_at, confirmed_by, notes, created_at, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.AccountID, m.StatementEntryID, string(m.Type), m.Confidence, m.Automatic,
		m.Confirmed, nullTS(m.ConfirmedAt), m.ConfirmedBy, m.Notes, ts(m.CreatedAt), m.CreatedBy)
	if err != nil {
		return fmt.Errorf("creating transaction match: %w", err)
	}
	m.ID = id
	return c.writeMatchItems(ctx, *m)
}

func (c *conn) writeMatchItems(ctx context.Context, m model.Match) error {
	for pos, txnID := range m.TransactionIDs {
		if _, err := c.exec(ctx,
			`INSERT INTO match_transactions (match_id, transaction_id, position) VALUES (?, ?, ?)`,
			m.ID, txnID, pos); err != nil {
			return fmt.Errorf("linking transaction %d to match %d: %w", txnID, m.ID, err)
		}
	}
	for pos, entryID := range m.GroupedEntryIDs {
		if _, err := c.exec(ctx,
			`INSERT INTO match_statement_entries (match_id, statement_entry_id, position) VALUES (?, ?, ?)`,
			m.ID, entryID, pos); err != nil {
			return fmt.Errorf("linking statement entry %d to match %d: %w", entryID, m.ID, err)
		}
	}
	return nil
}

func (c *conn) deleteMatchItems(ctx context.Context, id int64) error {
	if _, err := c.exec(ctx, `DELETE FROM match_transactions WHERE match_id = ?`, id); err != nil {
		return fmt.Errorf("unlinking match %d transactions: %w", id, err)
	}
	if _, err := c.exec(ctx, `DELETE FROM match_statement_entries WHERE match_id = ?`, id); err != nil {
		return fmt.Errorf("unlinking match %d statement entries: %w", id, err)
	}
	return nil
}

func (c *conn) UpdateMatch(ctx context.Context, m model.Match) error {
	err := c.update(ctx, "transaction match", m.ID,
		`UPDATE transaction_matches SET match_type = ?, confidence = ?, automatic = ?, confirmed = ?,
			confirmed_at = ?, confirmed_by = ?, notes = ?
		 WHERE id = ?`,
		string(m.Type), m.Confidence, m.Automatic, m.Confirmed, nullTS(m.ConfirmedAt), m.ConfirmedBy, m.Notes, m.ID)
	if err != nil {
		return err
	}
	if err := c.deleteMatchItems(ctx, m.ID); err != nil {
		return err
	}
	return c.writeMatchItems(ctx, m)
}

func (c *conn) DeleteMatch(ctx context.Context, id int64) error {
	if err := c.deleteMatchItems(ctx, id); err != nil {
		return err
	}
	res, err := c.exec(ctx, `DELETE FROM transaction_matches WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting transaction match %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("transaction match", id)
	}
	return nil
}
