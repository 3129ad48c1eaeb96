package report

import (
	"cmp"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
)

// Header is the CSV header of a reconciliation export.
const Header = "source,id,date,amount,reference,description,status,match_id,match_type"

const (
	numFields    = 9
	colSource    = 0
	colID        = 1
	colDate      = 2
	colAmount    = 3
	colRef       = 4
	colDesc      = 5
	colStatus    = 6
	colMatchID   = 7
	colMatchType = 8
)

// Row sources.
const (
	SourceBank     = "BANK"
	SourceInternal = "INTERNAL"
)

// Row statuses.
const (
	RowMatched   = "MATCHED"
	RowUnmatched = "UNMATCHED"
)

// Row is one statement entry or internal transaction in an export.
type Row struct {
	Source      string
	ID          int64
	Date        model.Date
	Amount      decimal.Decimal
	Reference   string
	Description string
	Status      string
	MatchID     int64
	MatchType   model.MatchType
}

// ExportRows returns the account's statement entries and internal
// transactions in [from, to], ordered by date with bank rows first, each
// tagged with the confirmed match that consumed it.
func (s *Service) ExportRows(ctx context.Context, accountID int64, from, to model.Date) ([]Row, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	entries, err := s.store.ListEntries(ctx, store.EntryFilter{AccountID: accountID, From: from, To: to})
	if err != nil {
		return nil, err
	}
	txns, err := s.store.ListTransactions(ctx, store.TransactionFilter{AccountID: accountID, From: from, To: to})
	if err != nil {
		return nil, err
	}
	matches, err := s.store.ListMatches(ctx, store.MatchFilter{AccountID: accountID, Confirmed: store.Bool(true)})
	if err != nil {
		return nil, err
	}

	entryMatch := make(map[int64]model.Match)
	txnMatch := make(map[int64]model.Match)
	for _, m := range matches {
		for _, id := range m.EntryIDs() {
			entryMatch[id] = m
		}
		for _, id := range m.TransactionIDs {
			txnMatch[id] = m
		}
	}

	rows := make([]Row, 0, len(entries)+len(txns))
	for _, e := range entries {
		r := Row{Source: SourceBank, ID: e.ID, Date: e.Date, Amount: e.Amount, Reference: e.Reference, Description: e.Description, Status: RowUnmatched}
		if m, ok := entryMatch[e.ID]; ok {
			r.Status, r.MatchID, r.MatchType = RowMatched, m.ID, m.Type
		}
		rows = append(rows, r)
	}
	for _, t := range txns {
		r := Row{Source: SourceInternal, ID: t.ID, Date: t.Date, Amount: t.Amount, Reference: t.Reference, Description: t.Description, Status: RowUnmatched}
		if m, ok := txnMatch[t.ID]; ok {
			r.Status, r.MatchID, r.MatchType = RowMatched, m.ID, m.Type
		}
		rows = append(rows, r)
	}
	slices.SortStableFunc(rows, func(a, b Row) int {
		if c := a.Date.Time().Compare(b.Date.Time()); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Source, b.Source); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return rows, nil
}

// WriteRows writes rows to w as CSV, header first.
func WriteRows(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, r := range rows {
		if err := cw.Write(MarshalRow(r)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadRows reads an export written by WriteRows.
func ReadRows(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading export CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var rows []Row
	for i, rec := range records[1:] {
		row, err := UnmarshalRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// MarshalRow converts a Row to CSV fields.
func MarshalRow(r Row) []string {
	rec := make([]string, numFields)
	rec[colSource] = r.Source
	rec[colID] = strconv.FormatInt(r.ID, 10)
	rec[colDate] = r.Date.String()
	rec[colAmount] = r.Amount.StringFixed(2)
	rec[colRef] = r.Reference
	rec[colDesc] = r.Description
	rec[colStatus] = r.Status
	if r.MatchID != 0 {
		rec[colMatchID] = strconv.FormatInt(r.MatchID, 10)
	}
	rec[colMatchType] = string(r.MatchType)
	return rec
}

// UnmarshalRow converts CSV fields to a Row.
func UnmarshalRow(rec []string) (Row, error) {
	if len(rec) != numFields {
		return Row{}, fmt.Errorf("expected %d fields, got %d", numFields, len(rec))
	}
	id, err := strconv.ParseInt(rec[colID], 10, 64)
	if err != nil {
		return Row{}, fmt.Errorf("parsing id %q: %w", rec[colID], err)
	}
	date, err := model.ParseDate(rec[colDate])
	if err != nil {
		return Row{}, fmt.Errorf("parsing date %q: %w", rec[colDate], err)
	}
	amount, err := decimal.NewFromString(rec[colAmount])
	if err != nil {
		return Row{}, fmt.Errorf("parsing amount %q: %w", rec[colAmount], err)
	}
	var matchID int64
	if rec[colMatchID] != "" {
		matchID, err = strconv.ParseInt(rec[colMatchID], 10, 64)
		if err != nil {
			return Row{}, fmt.Errorf("parsing match_id %q: %w", rec[colMatchID], err)
		}
	}
	return Row{
		Source:      rec[colSource],
		ID:          id,
		Date:        date,
		Amount:      amount,
		Reference:   rec[colRef],
		Description: rec[colDesc],
		Status:      rec[colStatus],
		MatchID:     matchID,
		MatchType:   model.MatchType(rec[colMatchType]),
	}, nil
}
