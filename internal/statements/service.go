// Package statements validates and stores bank statement lines, one at a
// time or in bulk, and answers the read queries over them.
package statements

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/importer"
	"github.com/cleared-dev/bankrec/internal/ledger"
	"github.com/cleared-dev/bankrec/internal/logger"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
	"github.com/cleared-dev/bankrec/internal/validation"
)

// SystemActor is recorded when no caller identity is supplied.
const SystemActor = "system"

// Service is the statement importer.
type Service struct {
	store      store.Store
	parsers    *importer.Registry
	windowDays int
	Now        func() time.Time
}

// NewService creates a statement Service. windowDays bounds PotentialMatches.
func NewService(s store.Store, parsers *importer.Registry, windowDays int) *Service {
	return &Service{store: s, parsers: parsers, windowDays: windowDays, Now: time.Now}
}

// EntryInput is one statement line addressed to an account.
type EntryInput struct {
	AccountID int64 `json:"bankAccountId"`
	model.StatementLine
}

// LineResult is the outcome of one line of a bulk import.
type LineResult struct {
	Line   int                   `json:"line"`
	Entry  *model.StatementEntry `json:"entry,omitempty"`
	Error  string                `json:"error,omitempty"`
	Kind   string                `json:"kind,omitempty"` // validation, conflict, not_found
	Fields []apperr.FieldError   `json:"fields,omitempty"`
}

// OK reports whether the line was stored.
func (r LineResult) OK() bool { return r.Entry != nil }

// BatchResult summarizes a bulk import.
type BatchResult struct {
	Batch    string       `json:"importBatch"`
	Total    int          `json:"total"`
	Imported int          `json:"imported"`
	Failed   int          `json:"failed"`
	Results  []LineResult `json:"results"`
}

func (b *BatchResult) add(r LineResult) {
	b.Total++
	if r.OK() {
		b.Imported++
	} else {
		b.Failed++
	}
	b.Results = append(b.Results, r)
}

func actorOr(actor string) string {
	if actor == "" {
		return SystemActor
	}
	return actor
}

func clean(in EntryInput) EntryInput {
	in.Description = validation.SanitizeText(in.Description)
	in.Reference = validation.SanitizeText(in.Reference)
	in.Category = validation.SanitizeText(in.Category)
	return in
}

func validate(in EntryInput) error {
	var c validation.Checker
	c.Positive("bankAccountId", in.AccountID)
	c.NonZero("amount", in.Amount)
	c.Date("transactionDate", in.Date)
	c.MaxLen("description", in.Description, validation.MaxDescription)
	c.MaxLen("referenceNumber", in.Reference, validation.MaxReference)
	c.MaxLen("category", in.Category, validation.MaxCategory)
	return c.Err()
}

// Import validates and stores one statement line. An identical line
// (account, amount, date, reference) already on file is a conflict.
func (s *Service) Import(ctx context.Context, in EntryInput, actor string) (model.StatementEntry, error) {
	return s.importOne(ctx, in, actor, "")
}

func (s *Service) importOne(ctx context.Context, in EntryInput, actor, batch string) (model.StatementEntry, error) {
	in = clean(in)
	if err := validate(in); err != nil {
		return model.StatementEntry{}, err
	}

	e := model.StatementEntry{
		AccountID:      in.AccountID,
		Amount:         in.Amount,
		Date:           in.Date,
		Description:    in.Description,
		Reference:      in.Reference,
		Category:       in.Category,
		RunningBalance: in.RunningBalance,
		ImportedAt:     s.Now().UTC(),
		ImportedBy:     actorOr(actor),
		ImportBatch:    batch,
	}
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := ledger.RequireActive(ctx, tx, in.AccountID, "bankAccountId"); err != nil {
			return err
		}
		dup, err := tx.ListEntries(ctx, store.EntryFilter{
			AccountID: in.AccountID,
			From:      in.Date,
			To:        in.Date,
			Amount:    &in.Amount,
			Reference: &in.Reference,
		})
		if err != nil {
			return err
		}
		if len(dup) > 0 {
			return apperr.Conflict("duplicate of statement entry %d (amount %s, date %s, reference %q)",
				dup[0].ID, in.Amount.StringFixed(2), in.Date, in.Reference)
		}
		return tx.CreateEntry(ctx, &e)
	})
	if err != nil {
		return model.StatementEntry{}, err
	}
	logger.FromContext(ctx).Debug("statement entry imported", "entryID", e.ID, "accountID", e.AccountID)
	return e, nil
}

// ImportBatch stores every line independently. A rejected line is reported
// in its result and never aborts the rest. Only unexpected store failures
// are returned as the error.
func (s *Service) ImportBatch(ctx context.Context, inputs []EntryInput, actor string) (BatchResult, error) {
	res := BatchResult{Batch: uuid.NewString(), Results: make([]LineResult, 0, len(inputs))}
	for i, in := range inputs {
		r, err := s.batchLine(ctx, i+1, in, actor, res.Batch)
		if err != nil {
			return res, fmt.Errorf("importing line %d: %w", i+1, err)
		}
		res.add(r)
	}
	s.logBatch(ctx, res)
	return res, nil
}

func (s *Service) batchLine(ctx context.Context, line int, in EntryInput, actor, batch string) (LineResult, error) {
	e, err := s.importOne(ctx, in, actor, batch)
	if err == nil {
		return LineResult{Line: line, Entry: &e}, nil
	}
	r := LineResult{Line: line, Error: err.Error()}
	switch {
	case errors.Is(err, apperr.ErrValidation):
		r.Kind, r.Fields = "validation", apperr.Fields(err)
	case errors.Is(err, apperr.ErrConflict):
		r.Kind = "conflict"
	case errors.Is(err, apperr.ErrNotFound):
		r.Kind = "not_found"
	default:
		return r, err
	}
	return r, nil
}

// ImportCSV parses r with the named format and imports every row into
// accountID. Rows the parser rejects become failed line results.
func (s *Service) ImportCSV(ctx context.Context, accountID int64, format string, r io.Reader, actor string) (BatchResult, error) {
	p := s.parsers.Get(format)
	if p == nil {
		return BatchResult{}, apperr.Invalid("format", "unknown statement format %q (known: %v)", format, s.parsers.Formats())
	}
	if _, err := ledger.RequireActive(ctx, s.store, accountID, "bankAccountId"); err != nil {
		return BatchResult{}, err
	}
	rows, err := p.Parse(r)
	if err != nil {
		return BatchResult{}, apperr.Invalid("file", "%v", err)
	}

	res := BatchResult{Batch: uuid.NewString(), Results: make([]LineResult, 0, len(rows))}
	for _, row := range rows {
		if row.Err != nil {
			res.add(LineResult{Line: row.Number, Error: row.Err.Error(), Kind: "validation"})
			continue
		}
		lr, err := s.batchLine(ctx, row.Number, EntryInput{AccountID: accountID, StatementLine: row.Line}, actor, res.Batch)
		if err != nil {
			return res, fmt.Errorf("importing line %d: %w", row.Number, err)
		}
		res.add(lr)
	}
	s.logBatch(ctx, res)
	return res, nil
}

func (s *Service) logBatch(ctx context.Context, res BatchResult) {
	logger.FromContext(ctx).Info("statement batch imported",
		"batch", res.Batch, "total", res.Total, "imported", res.Imported, "failed", res.Failed)
}

// Get returns one statement entry.
func (s *Service) Get(ctx context.Context, id int64) (model.StatementEntry, error) {
	return s.store.GetEntry(ctx, id)
}

// List returns entries, optionally for one account (0 = all).
func (s *Service) List(ctx context.Context, accountID int64) ([]model.StatementEntry, error) {
	return s.store.ListEntries(ctx, store.EntryFilter{AccountID: accountID})
}

// Unmatched returns entries not yet in a confirmed match.
func (s *Service) Unmatched(ctx context.Context, accountID int64) ([]model.StatementEntry, error) {
	return s.store.ListEntries(ctx, store.EntryFilter{AccountID: accountID, Matched: store.Bool(false)})
}

// DateRange returns entries dated within [from, to].
func (s *Service) DateRange(ctx context.Context, accountID int64, from, to model.Date) ([]model.StatementEntry, error) {
	if err := validation.DateRange(from, to); err != nil {
		return nil, err
	}
	return s.store.ListEntries(ctx, store.EntryFilter{AccountID: accountID, From: from, To: to})
}

// PotentialMatches returns unmatched entries of accountID with exactly
// amount, dated within the match window of date.
func (s *Service) PotentialMatches(ctx context.Context, accountID int64, amount decimal.Decimal, date model.Date) ([]model.StatementEntry, error) {
	var c validation.Checker
	c.Positive("bankAccountId", accountID)
	c.Date("date", date)
	if err := c.Err(); err != nil {
		return nil, err
	}
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.store.ListEntries(ctx, store.EntryFilter{
		AccountID: accountID,
		Matched:   store.Bool(false),
		Amount:    &amount,
		From:      date.AddDays(-s.windowDays),
		To:        date.AddDays(s.windowDays),
	})
}
