// Package report aggregates reconciliation state into summaries, aging
// views, monthly trends and exportable rows. Everything here is read only
// and runs without the account locks, so a report is a point-in-time view.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/config"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
	"github.com/cleared-dev/bankrec/internal/validation"
)

// Status is the derived state of an account's reconciliation.
type Status string

const (
	StatusComplete   Status = "COMPLETE"
	StatusInProgress Status = "IN_PROGRESS"
	StatusIssues     Status = "ISSUES"
)

var hundred = decimal.NewFromInt(100)

// Summary is the reconciliation position of one account over a date range.
type Summary struct {
	AccountID   int64      `json:"bankAccountId"`
	AccountName string     `json:"accountName"`
	From        model.Date `json:"startDate"`
	To          model.Date `json:"endDate"`

	TotalTransactions int `json:"totalInternalTransactions"`
	TotalEntries      int `json:"totalStatementEntries"`
	ReconciledCount   int `json:"reconciledCount"`
	MatchedEntries    int `json:"matchedStatementEntries"`

	UnmatchedTransactions      int             `json:"unmatchedInternalCount"`
	UnmatchedTransactionAmount decimal.Decimal `json:"unmatchedInternalAmount"`
	UnmatchedEntries           int             `json:"unmatchedStatementCount"`
	UnmatchedEntryAmount       decimal.Decimal `json:"unmatchedStatementAmount"`

	OpenDiscrepancies      int             `json:"openDiscrepancies"`
	OpenDiscrepancyAmount  decimal.Decimal `json:"openDiscrepancyAmount"`
	HighPriorityOpen       int             `json:"highPriorityDiscrepancies"`
	HighPriorityOpenAmount decimal.Decimal `json:"highPriorityDiscrepancyAmount"`

	InternalTotal      decimal.Decimal `json:"totalInternalAmount"`
	StatementTotal     decimal.Decimal `json:"totalStatementAmount"`
	ReconciledAmount   decimal.Decimal `json:"reconciledAmount"`
	UnreconciledAmount decimal.Decimal `json:"unreconciledAmount"`
	FinalDifference    decimal.Decimal `json:"finalDifference"`

	Percentage  decimal.Decimal `json:"reconciliationPercentage"`
	Status      Status          `json:"status"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// Options holds report defaults.
type Options struct {
	TrendMonths     int
	OutstandingDays int
}

// OptionsFrom converts the reports section of the configuration.
func OptionsFrom(c config.ReportsConfig) Options {
	return Options{TrendMonths: c.TrendMonths, OutstandingDays: c.OutstandingDays}
}

// Service is the reconciliation reporter.
type Service struct {
	store store.Reader
	opts  Options
	Now   func() time.Time
}

// NewService creates a reporter over any store reader.
func NewService(r store.Reader, opts Options) *Service {
	return &Service{store: r, opts: opts, Now: time.Now}
}

// Percentage is reconciled / total × 100 rounded to two places, zero when
// there is nothing to reconcile and never above 100.
func Percentage(reconciled, total int) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	p := decimal.NewFromInt(int64(reconciled)).Mul(hundred).DivRound(decimal.NewFromInt(int64(total)), 2)
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p
}

// DeriveStatus applies the status rules: any open high-priority
// discrepancy means ISSUES; full reconciliation with nothing open means
// COMPLETE; anything else is IN_PROGRESS.
func DeriveStatus(percentage decimal.Decimal, open, highPriority int) Status {
	switch {
	case highPriority > 0:
		return StatusIssues
	case percentage.GreaterThanOrEqual(hundred) && open == 0:
		return StatusComplete
	default:
		return StatusInProgress
	}
}

func checkRange(from, to model.Date) error {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return validation.DateRange(from, to)
	}
	return nil
}

// Summary reports one account over [from, to]. Zero bounds are open.
// Discrepancy counts cover every open discrepancy of the account.
func (s *Service) Summary(ctx context.Context, accountID int64, from, to model.Date) (Summary, error) {
	if err := checkRange(from, to); err != nil {
		return Summary{}, err
	}
	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return Summary{}, err
	}
	return s.summarize(ctx, acct, from, to)
}

func (s *Service) summarize(ctx context.Context, acct model.BankAccount, from, to model.Date) (Summary, error) {
	txns, err := s.store.ListTransactions(ctx, store.TransactionFilter{AccountID: acct.ID, From: from, To: to})
	if err != nil {
		return Summary{}, fmt.Errorf("loading transactions: %w", err)
	}
	entries, err := s.store.ListEntries(ctx, store.EntryFilter{AccountID: acct.ID, From: from, To: to})
	if err != nil {
		return Summary{}, fmt.Errorf("loading statement entries: %w", err)
	}
	open, err := s.store.ListDiscrepancies(ctx, store.DiscrepancyFilter{AccountID: acct.ID, Statuses: store.OpenStatuses})
	if err != nil {
		return Summary{}, fmt.Errorf("loading discrepancies: %w", err)
	}

	sum := Summary{
		AccountID:   acct.ID,
		AccountName: acct.Name,
		From:        from,
		To:          to,
		GeneratedAt: s.Now().UTC(),
	}
	for _, t := range txns {
		sum.TotalTransactions++
		sum.InternalTotal = sum.InternalTotal.Add(t.Amount)
		if t.Reconciled {
			sum.ReconciledCount++
			sum.ReconciledAmount = sum.ReconciledAmount.Add(t.Amount)
		} else {
			sum.UnmatchedTransactions++
			sum.UnmatchedTransactionAmount = sum.UnmatchedTransactionAmount.Add(t.Amount)
		}
	}
	sum.UnreconciledAmount = sum.UnmatchedTransactionAmount

	for _, e := range entries {
		sum.TotalEntries++
		sum.StatementTotal = sum.StatementTotal.Add(e.Amount)
		if e.Matched {
			sum.MatchedEntries++
		} else {
			sum.UnmatchedEntries++
			sum.UnmatchedEntryAmount = sum.UnmatchedEntryAmount.Add(e.Amount)
		}
	}

	for _, d := range open {
		sum.OpenDiscrepancies++
		sum.OpenDiscrepancyAmount = sum.OpenDiscrepancyAmount.Add(d.Amount.Abs())
		if d.Priority.IsHigh() {
			sum.HighPriorityOpen++
			sum.HighPriorityOpenAmount = sum.HighPriorityOpenAmount.Add(d.Amount.Abs())
		}
	}

	sum.FinalDifference = sum.StatementTotal.Sub(sum.InternalTotal)
	sum.Percentage = Percentage(sum.ReconciledCount, sum.TotalTransactions)
	sum.Status = DeriveStatus(sum.Percentage, sum.OpenDiscrepancies, sum.HighPriorityOpen)
	return sum, nil
}

// AllAccounts summarizes every active account.
func (s *Service) AllAccounts(ctx context.Context, from, to model.Date) ([]Summary, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(accounts))
	for _, a := range accounts {
		if !a.Active {
			continue
		}
		sum, err := s.summarize(ctx, a, from, to)
		if err != nil {
			return nil, fmt.Errorf("summarizing account %d: %w", a.ID, err)
		}
		out = append(out, sum)
	}
	return out, nil
}

// Status summarizes the account's whole history.
func (s *Service) Status(ctx context.Context, accountID int64) (Summary, error) {
	return s.Summary(ctx, accountID, model.Date{}, model.Date{})
}

// OutstandingItem is an internal transaction still waiting for the bank.
type OutstandingItem struct {
	TransactionID   int64                 `json:"internalTransactionId"`
	Type            model.TransactionType `json:"transactionType"`
	Date            model.Date            `json:"transactionDate"`
	Amount          decimal.Decimal       `json:"amount"`
	Reference       string                `json:"referenceNumber,omitempty"`
	Description     string                `json:"description,omitempty"`
	DaysOutstanding int                   `json:"daysOutstanding"`
}

// OutstandingChecks lists unreconciled checks older than days as of asOf.
// days <= 0 uses the configured default.
func (s *Service) OutstandingChecks(ctx context.Context, accountID int64, asOf model.Date, days int) ([]OutstandingItem, error) {
	return s.outstanding(ctx, accountID, model.TransactionCheck, asOf, days)
}

// DepositsInTransit lists unreconciled deposits older than days as of asOf.
func (s *Service) DepositsInTransit(ctx context.Context, accountID int64, asOf model.Date, days int) ([]OutstandingItem, error) {
	return s.outstanding(ctx, accountID, model.TransactionDeposit, asOf, days)
}

func (s *Service) outstanding(ctx context.Context, accountID int64, typ model.TransactionType, asOf model.Date, days int) ([]OutstandingItem, error) {
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = model.DateOf(s.Now())
	}
	if days <= 0 {
		days = s.opts.OutstandingDays
	}
	txns, err := s.store.ListTransactions(ctx, store.TransactionFilter{
		AccountID:  accountID,
		Reconciled: store.Bool(false),
		Type:       typ,
		To:         asOf.AddDays(-days - 1),
	})
	if err != nil {
		return nil, err
	}
	out := make([]OutstandingItem, 0, len(txns))
	for _, t := range txns {
		out = append(out, OutstandingItem{
			TransactionID:   t.ID,
			Type:            t.Type,
			Date:            t.Date,
			Amount:          t.Amount,
			Reference:       t.Reference,
			Description:     t.Description,
			DaysOutstanding: model.DaysApart(t.Date, asOf),
		})
	}
	return out, nil
}

// TrendPoint is the summary of one calendar month.
type TrendPoint struct {
	Period string `json:"period"` // YYYY-MM
	Summary
}

// Trend recomputes the summary for each of the trailing months calendar
// months ending with the month of now, oldest first. months <= 0 uses the
// configured default.
func (s *Service) Trend(ctx context.Context, accountID int64, months int, now model.Date) ([]TrendPoint, error) {
	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if months <= 0 {
		months = s.opts.TrendMonths
	}
	if now.IsZero() {
		now = model.DateOf(s.Now())
	}

	current := now.FirstOfMonth()
	out := make([]TrendPoint, 0, months)
	for i := months - 1; i >= 0; i-- {
		first := current.AddMonths(-i)
		last := first.AddMonths(1).AddDays(-1)
		sum, err := s.summarize(ctx, acct, first, last)
		if err != nil {
			return nil, fmt.Errorf("summarizing %04d-%02d: %w", first.Year(), first.Month(), err)
		}
		out = append(out, TrendPoint{Period: fmt.Sprintf("%04d-%02d", first.Year(), int(first.Month())), Summary: sum})
	}
	return out, nil
}
