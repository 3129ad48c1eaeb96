// Package discrepancy tracks unexplained differences between the bank and
// the books from detection through assignment, resolution and closing.
package discrepancy

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/events"
	"github.com/cleared-dev/bankrec/internal/ledger"
	"github.com/cleared-dev/bankrec/internal/logger"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
	"github.com/cleared-dev/bankrec/internal/validation"
)

// SystemActor identifies automatic detection.
const SystemActor = "system"

// Service is the discrepancy tracker.
type Service struct {
	store  store.Store
	locks  *ledger.Locks
	events events.Publisher
	opts   Options
	Now    func() time.Time
}

// NewService creates a tracker. locks must be the registry the match engine uses.
func NewService(s store.Store, locks *ledger.Locks, pub events.Publisher, opts Options) *Service {
	return &Service{store: s, locks: locks, events: pub, opts: opts, Now: time.Now}
}

func actorOr(actor string) string {
	if actor == "" {
		return SystemActor
	}
	return actor
}

// CreateParams records a discrepancy found by a person.
type CreateParams struct {
	AccountID        int64           `json:"bankAccountId"`
	TransactionID    *int64          `json:"internalTransactionId"`
	StatementEntryID *int64          `json:"bankStatementEntryId"`
	MatchID          *int64          `json:"transactionMatchId"`
	Type             string          `json:"discrepancyType"`
	Amount           decimal.Decimal `json:"amount"`
	Description      string          `json:"description"`
	Priority         string          `json:"priority"`
}

// Create opens a discrepancy. Without a priority one is derived from the amount.
func (s *Service) Create(ctx context.Context, p CreateParams, actor string) (model.Discrepancy, error) {
	p.Description = validation.SanitizeText(p.Description)

	var c validation.Checker
	c.Positive("bankAccountId", p.AccountID)
	typ := model.DiscrepancyType(strings.ToUpper(strings.TrimSpace(p.Type)))
	if !typ.Valid() {
		c.Add("discrepancyType", "unknown discrepancy type %q", p.Type)
	}
	prio := s.opts.PriorityFor(p.Amount)
	if p.Priority != "" {
		prio = model.Priority(strings.ToUpper(strings.TrimSpace(p.Priority)))
		if !prio.Valid() {
			c.Add("priority", "unknown priority %q", p.Priority)
		}
	}
	c.Required("description", p.Description)
	c.MaxLen("description", p.Description, validation.MaxDescription)
	if err := c.Err(); err != nil {
		return model.Discrepancy{}, err
	}

	d := model.Discrepancy{
		AccountID:        p.AccountID,
		TransactionID:    p.TransactionID,
		StatementEntryID: p.StatementEntryID,
		MatchID:          p.MatchID,
		Type:             typ,
		Amount:           p.Amount,
		Description:      p.Description,
		Status:           model.StatusOpen,
		Priority:         prio,
		IdentifiedAt:     s.Now().UTC(),
		IdentifiedBy:     actorOr(actor),
	}
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetAccount(ctx, p.AccountID); err != nil {
			return err
		}
		if err := checkRelated(ctx, tx, d); err != nil {
			return err
		}
		return tx.CreateDiscrepancy(ctx, &d)
	})
	if err != nil {
		return model.Discrepancy{}, err
	}
	s.publish(ctx, events.DiscrepancyOpened, d)
	return d, nil
}

// checkRelated verifies that referenced items exist on the same account.
func checkRelated(ctx context.Context, r store.Reader, d model.Discrepancy) error {
	if d.TransactionID != nil {
		t, err := r.GetTransaction(ctx, *d.TransactionID)
		if err != nil {
			return err
		}
		if t.AccountID != d.AccountID {
			return apperr.Invalid("internalTransactionId", "belongs to account %d", t.AccountID)
		}
	}
	if d.StatementEntryID != nil {
		e, err := r.GetEntry(ctx, *d.StatementEntryID)
		if err != nil {
			return err
		}
		if e.AccountID != d.AccountID {
			return apperr.Invalid("bankStatementEntryId", "belongs to account %d", e.AccountID)
		}
	}
	if d.MatchID != nil {
		m, err := r.GetMatch(ctx, *d.MatchID)
		if err != nil {
			return err
		}
		if m.AccountID != d.AccountID {
			return apperr.Invalid("transactionMatchId", "belongs to account %d", m.AccountID)
		}
	}
	return nil
}

// Get returns one discrepancy.
func (s *Service) Get(ctx context.Context, id int64) (model.Discrepancy, error) {
	return s.store.GetDiscrepancy(ctx, id)
}

// Query selects discrepancies. Zero fields do not filter.
type Query struct {
	AccountID int64
	Status    model.DiscrepancyStatus
	Type      model.DiscrepancyType
}

// List returns the discrepancies selected by q, oldest first.
func (s *Service) List(ctx context.Context, q Query) ([]model.Discrepancy, error) {
	f := store.DiscrepancyFilter{AccountID: q.AccountID, Type: q.Type}
	if q.Status != "" {
		f.Statuses = []model.DiscrepancyStatus{q.Status}
	}
	return s.store.ListDiscrepancies(ctx, f)
}

// Open returns OPEN and IN_PROGRESS discrepancies, optionally for one account.
func (s *Service) Open(ctx context.Context, accountID int64) ([]model.Discrepancy, error) {
	return s.store.ListDiscrepancies(ctx, store.DiscrepancyFilter{AccountID: accountID, Statuses: store.OpenStatuses})
}

// HighPriority returns open discrepancies ranked HIGH or CRITICAL.
func (s *Service) HighPriority(ctx context.Context, accountID int64) ([]model.Discrepancy, error) {
	open, err := s.Open(ctx, accountID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Discrepancy, 0, len(open))
	for _, d := range open {
		if d.Priority.IsHigh() {
			out = append(out, d)
		}
	}
	return out, nil
}

// Overdue returns open discrepancies identified more than the configured
// number of days before asOf.
func (s *Service) Overdue(ctx context.Context, accountID int64, asOf time.Time) ([]model.Discrepancy, error) {
	open, err := s.Open(ctx, accountID)
	if err != nil {
		return nil, err
	}
	cutoff := asOf.AddDate(0, 0, -s.opts.OverdueDays)
	out := make([]model.Discrepancy, 0, len(open))
	for _, d := range open {
		if d.IdentifiedAt.Before(cutoff) {
			out = append(out, d)
		}
	}
	return out, nil
}

// change applies fn to the discrepancy inside a transaction. from lists the
// statuses the change is allowed from (nil means any non-terminal status);
// next is the resulting status and may equal the current one.
func (s *Service) change(ctx context.Context, id int64, from []model.DiscrepancyStatus, next func(model.DiscrepancyStatus) model.DiscrepancyStatus, fn func(d *model.Discrepancy, at time.Time)) (model.Discrepancy, error) {
	var d model.Discrepancy
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		cur, err := tx.GetDiscrepancy(ctx, id)
		if err != nil {
			return err
		}
		if cur.Status.Terminal() {
			return apperr.InvalidTransition("discrepancy %d is %s", id, cur.Status)
		}
		if from != nil && !slices.Contains(from, cur.Status) {
			return apperr.InvalidTransition("discrepancy %d is %s, expected one of %v", id, cur.Status, from)
		}
		prev := cur.Status
		cur.Status = next(prev)
		if cur.Status != prev && !prev.CanTransition(cur.Status) {
			return apperr.InvalidTransition("discrepancy %d cannot move from %s to %s", id, prev, cur.Status)
		}
		fn(&cur, s.Now().UTC())
		if err := tx.UpdateDiscrepancy(ctx, cur); err != nil {
			return err
		}
		d = cur
		return nil
	})
	if err != nil {
		return model.Discrepancy{}, err
	}
	return d, nil
}

func to(status model.DiscrepancyStatus) func(model.DiscrepancyStatus) model.DiscrepancyStatus {
	return func(model.DiscrepancyStatus) model.DiscrepancyStatus { return status }
}

func unchanged(cur model.DiscrepancyStatus) model.DiscrepancyStatus { return cur }

func (s *Service) transition(ctx context.Context, id int64, from []model.DiscrepancyStatus, next model.DiscrepancyStatus, fn func(d *model.Discrepancy, at time.Time)) (model.Discrepancy, error) {
	d, err := s.change(ctx, id, from, to(next), fn)
	if err != nil {
		return d, err
	}
	logger.FromContext(ctx).Info("discrepancy status changed", "discrepancyID", id, "status", d.Status)
	s.publish(ctx, events.DiscrepancyChanged, d)
	return d, nil
}

// Assign moves an OPEN or IN_PROGRESS discrepancy to IN_PROGRESS under assignee.
func (s *Service) Assign(ctx context.Context, id int64, assignee string) (model.Discrepancy, error) {
	assignee = validation.SanitizeText(assignee)
	var c validation.Checker
	c.Required("assignee", assignee)
	c.MaxLen("assignee", assignee, validation.MaxName)
	if err := c.Err(); err != nil {
		return model.Discrepancy{}, err
	}
	return s.transition(ctx, id, store.OpenStatuses, model.StatusInProgress, func(d *model.Discrepancy, at time.Time) {
		d.AssignedTo, d.AssignedAt = assignee, &at
	})
}

// Resolve records the resolution of an IN_PROGRESS discrepancy. An OPEN
// discrepancy must be assigned first.
func (s *Service) Resolve(ctx context.Context, id int64, resolution, resolvedBy string) (model.Discrepancy, error) {
	resolution = validation.SanitizeText(resolution)
	var c validation.Checker
	c.Required("resolution", resolution)
	c.MaxLen("resolution", resolution, validation.MaxNotes)
	if err := c.Err(); err != nil {
		return model.Discrepancy{}, err
	}
	resolvedBy = actorOr(resolvedBy)
	return s.transition(ctx, id, []model.DiscrepancyStatus{model.StatusInProgress}, model.StatusResolved, func(d *model.Discrepancy, at time.Time) {
		d.Resolution, d.ResolvedAt, d.ResolvedBy = resolution, &at, resolvedBy
	})
}

// Close finishes a RESOLVED discrepancy.
func (s *Service) Close(ctx context.Context, id int64, actor string) (model.Discrepancy, error) {
	actor = actorOr(actor)
	return s.transition(ctx, id, []model.DiscrepancyStatus{model.StatusResolved}, model.StatusClosed, func(d *model.Discrepancy, at time.Time) {
		d.ClosedAt, d.ClosedBy = &at, actor
	})
}

// Reopen sends a RESOLVED discrepancy back to IN_PROGRESS and records why.
func (s *Service) Reopen(ctx context.Context, id int64, reason, actor string) (model.Discrepancy, error) {
	reason = validation.SanitizeText(reason)
	var c validation.Checker
	c.MaxLen("reason", reason, validation.MaxNotes)
	if err := c.Err(); err != nil {
		return model.Discrepancy{}, err
	}
	actor = actorOr(actor)
	return s.transition(ctx, id, []model.DiscrepancyStatus{model.StatusResolved}, model.StatusInProgress, func(d *model.Discrepancy, at time.Time) {
		d.Resolution, d.ResolvedAt, d.ResolvedBy = "", nil, ""
		text := "reopened"
		if reason != "" {
			text += ": " + reason
		}
		d.Notes = append(d.Notes, model.Note{At: at, Author: actor, Text: text})
	})
}

// SetPriority changes the priority without a status change.
func (s *Service) SetPriority(ctx context.Context, id int64, priority string) (model.Discrepancy, error) {
	p := model.Priority(strings.ToUpper(strings.TrimSpace(priority)))
	if !p.Valid() {
		return model.Discrepancy{}, apperr.Invalid("priority", "unknown priority %q", priority)
	}
	return s.change(ctx, id, nil, unchanged, func(d *model.Discrepancy, _ time.Time) {
		d.Priority = p
	})
}

// AddNote appends an investigation note without a status change.
func (s *Service) AddNote(ctx context.Context, id int64, author, text string) (model.Discrepancy, error) {
	text = validation.SanitizeText(text)
	var c validation.Checker
	c.Required("note", text)
	c.MaxLen("note", text, validation.MaxNotes)
	if err := c.Err(); err != nil {
		return model.Discrepancy{}, err
	}
	author = actorOr(author)
	return s.change(ctx, id, nil, unchanged, func(d *model.Discrepancy, at time.Time) {
		d.Notes = append(d.Notes, model.Note{At: at, Author: author, Text: text})
	})
}

type changedPayload struct {
	DiscrepancyID int64                   `json:"discrepancyId"`
	Type          model.DiscrepancyType   `json:"discrepancyType"`
	Status        model.DiscrepancyStatus `json:"status"`
	Priority      model.Priority          `json:"priority"`
	Amount        decimal.Decimal         `json:"amount"`
}

func (s *Service) publish(ctx context.Context, typ string, d model.Discrepancy) {
	events.Emit(ctx, s.events, events.Event{
		Type:       typ,
		AccountID:  d.AccountID,
		OccurredAt: s.Now().UTC(),
		Payload: changedPayload{
			DiscrepancyID: d.ID,
			Type:          d.Type,
			Status:        d.Status,
			Priority:      d.Priority,
			Amount:        d.Amount,
		},
	})
}
