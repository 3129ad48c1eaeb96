package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscrepancyType classifies an unexplained difference.
type DiscrepancyType string

const (
	DiscrepancyMissingInternal  DiscrepancyType = "MISSING_INTERNAL"
	DiscrepancyMissingBank      DiscrepancyType = "MISSING_BANK"
	DiscrepancyAmountMismatch   DiscrepancyType = "AMOUNT_MISMATCH"
	DiscrepancyDateMismatch     DiscrepancyType = "DATE_MISMATCH"
	DiscrepancyDuplicate        DiscrepancyType = "DUPLICATE"
	DiscrepancyBankFeeUnknown   DiscrepancyType = "BANK_FEE_UNKNOWN"
	DiscrepancyOutstandingCheck DiscrepancyType = "OUTSTANDING_CHECK"
	DiscrepancyDepositInTransit DiscrepancyType = "DEPOSIT_IN_TRANSIT"
	DiscrepancyTiming           DiscrepancyType = "TIMING"
	DiscrepancyOther            DiscrepancyType = "OTHER"
)

var discrepancyTypes = []DiscrepancyType{
	DiscrepancyMissingInternal, DiscrepancyMissingBank, DiscrepancyAmountMismatch,
	DiscrepancyDateMismatch, DiscrepancyDuplicate, DiscrepancyBankFeeUnknown,
	DiscrepancyOutstandingCheck, DiscrepancyDepositInTransit, DiscrepancyTiming, DiscrepancyOther,
}

// Valid reports whether t is a known discrepancy type.
func (t DiscrepancyType) Valid() bool {
	for _, known := range discrepancyTypes {
		if t == known {
			return true
		}
	}
	return false
}

// DiscrepancyStatus is the lifecycle state of a discrepancy.
type DiscrepancyStatus string

const (
	StatusOpen       DiscrepancyStatus = "OPEN"
	StatusInProgress DiscrepancyStatus = "IN_PROGRESS"
	StatusResolved   DiscrepancyStatus = "RESOLVED"
	StatusClosed     DiscrepancyStatus = "CLOSED"
)

// IsOpen reports whether the discrepancy still needs work.
func (s DiscrepancyStatus) IsOpen() bool {
	return s == StatusOpen || s == StatusInProgress
}

// Terminal reports whether no further change is allowed.
func (s DiscrepancyStatus) Terminal() bool {
	return s == StatusClosed
}

// CanTransition reports whether a discrepancy may move from s to next.
// Reopening a resolved discrepancy goes back to IN_PROGRESS, never to OPEN.
func (s DiscrepancyStatus) CanTransition(next DiscrepancyStatus) bool {
	switch s {
	case StatusOpen:
		return next == StatusInProgress
	case StatusInProgress:
		return next == StatusInProgress || next == StatusResolved
	case StatusResolved:
		return next == StatusClosed || next == StatusInProgress
	default:
		return false
	}
}

// Priority ranks discrepancies for investigation.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// IsHigh reports whether p counts toward the high-priority view.
func (p Priority) IsHigh() bool {
	return p == PriorityHigh || p == PriorityCritical
}

// Note is one investigation note.
type Note struct {
	At     time.Time `json:"at"`
	Author string    `json:"author"`
	Text   string    `json:"text"`
}

// Discrepancy is a tracked, assignable unexplained difference.
type Discrepancy struct {
	ID               int64             `json:"id"`
	AccountID        int64             `json:"bankAccountId"`
	TransactionID    *int64            `json:"internalTransactionId,omitempty"`
	StatementEntryID *int64            `json:"bankStatementEntryId,omitempty"`
	MatchID          *int64            `json:"transactionMatchId,omitempty"`
	Type             DiscrepancyType   `json:"discrepancyType"`
	Amount           decimal.Decimal   `json:"amount"`
	Description      string            `json:"description"`
	Status           DiscrepancyStatus `json:"status"`
	Priority         Priority          `json:"priority"`
	AssignedTo       string            `json:"assignedTo,omitempty"`
	AssignedAt       *time.Time        `json:"assignedAt,omitempty"`
	Notes            []Note            `json:"investigationNotes,omitempty"`
	Resolution       string            `json:"resolution,omitempty"`
	ResolvedAt       *time.Time        `json:"resolvedAt,omitempty"`
	ResolvedBy       string            `json:"resolvedBy,omitempty"`
	ClosedAt         *time.Time        `json:"closedAt,omitempty"`
	ClosedBy         string            `json:"closedBy,omitempty"`
	IdentifiedAt     time.Time         `json:"identifiedAt"`
	IdentifiedBy     string            `json:"identifiedBy"`
}
