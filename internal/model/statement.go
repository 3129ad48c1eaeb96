package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatementLine is one row of a bank export before it is stored.
type StatementLine struct {
	Date           Date             `json:"transactionDate"`
	Description    string           `json:"description"`
	Amount         decimal.Decimal  `json:"amount"` // negative = outflow, positive = inflow
	Reference      string           `json:"referenceNumber"`
	Category       string           `json:"category"` // bank category (ACH_DEBIT, FEE, etc.)
	RunningBalance *decimal.Decimal `json:"runningBalance,omitempty"`
}

// StatementEntry is a stored bank statement line. Only matched metadata ever changes.
type StatementEntry struct {
	ID             int64            `json:"id"`
	AccountID      int64            `json:"bankAccountId"`
	Amount         decimal.Decimal  `json:"amount"`
	Date           Date             `json:"transactionDate"`
	Description    string           `json:"description"`
	Reference      string           `json:"referenceNumber"`
	Category       string           `json:"category"`
	RunningBalance *decimal.Decimal `json:"runningBalance,omitempty"`
	Matched        bool             `json:"matched"`
	MatchedAt      *time.Time       `json:"matchedAt,omitempty"`
	MatchedBy      string           `json:"matchedBy,omitempty"`
	ImportedAt     time.Time        `json:"importedAt"`
	ImportedBy     string           `json:"importedBy"`
	ImportBatch    string           `json:"importBatch,omitempty"`
}
