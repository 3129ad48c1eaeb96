package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchType is the tier a match was scored at.
type MatchType string

const (
	MatchExact      MatchType = "EXACT_MATCH"
	MatchAmountDate MatchType = "AMOUNT_DATE_MATCH"
	MatchAmountRef  MatchType = "AMOUNT_REF_MATCH"
	MatchAmount     MatchType = "AMOUNT_MATCH"
	MatchSplit      MatchType = "SPLIT_MATCH"
	MatchCombined   MatchType = "COMBINED_MATCH"
	MatchPossible   MatchType = "POSSIBLE_MATCH"
	MatchManual     MatchType = "MANUAL_MATCH"
)

// BaseConfidence returns the starting score of a tier before the date penalty.
func (t MatchType) BaseConfidence() decimal.Decimal {
	switch t {
	case MatchExact, MatchManual:
		return decimal.NewFromInt(1)
	case MatchAmountDate:
		return decimal.RequireFromString("0.85")
	case MatchAmountRef:
		return decimal.RequireFromString("0.75")
	case MatchAmount:
		return decimal.RequireFromString("0.5")
	case MatchSplit, MatchCombined:
		return decimal.RequireFromString("0.4")
	case MatchPossible:
		return decimal.RequireFromString("0.2")
	default:
		return decimal.Zero
	}
}

// Valid reports whether t is a known tier.
func (t MatchType) Valid() bool {
	return !t.BaseConfidence().IsZero()
}

// Match asserts that a statement entry corresponds to zero or more internal transactions.
//
// The variant is carried by Type: SPLIT_MATCH links several transactions to one entry,
// COMBINED_MATCH folds GroupedEntryIDs into the entry against one transaction.
type Match struct {
	ID               int64           `json:"id"`
	AccountID        int64           `json:"bankAccountId"`
	StatementEntryID int64           `json:"bankStatementEntryId"`
	GroupedEntryIDs  []int64         `json:"groupedStatementEntryIds,omitempty"`
	TransactionIDs   []int64         `json:"internalTransactionIds"`
	Type             MatchType       `json:"matchType"`
	Confidence       decimal.Decimal `json:"confidenceScore"`
	Automatic        bool            `json:"automatic"`
	Confirmed        bool            `json:"confirmed"`
	ConfirmedAt      *time.Time      `json:"confirmedAt,omitempty"`
	ConfirmedBy      string          `json:"confirmedBy,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	CreatedBy        string          `json:"createdBy,omitempty"`
}

// EntryIDs returns every statement entry the match resolves, primary first.
func (m Match) EntryIDs() []int64 {
	ids := make([]int64, 0, 1+len(m.GroupedEntryIDs))
	ids = append(ids, m.StatementEntryID)
	return append(ids, m.GroupedEntryIDs...)
}

// References reports whether the match touches the entry or transaction.
func (m Match) References(entryIDs, transactionIDs []int64) bool {
	for _, id := range m.EntryIDs() {
		for _, other := range entryIDs {
			if id == other {
				return true
			}
		}
	}
	for _, id := range m.TransactionIDs {
		for _, other := range transactionIDs {
			if id == other {
				return true
			}
		}
	}
	return false
}
