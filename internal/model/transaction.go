package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies an internally recorded cash movement.
type TransactionType string

const (
	TransactionDeposit         TransactionType = "DEPOSIT"
	TransactionCheck           TransactionType = "CHECK"
	TransactionVendorPayment   TransactionType = "VENDOR_PAYMENT"
	TransactionCustomerPayment TransactionType = "CUSTOMER_PAYMENT"
	TransactionTransfer        TransactionType = "TRANSFER"
	TransactionFee             TransactionType = "FEE"
	TransactionInterest        TransactionType = "INTEREST"
	TransactionPayroll         TransactionType = "PAYROLL"
	TransactionWithdrawal      TransactionType = "WITHDRAWAL"
	TransactionOther           TransactionType = "OTHER"
)

var transactionTypes = []TransactionType{
	TransactionDeposit, TransactionCheck, TransactionVendorPayment, TransactionCustomerPayment,
	TransactionTransfer, TransactionFee, TransactionInterest, TransactionPayroll,
	TransactionWithdrawal, TransactionOther,
}

// ParseTransactionType normalizes s and reports whether it names a known type.
func ParseTransactionType(s string) (TransactionType, bool) {
	norm := TransactionType(strings.ToUpper(strings.TrimSpace(s)))
	for _, t := range transactionTypes {
		if t == norm {
			return t, true
		}
	}
	return "", false
}

// InternalTransaction is a cash movement recorded by the organization's own books.
type InternalTransaction struct {
	ID           int64           `json:"id"`
	AccountID    int64           `json:"bankAccountId"`
	Amount       decimal.Decimal `json:"amount"` // positive = inflow
	Date         Date            `json:"transactionDate"`
	Description  string          `json:"description"`
	Reference    string          `json:"referenceNumber"`
	Type         TransactionType `json:"transactionType"`
	Reconciled   bool            `json:"reconciled"`
	ReconciledAt *time.Time      `json:"reconciledAt,omitempty"`
	ReconciledBy string          `json:"reconciledBy,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}
