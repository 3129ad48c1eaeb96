package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BankAccount is a cash account whose bank statements are reconciled.
type BankAccount struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	BankName      string          `json:"bankName"`
	AccountNumber string          `json:"accountNumber"` // masked, last four visible
	Balance       decimal.Decimal `json:"currentBalance"`
	Active        bool            `json:"active"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// MaskAccountNumber hides all but the last four digits of an account number.
// "12-3456-7890" -> "****7890"
func MaskAccountNumber(number string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' {
			return r
		}
		return -1
	}, number)
	if strings.HasPrefix(number, "****") {
		return number
	}
	if len(digits) <= 4 {
		return "****" + digits
	}
	return "****" + digits[len(digits)-4:]
}
