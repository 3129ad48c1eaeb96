package discrepancy

import (
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/config"
	"github.com/cleared-dev/bankrec/internal/model"
)

// Options controls detection and the overdue view.
type Options struct {
	GraceDays   int
	OverdueDays int
	// WindowDays is the largest date distance a confirmed match may span
	// before it is reported as a date mismatch.
	WindowDays int
	// AmountTolerance is the bank/book difference a confirmed match may
	// carry before it is reported as an amount mismatch.
	AmountTolerance decimal.Decimal

	Critical decimal.Decimal
	High     decimal.Decimal
	Medium   decimal.Decimal
}

// OptionsFrom builds Options from configuration. The date window and amount
// tolerance are shared with matching.
func OptionsFrom(c config.DiscrepancyConfig, m config.MatchingConfig) Options {
	return Options{
		GraceDays:       c.GracePeriodDays,
		OverdueDays:     c.OverdueDays,
		WindowDays:      m.DateWindowDays,
		AmountTolerance: decimal.NewFromFloat(m.AmountTolerance),
		Critical:        decimal.NewFromFloat(c.Priority.Critical),
		High:            decimal.NewFromFloat(c.Priority.High),
		Medium:          decimal.NewFromFloat(c.Priority.Medium),
	}
}

// DefaultOptions returns the options of the default configuration.
func DefaultOptions() Options {
	d := config.Default()
	return OptionsFrom(d.Discrepancies, d.Matching)
}

// PriorityFor ranks a discrepancy by the absolute amount involved.
func (o Options) PriorityFor(amount decimal.Decimal) model.Priority {
	abs := amount.Abs()
	switch {
	case abs.GreaterThanOrEqual(o.Critical):
		return model.PriorityCritical
	case abs.GreaterThanOrEqual(o.High):
		return model.PriorityHigh
	case abs.GreaterThanOrEqual(o.Medium):
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}
