package matching

import (
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/config"
	"github.com/cleared-dev/bankrec/internal/model"
)

// Options tunes candidate search and scoring.
type Options struct {
	// WindowDays bounds the distance between statement and transaction dates.
	WindowDays int
	// SameDayToleranceDays is the posting lag still treated as "same date"
	// for AMOUNT_DATE_MATCH. EXACT_MATCH always needs the same calendar day.
	SameDayToleranceDays int
	// MaxCombination is the largest number of items in a split or combined match.
	MaxCombination int

	AutoConfirm      decimal.Decimal
	ListingThreshold decimal.Decimal
	AmountTolerance  decimal.Decimal
	PenaltyPerDay    decimal.Decimal
	MinConfidence    decimal.Decimal
}

// OptionsFrom converts the matching section of the configuration.
func OptionsFrom(c config.MatchingConfig) Options {
	return Options{
		WindowDays:           c.DateWindowDays,
		SameDayToleranceDays: c.SameDayToleranceDays,
		MaxCombination:       c.MaxCombinationSize,
		AutoConfirm:          decimal.NewFromFloat(c.AutoConfirm),
		ListingThreshold:     decimal.NewFromFloat(c.ListingThreshold),
		AmountTolerance:      decimal.NewFromFloat(c.AmountTolerance),
		PenaltyPerDay:        decimal.NewFromFloat(c.DatePenaltyPerDay),
		MinConfidence:        decimal.NewFromFloat(c.MinConfidence),
	}
}

// DefaultOptions returns the options of the default configuration.
func DefaultOptions() Options {
	return OptionsFrom(config.Default().Matching)
}

// Confidence scores a tier at a date distance: the base confidence less the
// per-day penalty, never below the floor. Manual matches are not penalized.
func (o Options) Confidence(t model.MatchType, days int) decimal.Decimal {
	base := t.BaseConfidence()
	if t == model.MatchManual {
		return base
	}
	c := base.Sub(o.PenaltyPerDay.Mul(decimal.NewFromInt(int64(days))))
	if c.LessThan(o.MinConfidence) {
		return o.MinConfidence
	}
	return c
}

// tier classifies a single transaction whose amount equals the entry's.
func (o Options) tier(e model.StatementEntry, t model.InternalTransaction, days int) model.MatchType {
	sameRef := sameReference(e.Reference, t.Reference)
	switch {
	case days == 0 && sameRef:
		return model.MatchExact
	case days <= o.SameDayToleranceDays:
		return model.MatchAmountDate
	case sameRef:
		return model.MatchAmountRef
	default:
		return model.MatchAmount
	}
}
