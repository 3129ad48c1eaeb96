// Package validation collects field-level input problems and cleans free text
// before it is persisted.
package validation

import (
	"fmt"
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/model"
)

// Field length limits shared by the importer and the transaction store.
const (
	MaxDescription = 500
	MaxReference   = 100
	MaxCategory    = 50
	MaxName        = 200
	MaxNotes       = 2000
)

var strictPolicy = bluemonday.StrictPolicy()

// SanitizeText strips markup and unprintable runes, then trims surrounding space.
// Entities the policy escapes are decoded again so "AT&T" survives.
func SanitizeText(s string) string {
	clean := html.UnescapeString(strictPolicy.Sanitize(s))
	clean = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' {
			return r
		}
		return -1
	}, clean)
	return strings.TrimSpace(clean)
}

// Checker accumulates field errors; Err returns nil when nothing was recorded.
type Checker struct {
	fields []apperr.FieldError
}

// Add records a problem with field.
func (c *Checker) Add(field, format string, args ...any) {
	c.fields = append(c.fields, apperr.FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Required records field when s is blank.
func (c *Checker) Required(field, s string) {
	if strings.TrimSpace(s) == "" {
		c.Add(field, "is required")
	}
}

// MaxLen records field when s is longer than n characters.
func (c *Checker) MaxLen(field, s string, n int) {
	if utf8.RuneCountInString(s) > n {
		c.Add(field, "must be at most %d characters", n)
	}
}

// NonZero records field when d is zero.
func (c *Checker) NonZero(field string, d decimal.Decimal) {
	if d.IsZero() {
		c.Add(field, "must not be zero")
	}
}

// NonNegative records field when d is below zero.
func (c *Checker) NonNegative(field string, d decimal.Decimal) {
	if d.IsNegative() {
		c.Add(field, "must not be negative")
	}
}

// Date records field when d is unset.
func (c *Checker) Date(field string, d model.Date) {
	if d.IsZero() {
		c.Add(field, "is required")
	}
}

// Positive records field when id is not a valid identifier.
func (c *Checker) Positive(field string, id int64) {
	if id <= 0 {
		c.Add(field, "is required")
	}
}

// Range records endDate when it falls before startDate.
func (c *Checker) Range(from, to model.Date) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		c.Add("endDate", "must not be before startDate")
	}
}

// Err returns the accumulated problems as a validation error.
func (c *Checker) Err() error {
	if len(c.fields) == 0 {
		return nil
	}
	return &apperr.ValidationError{Fields: c.fields}
}

// DateRange validates a query range on its own.
func DateRange(from, to model.Date) error {
	var c Checker
	c.Date("startDate", from)
	c.Date("endDate", to)
	c.Range(from, to)
	return c.Err()
}
