package importer

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/model"
)

// ChaseParser parses Chase bank checking CSV exports.
type ChaseParser struct{}

const (
	chaseDateFormat = "01/02/2006"
	chaseNumFields  = 7
	chaseColDate    = 1
	chaseColDesc    = 2
	chaseColAmount  = 3
	chaseColType    = 4
	chaseColBalance = 5
	chaseColCheck   = 6
)

// Format returns the parser name.
func (p *ChaseParser) Format() string { return "chase" }

// Parse reads a Chase CSV and returns one row per record.
func (p *ChaseParser) Parse(r io.Reader) ([]Row, error) {
	rows, err := readRecords(r, chaseNumFields, func([]string) (rowParser, error) {
		return parseChaseRow, nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading chase CSV: %w", err)
	}
	return rows, nil
}

func parseChaseRow(rec []string) (model.StatementLine, error) {
	t, err := time.Parse(chaseDateFormat, strings.TrimSpace(rec[chaseColDate]))
	if err != nil {
		return model.StatementLine{}, fmt.Errorf("parsing date %q: %w", rec[chaseColDate], err)
	}
	date := model.DateOf(t)

	amount, err := decimal.NewFromString(strings.TrimSpace(rec[chaseColAmount]))
	if err != nil {
		return model.StatementLine{}, fmt.Errorf("parsing amount %q: %w", rec[chaseColAmount], err)
	}

	line := model.StatementLine{
		Date:        date,
		Description: strings.TrimSpace(rec[chaseColDesc]),
		Amount:      amount,
		Category:    strings.TrimSpace(rec[chaseColType]),
	}

	if b := strings.TrimSpace(rec[chaseColBalance]); b != "" {
		balance, err := decimal.NewFromString(b)
		if err != nil {
			return model.StatementLine{}, fmt.Errorf("parsing balance %q: %w", b, err)
		}
		line.RunningBalance = &balance
	}

	// Check numbers are the reference the books record; other lines get a
	// synthetic one.
	if check := strings.TrimSpace(rec[chaseColCheck]); check != "" {
		line.Reference = check
	} else {
		line.Reference = makeChaseRef(date, line.Description)
	}
	return line, nil
}

// makeChaseRef creates a reference like chase_20250103_GITHUB.
func makeChaseRef(date model.Date, desc string) string {
	prefix := strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, desc)
	if len(prefix) > 10 {
		prefix = prefix[:10]
	}
	return fmt.Sprintf("chase_%s_%s", date.Time().Format("20060102"), prefix)
}
