package importer

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/model"
)

// GenericParser reads the neutral layout
// date,amount,description,reference,category,balance with ISO dates.
// Columns are located by header name, so order and optional columns vary.
type GenericParser struct{}

// Format returns the parser name.
func (p *GenericParser) Format() string { return "generic" }

var genericColumns = []string{"date", "amount", "description", "reference", "category", "balance"}

// Parse reads a generic CSV and returns one row per record.
func (p *GenericParser) Parse(r io.Reader) ([]Row, error) {
	rows, err := readRecords(r, 0, func(header []string) (rowParser, error) {
		cols, err := genericHeader(header)
		if err != nil {
			return nil, err
		}
		return func(rec []string) (model.StatementLine, error) {
			return parseGenericRow(rec, cols)
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading generic CSV: %w", err)
	}
	return rows, nil
}

func genericHeader(header []string) (map[string]int, error) {
	cols := make(map[string]int)
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		for _, known := range genericColumns {
			if name == known {
				cols[name] = i
			}
		}
	}
	for _, required := range []string{"date", "amount"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("generic CSV header missing %q column", required)
		}
	}
	return cols, nil
}

func field(rec []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func parseGenericRow(rec []string, cols map[string]int) (model.StatementLine, error) {
	date, err := model.ParseDate(field(rec, cols, "date"))
	if err != nil {
		return model.StatementLine{}, err
	}
	raw := field(rec, cols, "amount")
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return model.StatementLine{}, fmt.Errorf("parsing amount %q: %w", raw, err)
	}

	line := model.StatementLine{
		Date:        date,
		Amount:      amount,
		Description: field(rec, cols, "description"),
		Reference:   field(rec, cols, "reference"),
		Category:    field(rec, cols, "category"),
	}
	if b := field(rec, cols, "balance"); b != "" {
		balance, err := decimal.NewFromString(b)
		if err != nil {
			return model.StatementLine{}, fmt.Errorf("parsing balance %q: %w", b, err)
		}
		line.RunningBalance = &balance
	}
	return line, nil
}
